package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher sends events to "<prefix>.<type>" subjects.
type NATSPublisher struct {
	conn   conn
	prefix string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{nats.Name("gophauth")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t string) string {
	if p.prefix == "" {
		return t
	}
	return p.prefix + "." + t
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil || p.conn == nil {
		return errors.New("nil publisher")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(e.Type), data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

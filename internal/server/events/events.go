// Package events publishes authentication lifecycle events for other
// services (audit, notifications) to consume.
package events

import (
	"context"
	"time"
)

const (
	TypeUserRegistered   = "user.registered"
	TypeSessionStarted   = "session.started"
	TypeSessionRefreshed = "session.refreshed"
	TypeSessionEnded     = "session.ended"
)

// Event is the JSON payload published for every lifecycle change.
type Event struct {
	Type   string    `json:"type"`
	UserID int64     `json:"user_id"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards events. Used when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

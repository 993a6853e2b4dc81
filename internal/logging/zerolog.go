package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.l.Debug().Ctx(ctx).Fields(withContextFields(ctx, args)).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Info().Ctx(ctx).Fields(withContextFields(ctx, args)).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warn().Ctx(ctx).Fields(withContextFields(ctx, args)).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Error().Ctx(ctx).Fields(withContextFields(ctx, args)).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(args).Logger()}
}

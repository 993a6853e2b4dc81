package logging

import "context"

type fieldsKey struct{}

// ContextWith returns a copy of ctx carrying extra key-value pairs. Both
// logger implementations append them to every record logged with that
// context, so request-scoped values such as a request id reach service logs.
func ContextWith(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := fieldsFrom(ctx)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(fields, prev...)
	fields = append(fields, args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func fieldsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	return fields
}

// withContextFields appends the fields stored in ctx to args.
func withContextFields(ctx context.Context, args []any) []any {
	fields := fieldsFrom(ctx)
	if len(fields) == 0 {
		return args
	}
	out := make([]any, 0, len(args)+len(fields))
	out = append(out, args...)
	return append(out, fields...)
}

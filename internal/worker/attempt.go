package worker

import "context"

type finalAttemptKey struct{}

// WithFinalAttempt marks ctx as the last delivery of a message before it is
// dead-lettered.
func WithFinalAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, finalAttemptKey{}, true)
}

// IsFinalAttempt reports whether ctx carries the last delivery of a message.
func IsFinalAttempt(ctx context.Context) bool {
	final, _ := ctx.Value(finalAttemptKey{}).(bool)
	return final
}

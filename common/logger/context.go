package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// LogFields are attached to every record logged with the context. Nil or
// empty fields are left out.
type LogFields struct {
	ContactID *string
	MessageID *string
	StreamID  *string // Redis stream entry id
	EventKind *string
	Intent    *string
	Component string
}

// WithLogFields merges fields into the context; set fields override the
// ones already there.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	override(&merged.ContactID, fields.ContactID)
	override(&merged.MessageID, fields.MessageID)
	override(&merged.StreamID, fields.StreamID)
	override(&merged.EventKind, fields.EventKind)
	override(&merged.Intent, fields.Intent)
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(contextKey{}).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func override(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func (f LogFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	add := func(key string, v *string) {
		if v != nil {
			attrs = append(attrs, slog.String(key, *v))
		}
	}
	add("contact_id", f.ContactID)
	add("message_id", f.MessageID)
	add("stream_id", f.StreamID)
	add("event_kind", f.EventKind)
	add("intent", f.Intent)
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

func Ptr[T any](v T) *T {
	return &v
}

// Mask keeps the last n bytes of an identifier (phone, DNI, code) and
// stars out the rest.
func Mask(s string, n int) string {
	n = max(n, 0)
	if len(s) <= n {
		return s
	}
	masked := []byte(s)
	for i := range len(s) - n {
		masked[i] = '*'
	}
	return string(masked)
}

// MaskPhone masks a phone number down to its last four digits.
func MaskPhone(phone string) string {
	return Mask(phone, 4)
}

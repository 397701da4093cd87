package channel

import "context"

type sourceKey struct{}

// WithSource records which platform produced the event being answered.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, or "".
func SourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

type mux struct {
	fallback Dispatcher
	routes   map[string]Dispatcher
}

// NewMux answers each event through the dispatcher registered for its
// source. Unregistered sources, including those Respond.io fronts, use
// fallback. Contact resolution always goes to fallback.
func NewMux(fallback Dispatcher, routes map[string]Dispatcher) Dispatcher {
	if len(routes) == 0 {
		return fallback
	}
	return &mux{fallback: fallback, routes: routes}
}

func (m *mux) pick(ctx context.Context) Dispatcher {
	if d, ok := m.routes[SourceFrom(ctx)]; ok {
		return d
	}
	return m.fallback
}

func (m *mux) Send(ctx context.Context, contactID, channelID, text string) error {
	return m.pick(ctx).Send(ctx, contactID, channelID, text)
}

func (m *mux) MarkRead(ctx context.Context, contactID, channelID, messageID string) error {
	return m.pick(ctx).MarkRead(ctx, contactID, channelID, messageID)
}

func (m *mux) ResolveOrCreateContact(ctx context.Context, ref ContactRef) (string, error) {
	return m.fallback.ResolveOrCreateContact(ctx, ref)
}

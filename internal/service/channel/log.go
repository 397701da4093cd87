package channel

import (
	"context"
	"log/slog"
)

type logDispatcher struct{}

// NewLogDispatcher writes replies to the log instead of a chat platform.
// Only meant for local development without platform credentials.
func NewLogDispatcher() Dispatcher {
	return logDispatcher{}
}

func (logDispatcher) Send(ctx context.Context, contactID, channelID, text string) error {
	slog.InfoContext(ctx, "reply (log dispatcher)", "to", contactID, "channel_id", channelID, "text", text)
	return nil
}

func (logDispatcher) MarkRead(context.Context, string, string, string) error {
	return nil
}

func (logDispatcher) ResolveOrCreateContact(_ context.Context, ref ContactRef) (string, error) {
	return ref.ExternalID, nil
}

package channel

import (
	"context"
	"errors"
)

// ErrSendFailed wraps every non-delivery reported by a dispatcher.
var ErrSendFailed = errors.New("channel send failed")

// ContactRef identifies a contact by something other than its platform id.
type ContactRef struct {
	ExternalID string
	Name       string
	Phone      string
}

// Dispatcher delivers replies through the chat platform the user wrote from.
type Dispatcher interface {
	// Send delivers text to the contact. An empty channelID lets the
	// platform pick the contact's last used channel.
	Send(ctx context.Context, contactID, channelID, text string) error
	MarkRead(ctx context.Context, contactID, channelID, messageID string) error
	// ResolveOrCreateContact returns the platform contact id for ref,
	// creating the contact when it does not exist yet.
	ResolveOrCreateContact(ctx context.Context, ref ContactRef) (string, error)
}

package store

import (
	"context"
	"errors"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrLockNotAcquired is returned when a contact lock stays busy past the wait budget.
var ErrLockNotAcquired = errors.New("contact lock not acquired")

// ErrUnsupportedField is returned for record searches on a field outside the whitelist.
var ErrUnsupportedField = errors.New("unsupported search field")

// SessionStore persists per-contact conversation state with a TTL refreshed on every save.
type SessionStore interface {
	Get(ctx context.Context, contactID string) (model.Session, error)
	Save(ctx context.Context, contactID string, session model.Session) error
	Delete(ctx context.Context, contactID string) error
}

// ContactLocker serializes read-modify-write cycles on one contact's session.
// The returned release func is safe to call once; it never deletes a lock
// that has since been taken over by another holder.
type ContactLocker interface {
	Lock(ctx context.Context, contactID string) (release func(), err error)
}

// IdempotencyStore tracks which inbound messages have been handled.
//
// Claim atomically reserves a message for processing. It returns false when
// the message is already processed or currently reserved by another worker.
// MarkProcessed turns a reservation into a durable mark for the idempotency
// window. Release drops a reservation so a later redelivery can retry.
type IdempotencyStore interface {
	Claim(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)
}

// RecordSearch looks up debt records by an exact identifier match.
type RecordSearch interface {
	Search(ctx context.Context, field model.SearchField, value string) ([]model.Record, error)
}

// ProfileStore keeps the long-lived contact profile document.
type ProfileStore interface {
	Get(ctx context.Context, contactID string) (*model.Profile, error)
	// RecordTurn upserts the profile fields and increments the message counter.
	RecordTurn(ctx context.Context, profile model.Profile) error
}

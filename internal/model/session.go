package model

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is the per-contact conversational state kept between turns.
// It lives in Redis under session:<contact_id> and expires after the
// configured TTL.
type Session struct {
	Name               string    `json:"name,omitempty"`
	PreferredName      string    `json:"preferred_name,omitempty"`
	DNI                string    `json:"dni,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	LastChannel        string    `json:"last_channel,omitempty"`
	PendingIntent      Intent    `json:"pending_intent,omitempty"`
	PendingReason      string    `json:"pending_reason,omitempty"`
	PendingUserMessage string    `json:"pending_user_message,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// DisplayName is the name used to address the user: an explicit preferred
// name wins over the detected one.
func (s Session) DisplayName() string {
	if s.PreferredName != "" {
		return s.PreferredName
	}
	return s.Name
}

func (s Session) HasPending() bool {
	return s.PendingIntent != "" && s.PendingIntent != IntentGeneral
}

// SetPending records an intent that is waiting for an identifier.
func (s *Session) SetPending(intent Intent, reason, userMessage string) {
	s.PendingIntent = intent
	s.PendingReason = reason
	s.PendingUserMessage = userMessage
}

func (s *Session) ClearPending() {
	s.PendingIntent = ""
	s.PendingReason = ""
	s.PendingUserMessage = ""
}

// Identifier returns the stored identifier the intent needs, if any.
func (s Session) Identifier(intent Intent) string {
	switch intent {
	case IntentDebt:
		return s.DNI
	case IntentOTP:
		return s.Phone
	default:
		return ""
	}
}

func (s Session) Validate() error {
	if s.HasPending() && strings.TrimSpace(s.PendingUserMessage) == "" {
		return errors.Join(ErrInvalidSession, errors.New("pending intent without the original question"))
	}
	if s.PendingIntent != "" && !s.PendingIntent.Valid() {
		return errors.Join(ErrInvalidSession, errors.New("unknown pending intent "+string(s.PendingIntent)))
	}
	return nil
}

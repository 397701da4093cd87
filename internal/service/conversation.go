package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/async"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/extraction"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/intent"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/store"
)

const invalidIdentifierHint = "Ese número no parece válido."

// Turn is one inbound user message.
type Turn struct {
	ContactID    string
	MessageID    string
	Text         string
	ContactName  string
	ContactPhone string
	Channel      string
}

// Reply is the outcome of a turn.
type Reply struct {
	Text    string
	Intent  model.Intent
	Reason  string
	Session model.Session
}

// DeliverFunc hands the reply to the user. A nil DeliverFunc means the
// caller delivers the reply itself.
type DeliverFunc func(ctx context.Context, text string) error

type ConversationService interface {
	// Handle runs one turn under the contact's lock. The session is only
	// persisted once deliver succeeds.
	Handle(ctx context.Context, turn Turn, deliver DeliverFunc) (*Reply, error)
	Session(ctx context.Context, contactID string) (model.Session, error)
	Reset(ctx context.Context, contactID string) error
}

type ConversationDeps struct {
	Sessions store.SessionStore
	Locker   store.ContactLocker
	Records  store.RecordSearch // nil when no records database is configured
	Profiles store.ProfileStore // optional
	Router   intent.Router
	Composer *Composer
}

type ConversationTimeouts struct {
	Search  time.Duration
	Profile time.Duration
}

type conversationService struct {
	ConversationDeps
	timeouts ConversationTimeouts
	logger   *slog.Logger
}

func NewConversationService(deps ConversationDeps, timeouts ConversationTimeouts, logger *slog.Logger) ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeouts.Search <= 0 {
		timeouts.Search = 5 * time.Second
	}
	if timeouts.Profile <= 0 {
		timeouts.Profile = 3 * time.Second
	}
	return &conversationService{
		ConversationDeps: deps,
		timeouts:         timeouts,
		logger:           logger,
	}
}

func (s *conversationService) Handle(ctx context.Context, turn Turn, deliver DeliverFunc) (*Reply, error) {
	if turn.ContactID == "" {
		return nil, errors.New("turn without contact id")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ContactID: logger.Ptr(turn.ContactID),
		Component: "conversation",
	})

	release, err := s.Locker.Lock(ctx, turn.ContactID)
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	defer release()

	// An unreadable session degrades to an empty one so the user is still
	// answered. The turn is then not persisted, which would clobber the
	// stored state with a partial view.
	session, err := s.Sessions.Get(ctx, turn.ContactID)
	degraded := err != nil && !errors.Is(err, store.ErrNotFound)
	if degraded {
		s.logger.ErrorContext(ctx, "session unreadable, answering without history", "error", err)
		session = model.Session{}
	}

	session, changed := extraction.Enrich(session, extraction.Input{
		Text:         turn.Text,
		ContactName:  turn.ContactName,
		ContactPhone: turn.ContactPhone,
		Channel:      turn.Channel,
	})
	if len(changed) > 0 {
		s.logger.DebugContext(ctx, "session enriched",
			"fields", changed,
			"phone", logger.MaskPhone(session.Phone))
	}

	reply := s.decide(ctx, &session, turn.Text)
	reply.Text = extraction.Personalize(session.DisplayName(), reply.Text)
	reply.Session = session

	ctx = logger.WithLogFields(ctx, logger.LogFields{Intent: logger.Ptr(string(reply.Intent))})

	if deliver != nil {
		if err := deliver(ctx, reply.Text); err != nil {
			return reply, fmt.Errorf("%w: %w", ErrReplyNotSent, err)
		}
	}

	// The reply is out; a failed save must not trigger a redelivery.
	if !degraded {
		if err := s.Sessions.Save(ctx, turn.ContactID, session); err != nil {
			s.logger.ErrorContext(ctx, "failed to save session", "error", err)
		}
	}

	s.recordProfile(ctx, turn.ContactID, session)

	s.logger.InfoContext(ctx, "turn handled",
		"reason", reply.Reason,
		"pending", session.PendingIntent)
	return reply, nil
}

// decide applies the conversation rules to the enriched session and returns
// the reply. It mutates the pending state on session.
func (s *conversationService) decide(ctx context.Context, session *model.Session, text string) *Reply {
	// A pending question is answered as soon as its identifier is known.
	if session.HasPending() {
		pending := session.PendingIntent
		if id := session.Identifier(pending); id != "" {
			answer, err := s.resolve(ctx, pending, session.PendingReason, session.PendingUserMessage, id)
			if err == nil {
				reason := session.PendingReason
				session.ClearPending()
				return &Reply{Text: answer, Intent: pending, Reason: reason}
			}
			return &Reply{Text: answer, Intent: pending, Reason: session.PendingReason}
		}

		// A bare number that did not validate is a bad identifier, not a new topic.
		if extraction.LooksLikeIdentifier(text) {
			return &Reply{
				Text:   invalidIdentifierHint + " " + intent.Followup(pending, session.PendingReason),
				Intent: pending,
				Reason: session.PendingReason,
			}
		}
	}

	decision := s.Router.Route(ctx, text)

	if session.HasPending() && decision.Intent != session.PendingIntent {
		s.logger.InfoContext(ctx, "topic switch, discarding pending intent",
			"pending", session.PendingIntent,
			"new_intent", decision.Intent)
		session.ClearPending()
	}

	if decision.Intent == model.IntentGeneral || !decision.RequiresIdentity {
		session.ClearPending()
		answer := strings.TrimSpace(decision.ConciseAnswer)
		if answer == "" {
			answer = intent.GeneralAnswer
		}
		return &Reply{Text: answer, Intent: decision.Intent, Reason: decision.Reason}
	}

	if id := session.Identifier(decision.Intent); id != "" {
		answer, err := s.resolve(ctx, decision.Intent, decision.Reason, text, id)
		if err == nil {
			session.ClearPending()
		}
		return &Reply{Text: answer, Intent: decision.Intent, Reason: decision.Reason}
	}

	followup := strings.TrimSpace(decision.FollowupQuestion)
	if followup == "" {
		followup = intent.Followup(decision.Intent, decision.Reason)
	}
	// Repeating the same request keeps the first question, which carries the detail.
	if session.PendingIntent != decision.Intent {
		session.SetPending(decision.Intent, decision.Reason, text)
	}
	return &Reply{Text: followup, Intent: decision.Intent, Reason: decision.Reason}
}

// resolve looks up the records for identifier and composes the answer. On
// ErrLookupUnavailable the returned text is the apology.
func (s *conversationService) resolve(ctx context.Context, in model.Intent, reason, question, identifier string) (string, error) {
	field := model.SearchFieldDNI
	if in == model.IntentOTP {
		field = model.SearchFieldPhone
	}

	if s.Records == nil {
		return s.Composer.LookupFailed(in), fmt.Errorf("%w: no record search configured", ErrLookupUnavailable)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.timeouts.Search)
	rows, err := s.Records.Search(searchCtx, field, identifier)
	cancel()
	if err != nil {
		s.logger.ErrorContext(ctx, "record lookup failed",
			"field", field,
			"identifier", logger.Mask(identifier, 4),
			"error", err)
		return s.Composer.LookupFailed(in), fmt.Errorf("%w: %w", ErrLookupUnavailable, err)
	}

	s.logger.InfoContext(ctx, "records found",
		"field", field,
		"identifier", logger.Mask(identifier, 4),
		"count", len(rows))
	return s.Composer.Compose(ctx, in, reason, question, identifier, rows), nil
}

func (s *conversationService) recordProfile(ctx context.Context, contactID string, session model.Session) {
	if s.Profiles == nil {
		return
	}
	profile := model.ProfileFromSession(contactID, session)
	async.Go(ctx, "profile_upsert", s.timeouts.Profile, func(ctx context.Context) error {
		return s.Profiles.RecordTurn(ctx, profile)
	})
}

func (s *conversationService) Session(ctx context.Context, contactID string) (model.Session, error) {
	return s.Sessions.Get(ctx, contactID)
}

func (s *conversationService) Reset(ctx context.Context, contactID string) error {
	release, err := s.Locker.Lock(ctx, contactID)
	if err != nil {
		return fmt.Errorf("locking session: %w", err)
	}
	defer release()
	return s.Sessions.Delete(ctx, contactID)
}

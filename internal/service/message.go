package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/extraction"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
)

// TurnFailedReply is sent when a turn cannot be completed at all.
const TurnFailedReply = "Disculpa, tuve un problema al procesar tu mensaje. ¿Puedes intentar nuevamente?"

const apiErrorIntent = "error"

var ErrMissingContact = errors.New("contact_id or external_user_id is required")

type ProcessMessageParams struct {
	ContactID      string
	ExternalUserID string
	Text           string
	ContactName    string
	ContactPhone   string
}

type ProcessMessageResult struct {
	ContactID    string
	ResponseText string
	Intent       string
	Session      model.Session
}

// MessageService runs a turn for callers that deliver the reply themselves.
type MessageService interface {
	Process(ctx context.Context, params ProcessMessageParams) (*ProcessMessageResult, error)
}

type messageService struct {
	conversations ConversationService
	dispatcher    channel.Dispatcher
	logger        *slog.Logger
}

func NewMessageService(conversations ConversationService, dispatcher channel.Dispatcher, logger *slog.Logger) MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageService{
		conversations: conversations,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// Process only fails on bad input. Internal failures become an apologetic
// reply with intent "error".
func (s *messageService) Process(ctx context.Context, params ProcessMessageParams) (*ProcessMessageResult, error) {
	contactID := strings.TrimSpace(params.ContactID)
	if contactID == "" {
		if params.ExternalUserID == "" {
			return nil, ErrMissingContact
		}
		if s.dispatcher == nil {
			return nil, fmt.Errorf("%w: contact resolution is not configured", ErrMissingContact)
		}
		resolved, err := s.dispatcher.ResolveOrCreateContact(ctx, channel.ContactRef{
			ExternalID: params.ExternalUserID,
			Name:       params.ContactName,
			Phone:      params.ContactPhone,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "contact resolution failed", "error", err)
			return s.errorReply(ctx, ""), nil
		}
		contactID = resolved
	}

	reply, err := s.conversations.Handle(ctx, Turn{
		ContactID:    contactID,
		Text:         params.Text,
		ContactName:  params.ContactName,
		ContactPhone: params.ContactPhone,
		Channel:      "api",
	}, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "processing message failed", "contact_id", contactID, "error", err)
		return s.errorReply(ctx, contactID), nil
	}

	return &ProcessMessageResult{
		ContactID:    contactID,
		ResponseText: reply.Text,
		Intent:       string(reply.Intent),
		Session:      reply.Session,
	}, nil
}

// errorReply addresses the user by name when a stored session knows it.
func (s *messageService) errorReply(ctx context.Context, contactID string) *ProcessMessageResult {
	var session model.Session
	if contactID != "" {
		if stored, err := s.conversations.Session(ctx, contactID); err == nil {
			session = stored
		}
	}
	return &ProcessMessageResult{
		ContactID:    contactID,
		ResponseText: extraction.Personalize(session.DisplayName(), TurnFailedReply),
		Intent:       apiErrorIntent,
		Session:      session,
	}
}

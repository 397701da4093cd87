package worker

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
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/store"
)

type RouterConfig struct {
	SendTimeout     time.Duration
	MarkReadTimeout time.Duration
}

// EventRouter dispatches queued events by kind. Incoming messages are
// claimed in the idempotency store before any side effect and only marked
// processed once the reply has been delivered.
type EventRouter struct {
	idempotency   store.IdempotencyStore
	conversations service.ConversationService
	dispatcher    channel.Dispatcher
	cfg           RouterConfig
}

func NewEventRouter(idempotency store.IdempotencyStore, conversations service.ConversationService, dispatcher channel.Dispatcher, cfg RouterConfig) *EventRouter {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.MarkReadTimeout <= 0 {
		cfg.MarkReadTimeout = 3 * time.Second
	}
	return &EventRouter{
		idempotency:   idempotency,
		conversations: conversations,
		dispatcher:    dispatcher,
		cfg:           cfg,
	}
}

func (r *EventRouter) Route(ctx context.Context, event model.InboundEvent) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventKind: logger.Ptr(string(event.Kind)),
	})
	if event.Contact.ID != "" {
		ctx = logger.WithLogFields(ctx, logger.LogFields{ContactID: logger.Ptr(event.Contact.ID)})
	}
	ctx = channel.WithSource(ctx, event.Channel.Source)

	switch event.Kind {
	case model.EventKindMessageReceived:
		return r.handleMessage(ctx, event)
	case model.EventKindMessageSent,
		model.EventKindContactCreated,
		model.EventKindConversationOpened,
		model.EventKindConversationClosed:
		slog.InfoContext(ctx, "auxiliary event received", "event_id", event.ID)
		return nil
	default:
		slog.WarnContext(ctx, "dropping unknown event kind", "raw_kind", event.RawKind, "event_id", event.ID)
		return nil
	}
}

func (r *EventRouter) handleMessage(ctx context.Context, event model.InboundEvent) error {
	messageID := event.Message.ID
	if messageID == "" {
		messageID = event.ID
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(messageID)})

	if strings.TrimSpace(event.Message.Text) == "" || !event.Message.IsText() {
		slog.InfoContext(ctx, "message without text, skipping", "message_type", event.Message.Type)
		if err := r.idempotency.MarkProcessed(ctx, messageID); err != nil {
			slog.WarnContext(ctx, "failed to mark skipped message", "error", err)
		}
		return nil
	}

	claimed, err := r.idempotency.Claim(ctx, messageID)
	if err != nil {
		return fmt.Errorf("claiming message: %w", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "message already processed or in flight, skipping")
		return nil
	}

	contactID, channelID := event.Contact.ID, event.Channel.ID
	async.Go(ctx, "mark_read", r.cfg.MarkReadTimeout, func(ctx context.Context) error {
		return r.dispatcher.MarkRead(ctx, contactID, channelID, event.Message.ID)
	})

	deliver := func(ctx context.Context, text string) error {
		ctx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
		defer cancel()
		return r.dispatcher.Send(ctx, contactID, channelID, text)
	}

	_, err = r.conversations.Handle(ctx, service.Turn{
		ContactID:    contactID,
		MessageID:    messageID,
		Text:         event.Message.Text,
		ContactName:  event.Contact.FirstName,
		ContactPhone: event.Contact.Phone,
		Channel:      event.Channel.Source,
	}, deliver)
	if err != nil {
		if IsFinalAttempt(ctx) && !errors.Is(err, service.ErrReplyNotSent) {
			r.apologize(ctx, event, messageID)
		} else if relErr := r.idempotency.Release(context.WithoutCancel(ctx), messageID); relErr != nil {
			// Give the message back so the retry can claim it again.
			slog.WarnContext(ctx, "failed to release message claim", "error", relErr)
		}
		return fmt.Errorf("handling message: %w", err)
	}

	if err := r.idempotency.MarkProcessed(context.WithoutCancel(ctx), messageID); err != nil {
		// The claim lease still blocks redelivery for a while; nothing else to do.
		slog.ErrorContext(ctx, "failed to mark message processed", "error", err)
	}
	return nil
}

// apologize answers a message whose turn failed on its last attempt, so the
// user is not left without a reply once it is dead-lettered. A delivered
// apology marks the message processed; otherwise the claim is released.
func (r *EventRouter) apologize(ctx context.Context, event model.InboundEvent, messageID string) {
	ctx = context.WithoutCancel(ctx)
	text := extraction.Personalize(extraction.ExtractName("", event.Contact.FirstName), service.TurnFailedReply)

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	err := r.dispatcher.Send(sendCtx, event.Contact.ID, event.Channel.ID, text)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "apology not sent", "error", err)
		if relErr := r.idempotency.Release(ctx, messageID); relErr != nil {
			slog.WarnContext(ctx, "failed to release message claim", "error", relErr)
		}
		return
	}

	slog.WarnContext(ctx, "turn failed on final attempt, apology sent")
	if err := r.idempotency.MarkProcessed(ctx, messageID); err != nil {
		slog.ErrorContext(ctx, "failed to mark message processed", "error", err)
	}
}

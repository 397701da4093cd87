package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/async"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/id"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/mapper"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
)

const nonTextReply = "Por ahora solo puedo leer mensajes de texto. ¿Podrías escribirme tu consulta, por favor?"

// ErrQueueUnavailable means the event could not be handed to the workers.
var ErrQueueUnavailable = errors.New("event queue unavailable")

type IngestStatus string

const (
	IngestReceived IngestStatus = "received"
	IngestIgnored  IngestStatus = "ignored"
	IngestRejected IngestStatus = "rejected"
)

type EventIngestResult struct {
	Status IngestStatus
	Reason string
	Event  model.InboundEvent
}

// EventIngestService normalizes a verified webhook body and enqueues it.
type EventIngestService interface {
	Ingest(ctx context.Context, body []byte, traceID string) (*EventIngestResult, error)
}

type eventIngestService struct {
	mapper      mapper.EventMapper
	queue       queue.Producer
	dispatcher  channel.Dispatcher
	sendTimeout time.Duration
	logger      *slog.Logger
}

func NewEventIngestService(m mapper.EventMapper, q queue.Producer, dispatcher channel.Dispatcher, sendTimeout time.Duration, logger *slog.Logger) EventIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventIngestService{
		mapper:      m,
		queue:       q,
		dispatcher:  dispatcher,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

func (s *eventIngestService) Ingest(ctx context.Context, body []byte, traceID string) (*EventIngestResult, error) {
	event, err := s.mapper.Map(ctx, body)
	if err != nil {
		return nil, err
	}
	if event.ID == "" {
		event.ID = eventID(event, body)
	}
	event.ReceivedAt = time.Now().UnixMilli()

	if event.Kind == model.EventKindMessageReceived {
		if event.Message.IsOutgoing() {
			s.logger.InfoContext(ctx, "ignoring outgoing message", "traffic", event.Message.Traffic)
			return &EventIngestResult{Status: IngestIgnored, Reason: "outgoing_message", Event: event}, nil
		}
		if !event.Message.IsText() {
			s.rejectNonText(ctx, event)
			return &EventIngestResult{Status: IngestRejected, Reason: "unsupported_message_type", Event: event}, nil
		}
	}

	if err := s.queue.Push(ctx, event, traceID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}
	return &EventIngestResult{Status: IngestReceived, Event: event}, nil
}

func (s *eventIngestService) rejectNonText(ctx context.Context, event model.InboundEvent) {
	s.logger.InfoContext(ctx, "rejecting non-text message", "message_type", event.Message.Type)
	if s.dispatcher == nil || event.Contact.ID == "" {
		return
	}
	contactID, channelID := event.Contact.ID, event.Channel.ID
	ctx = channel.WithSource(ctx, event.Channel.Source)
	async.Go(ctx, "non_text_reply", s.sendTimeout, func(ctx context.Context) error {
		return s.dispatcher.Send(ctx, contactID, channelID, nonTextReply)
	})
}

// eventID names an event the platform sent without an id. A message without
// its own id is keyed by its body, so a platform retry of the same delivery
// lands on the same idempotency key.
func eventID(event model.InboundEvent, body []byte) string {
	if event.Kind == model.EventKindMessageReceived && event.Message.ID == "" {
		sum := sha256.Sum256(body)
		return "body-" + hex.EncodeToString(sum[:16])
	}
	return id.NewString()
}

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/redis/go-redis/v9"
)

// Producer hands normalized events to the workers.
type Producer interface {
	Push(ctx context.Context, event model.InboundEvent, traceID string) error
	Ping(ctx context.Context) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisProducer creates a stream producer. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewRedisProducer(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *redisProducer) Push(ctx context.Context, event model.InboundEvent, traceID string) error {
	values, err := encodeValues(Message{
		Event:      event,
		Attempt:    1,
		TraceID:    traceID,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued event",
		"stream_id", id,
		"event_kind", event.Kind,
		"contact_id", event.Contact.ID,
		"message_id", event.Message.ID)
	return nil
}

func (p *redisProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

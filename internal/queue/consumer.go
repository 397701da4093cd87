package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Stream       string        // stream the producer appends to
	Group        string        // consumer group shared by all workers
	Consumer     string        // unique per worker loop
	DLQStream    string        // receives messages out of attempts
	RequeueDelay time.Duration // pause before a failed message is appended again
}

// Message is one queued event together with its delivery metadata.
type Message struct {
	ID         string
	Event      model.InboundEvent
	Attempt    int
	TraceID    string
	LastError  string
	EnqueuedAt time.Time
	Raw        redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

// RedisConsumer reads one consumer's share of a stream consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer creates the group (and stream) on first use. The group
// starts at the beginning of the stream so entries written before it existed
// are still delivered.
func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return &RedisConsumer{client: client, cfg: cfg}, nil
}

// Pop blocks up to timeout for the next never-delivered message and returns
// (nil, nil) when nothing arrives. Entries that cannot be decoded are
// acknowledged and skipped.
func (c *RedisConsumer) Pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assistant.queue.consumer"})

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	for _, stream := range res {
		for _, entry := range stream.Messages {
			if msg := c.decode(ctx, entry); msg != nil {
				return msg, nil
			}
		}
	}
	return nil, nil
}

// Claim takes over a pending entry idle for at least minIdle. It returns
// nil when another consumer claimed it first.
func (c *RedisConsumer) Claim(ctx context.Context, id string, minIdle time.Duration) (*Message, error) {
	entries, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim %s: %w", id, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return c.decode(ctx, entries[0]), nil
}

// Pending lists up to count group entries idle for at least minIdle.
func (c *RedisConsumer) Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending %s: %w", c.cfg.Stream, err)
	}
	return pending, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s %s: %w", c.cfg.Stream, msg.ID, err)
	}
	slog.DebugContext(ctx, "message acknowledged", "stream_id", msg.ID)
	return nil
}

// Requeue acknowledges msg and, after RequeueDelay, appends a copy with the
// attempt counter bumped and the failure recorded.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, reason string) error {
	next := msg
	next.Attempt = max(msg.Attempt, 1) + 1
	next.LastError = reason
	values, err := encodeValues(next)
	if err != nil {
		return err
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	if err := sleepCtx(ctx, c.cfg.RequeueDelay); err != nil {
		return err
	}
	if err := c.append(ctx, c.cfg.Stream, values); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued", "next_attempt", next.Attempt, "reason", reason)
	return nil
}

// SendDLQ acknowledges msg and parks it on the dead letter stream with the
// final error and its original stream ID.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, reason string) error {
	values, err := encodeValues(msg)
	if err != nil {
		return err
	}
	values[fieldDLQError] = reason
	values[fieldSourceID] = msg.ID

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}
	if err := c.append(ctx, c.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}

	slog.ErrorContext(ctx, "message dead-lettered",
		"final_error", reason,
		"attempt", msg.Attempt,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func (c *RedisConsumer) append(ctx context.Context, stream string, values map[string]any) error {
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

func (c *RedisConsumer) decode(ctx context.Context, entry redis.XMessage) *Message {
	msg, err := ParseMessage(entry)
	if err == nil {
		return &msg
	}
	slog.ErrorContext(ctx, "undecodable stream entry dropped",
		"error", err,
		"stream", c.cfg.Stream,
		"stream_id", entry.ID)
	_ = c.Ack(ctx, Message{ID: entry.ID, Raw: entry})
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markProcessing = "processing"
	markDone       = "done"
)

// dropReservation deletes the key only while it still holds a reservation,
// so a concurrent MarkProcessed is never undone.
var dropReservation = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type idempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	lease  time.Duration
}

// NewIdempotencyStore keeps processed:msg:<id> marks for ttl. A reservation
// that is never confirmed expires after lease, so a crashed worker does not
// block redelivery for the whole window.
func NewIdempotencyStore(client *redis.Client, ttl, lease time.Duration) IdempotencyStore {
	if lease <= 0 || lease > ttl {
		lease = ttl
	}
	return &idempotencyStore{client: client, ttl: ttl, lease: lease}
}

func (s *idempotencyStore) Claim(ctx context.Context, messageID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(messageID), markProcessing, s.lease).Result()
	if err != nil {
		return false, fmt.Errorf("claim message: %w", err)
	}
	return ok, nil
}

func (s *idempotencyStore) MarkProcessed(ctx context.Context, messageID string) error {
	if err := s.client.Set(ctx, processedKey(messageID), markDone, s.ttl).Err(); err != nil {
		return fmt.Errorf("mark message processed: %w", err)
	}
	return nil
}

func (s *idempotencyStore) Release(ctx context.Context, messageID string) error {
	if err := dropReservation.Run(ctx, s.client, []string{processedKey(messageID)}, markProcessing).Err(); err != nil {
		return fmt.Errorf("release message claim: %w", err)
	}
	return nil
}

func (s *idempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	v, err := s.client.Get(ctx, processedKey(messageID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("check message processed: %w", err)
	}
	return v == markDone, nil
}

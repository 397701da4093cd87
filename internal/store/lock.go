package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type LockConfig struct {
	TTL      time.Duration // Lock expiry; bounds how long a crashed holder blocks the contact
	Wait     time.Duration // How long Lock keeps retrying before ErrLockNotAcquired
	Interval time.Duration // Pause between attempts
}

type contactLocker struct {
	client *redis.Client
	cfg    LockConfig
}

func NewContactLocker(client *redis.Client, cfg LockConfig) ContactLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	return &contactLocker{client: client, cfg: cfg}
}

func (l *contactLocker) Lock(ctx context.Context, contactID string) (func(), error) {
	key := lockKey(contactID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire contact lock: %w", err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.Interval):
		}
	}

	release := func() {
		// Release must run even if the turn's context was cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			slog.WarnContext(releaseCtx, "failed to release contact lock", "error", err)
		}
	}
	return release, nil
}

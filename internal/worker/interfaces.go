package worker

import (
	"context"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/redis/go-redis/v9"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// PendingSource is the part of the queue the reclaimer needs.
type PendingSource interface {
	Pending(ctx context.Context, minIdle time.Duration, count int64) ([]redis.XPendingExt, error)
	Claim(ctx context.Context, id string, minIdle time.Duration) (*queue.Message, error)
}

// Router handles one normalized event.
type Router interface {
	Route(ctx context.Context, event model.InboundEvent) error
}

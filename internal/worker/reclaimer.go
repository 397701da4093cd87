package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
)

type ReclaimerConfig struct {
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer picks up stream entries left pending by a consumer that died
// between XREADGROUP and XACK, and runs them through process.
type Reclaimer struct {
	source  PendingSource
	process queue.MessageProcessor
	cfg     ReclaimerConfig

	stop chan struct{}
	done chan struct{}
}

func NewReclaimer(source PendingSource, process queue.MessageProcessor, cfg ReclaimerConfig) *Reclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Reclaimer{
		source:  source,
		process: process,
		cfg:     cfg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run blocks until the context is done or Stop is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "assistant.worker.reclaimer",
	})

	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stop)
	<-r.done
}

// ReclaimOnce runs one reclaim cycle and reports how many entries it processed.
func (r *Reclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	pending, err := r.source.Pending(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "found stale pending messages", "count", len(pending))

	processed := 0
	for _, p := range pending {
		msgCtx := logger.WithLogFields(ctx, logger.LogFields{StreamID: logger.Ptr(p.ID)})

		msg, err := r.source.Claim(msgCtx, p.ID, r.cfg.MinIdle)
		if err != nil {
			slog.ErrorContext(msgCtx, "failed to reclaim message",
				"error", err,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			continue
		}
		if msg == nil {
			slog.DebugContext(msgCtx, "message already reclaimed by another worker")
			continue
		}

		slog.InfoContext(msgCtx, "reclaiming stale message",
			"original_consumer", p.Consumer,
			"idle_time", p.Idle,
			"retry_count", p.RetryCount)

		if err := r.process(msgCtx, *msg); err != nil {
			slog.ErrorContext(msgCtx, "reclaimed message failed", "error", fmt.Errorf("processing reclaimed message: %w", err))
			continue
		}
		processed++
	}
	return processed, nil
}

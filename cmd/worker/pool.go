package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/core/config"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/app"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/worker"
)

const (
	requeueDelay   = time.Second
	reclaimBatch   = 20
	reclaimerLabel = "reclaimer"
)

// pool is the set of consumer loops plus the reclaimer, each on its own
// consumer name within the group.
type pool struct {
	workers   []*worker.Worker
	reclaimer *worker.Reclaimer
	wg        sync.WaitGroup
}

func newPool(ctx context.Context, cfg config.Config, application *app.App, base string) (*pool, error) {
	router := worker.NewEventRouter(
		application.Idempotency,
		application.Services.Conversations(),
		application.Dispatcher,
		worker.RouterConfig{
			SendTimeout:     cfg.Timeouts.Send,
			MarkReadTimeout: cfg.Timeouts.MarkRead,
		})
	workerCfg := worker.Config{
		MaxAttempts: cfg.Worker.MaxAttempts,
		PollTimeout: cfg.Worker.PollTimeout,
	}

	consumer := func(suffix string) (*queue.RedisConsumer, error) {
		c, err := queue.NewRedisConsumer(ctx, application.Redis, queue.ConsumerConfig{
			Stream:       cfg.Pipeline.RedisStream,
			Group:        cfg.Pipeline.RedisGroup,
			Consumer:     base + "-" + suffix,
			DLQStream:    cfg.Pipeline.RedisDLQStream,
			RequeueDelay: requeueDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("consumer %s-%s: %w", base, suffix, err)
		}
		return c, nil
	}

	p := &pool{}
	for i := range cfg.Worker.Concurrency {
		c, err := consumer(fmt.Sprint(i))
		if err != nil {
			return nil, err
		}
		p.workers = append(p.workers, worker.New(c, router, workerCfg))
	}

	rc, err := consumer(reclaimerLabel)
	if err != nil {
		return nil, err
	}
	settle := worker.New(rc, router, workerCfg)
	p.reclaimer = worker.NewReclaimer(rc, settle.ProcessMessage, worker.ReclaimerConfig{
		MinIdle:   cfg.Worker.ReclaimMinIdle,
		Interval:  cfg.Worker.ReclaimInterval,
		BatchSize: reclaimBatch,
	})

	slog.InfoContext(ctx, "worker pool ready",
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_base", base,
		"concurrency", len(p.workers))
	return p, nil
}

func (p *pool) start(ctx context.Context) {
	p.wg.Add(len(p.workers) + 1)
	for _, w := range p.workers {
		go func() {
			defer p.wg.Done()
			if err := w.Run(ctx); err != nil {
				slog.ErrorContext(ctx, "worker exited", "error", err)
			}
		}()
	}
	go func() {
		defer p.wg.Done()
		p.reclaimer.Run(ctx)
	}()
}

// stop halts the reclaimer, then every worker in parallel, and reports
// whether all of them returned before ctx expired.
func (p *pool) stop(ctx context.Context) bool {
	p.reclaimer.Stop()
	for _, w := range p.workers {
		go w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

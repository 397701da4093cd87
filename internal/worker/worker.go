package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultMaxAttempts = 3
	defaultPollTimeout = 5 * time.Second
	readErrorBackoff   = time.Second
)

type Config struct {
	MaxAttempts int           // deliveries before a message is dead-lettered
	PollTimeout time.Duration // how long one Pop blocks
}

// Worker is one consumer loop: pop, route, then ack, requeue or dead-letter.
type Worker struct {
	consumer Consumer
	router   Router
	cfg      Config

	stop chan struct{}
	done chan struct{}
}

func New(consumer Consumer, router Router, cfg Config) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	return &Worker{
		consumer: consumer,
		router:   router,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Stop is called. A message already
// popped is always settled before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			slog.InfoContext(ctx, "worker stopped")
			return nil
		default:
		}

		if err := w.poll(ctx); err != nil {
			slog.ErrorContext(ctx, "queue read failed", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stop:
			case <-time.After(readErrorBackoff):
			}
		}
	}
}

// Stop asks Run to return and waits for it.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) poll(ctx context.Context) error {
	msg, err := w.consumer.Pop(ctx, w.cfg.PollTimeout)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		return err
	case msg == nil:
		return nil
	}
	return w.ProcessMessage(ctx, *msg)
}

// ProcessMessage routes one message and settles it on the queue. Routing
// failures are settled here (requeue or dead letter) and not returned. Only
// an acknowledgement failure is.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	span := logger.StartQueueSpan(ctx, msg.TraceID, "worker.process_message",
		attribute.String("messaging.message.id", msg.ID),
		attribute.Int("assistant.attempt", msg.Attempt))
	defer span.End()
	ctx = logger.WithLogFields(span.Context(), logger.LogFields{StreamID: logger.Ptr(msg.ID)})

	slog.InfoContext(ctx, "processing message", "event_kind", msg.Event.Kind, "attempt", msg.Attempt)
	began := time.Now()
	if msg.Attempt >= w.cfg.MaxAttempts {
		ctx = WithFinalAttempt(ctx)
	}

	if err := w.route(ctx, msg); err != nil {
		span.RecordError(err)
		w.settleFailure(ctx, msg, err)
		return nil
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The idempotency mark is already stored, so a redelivery is skipped.
		slog.WarnContext(ctx, "ack failed", "error", err)
		return fmt.Errorf("ack: %w", err)
	}
	slog.InfoContext(ctx, "message processed", "duration_ms", time.Since(began).Milliseconds())
	return nil
}

// route converts a panic in the router into an ordinary failure.
func (w *Worker) route(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "router panicked", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.router.Route(ctx, msg.Event)
}

func (w *Worker) settleFailure(ctx context.Context, msg queue.Message, cause error) {
	exhausted := msg.Attempt >= w.cfg.MaxAttempts
	slog.ErrorContext(ctx, "message processing failed",
		"error", cause,
		"attempt", msg.Attempt,
		"dead_letter", exhausted)

	if exhausted {
		if err := w.consumer.SendDLQ(ctx, msg, cause.Error()); err != nil {
			slog.ErrorContext(ctx, "dead letter failed", "error", err)
		}
		return
	}
	if err := w.consumer.Requeue(ctx, msg, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "requeue failed", "error", err)
	}
}

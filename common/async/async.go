package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

const defaultTimeout = 10 * time.Second

// Go runs fn on its own goroutine, detached from the caller's cancellation
// but keeping its values (log fields, trace). fn gets a fresh timeout.
// Failures and panics are logged and never reach the caller. The returned
// channel closes when fn has finished.
func Go(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	if fn == nil {
		close(done)
		return done
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	detached := context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		runCtx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(runCtx, "background task panicked",
					"task", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
			}
		}()

		start := time.Now()
		if err := fn(runCtx); err != nil {
			slog.WarnContext(runCtx, "background task failed",
				"task", name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
			return
		}
		slog.DebugContext(runCtx, "background task completed",
			"task", name,
			"duration_ms", time.Since(start).Milliseconds())
	}()
	return done
}

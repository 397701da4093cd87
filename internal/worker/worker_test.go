package worker_test

import (
	"context"
	"errors"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		router   *mockRouter
		w        *worker.Worker
	)

	msg := func(id string, attempt int) queue.Message {
		return queue.Message{
			ID:      id,
			Attempt: attempt,
			TraceID: "0af7651916cd43dd8448eb211c80319c",
			Event:   model.InboundEvent{Kind: model.EventKindMessageReceived},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		router = &mockRouter{}
		w = worker.New(consumer, router, worker.Config{MaxAttempts: 3, PollTimeout: 10 * time.Millisecond})
	})

	It("acks a message once routing succeeds", func() {
		Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(Succeed())
		Expect(consumer.acked).To(Equal([]string{"1-0"}))
	})

	It("requeues a failed message with the error", func() {
		router.routeFn = func(context.Context, model.InboundEvent) error { return errors.New("llm timeout") }

		Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(Succeed())
		Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		Expect(consumer.lastError).To(ContainSubstring("llm timeout"))
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters a message on its last attempt", func() {
		router.routeFn = func(context.Context, model.InboundEvent) error { return errors.New("send failed") }

		Expect(w.ProcessMessage(ctx, msg("1-0", 3))).To(Succeed())
		Expect(consumer.dlq).To(Equal([]string{"1-0"}))
		Expect(consumer.requeued).To(BeEmpty())
	})

	DescribeTable("tells the router whether this is the last delivery",
		func(attempt int, final bool) {
			var seen *bool
			router.routeFn = func(ctx context.Context, _ model.InboundEvent) error {
				f := worker.IsFinalAttempt(ctx)
				seen = &f
				return nil
			}

			Expect(w.ProcessMessage(ctx, msg("1-0", attempt))).To(Succeed())
			Expect(seen).NotTo(BeNil())
			Expect(*seen).To(Equal(final))
		},
		Entry("first attempt", 1, false),
		Entry("second attempt", 2, false),
		Entry("last attempt", 3, true),
	)

	It("turns a panic into a retry", func() {
		router.routeFn = func(context.Context, model.InboundEvent) error { panic("boom") }

		Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(Succeed())
		Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		Expect(consumer.lastError).To(ContainSubstring("boom"))
	})

	It("reports ack failures", func() {
		consumer.ackErr = errors.New("connection reset")

		Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(MatchError(ContainSubstring("ack")))
	})

	It("drains the queue until stopped", func() {
		queued := []queue.Message{msg("1-0", 1), msg("2-0", 1)}
		consumer.popFn = func(context.Context, time.Duration) (*queue.Message, error) {
			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			if len(queued) == 0 {
				return nil, nil
			}
			next := queued[0]
			queued = queued[1:]
			return &next, nil
		}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(func() []string {
			consumer.mu.Lock()
			defer consumer.mu.Unlock()
			return append([]string(nil), consumer.acked...)
		}).Should(Equal([]string{"1-0", "2-0"}))

		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("returns when the context is cancelled", func() {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- w.Run(runCtx) }()

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})

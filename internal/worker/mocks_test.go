package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
	"github.com/redis/go-redis/v9"
)

type mockIdempotency struct {
	mu        sync.Mutex
	claimFn   func(ctx context.Context, id string) (bool, error)
	claimed   []string
	processed []string
	released  []string
}

func (m *mockIdempotency) Claim(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed = append(m.claimed, id)
	if m.claimFn != nil {
		return m.claimFn(ctx, id)
	}
	return true, nil
}

func (m *mockIdempotency) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockIdempotency) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, id)
	return nil
}

func (m *mockIdempotency) IsProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.processed {
		if p == id {
			return true, nil
		}
	}
	return false, nil
}

type mockConversations struct {
	handleFn func(ctx context.Context, turn service.Turn, deliver service.DeliverFunc) (*service.Reply, error)
	turns    []service.Turn
}

func (m *mockConversations) Handle(ctx context.Context, turn service.Turn, deliver service.DeliverFunc) (*service.Reply, error) {
	m.turns = append(m.turns, turn)
	if m.handleFn != nil {
		return m.handleFn(ctx, turn, deliver)
	}
	if err := deliver(ctx, "ok"); err != nil {
		return nil, err
	}
	return &service.Reply{Text: "ok", Intent: model.IntentGeneral}, nil
}

func (m *mockConversations) Session(context.Context, string) (model.Session, error) {
	return model.Session{}, nil
}

func (m *mockConversations) Reset(context.Context, string) error { return nil }

type mockDispatcher struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, contactID, channelID, text string) error
	sent   []string
	readCh chan string
}

func (m *mockDispatcher) Send(ctx context.Context, contactID, channelID, text string) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, contactID, channelID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, contactID+"/"+channelID+":"+text)
	return nil
}

func (m *mockDispatcher) MarkRead(_ context.Context, _, _, messageID string) error {
	if m.readCh != nil {
		m.readCh <- messageID
	}
	return nil
}

func (m *mockDispatcher) ResolveOrCreateContact(_ context.Context, ref channel.ContactRef) (string, error) {
	return ref.ExternalID, nil
}

type mockConsumer struct {
	mu        sync.Mutex
	popFn     func(ctx context.Context, timeout time.Duration) (*queue.Message, error)
	ackErr    error
	acked     []string
	requeued  []string
	dlq       []string
	lastError string
}

func (m *mockConsumer) Pop(ctx context.Context, timeout time.Duration) (*queue.Message, error) {
	if m.popFn != nil {
		return m.popFn(ctx, timeout)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	m.lastError = errMsg
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	m.lastError = errMsg
	return nil
}

type mockRouter struct {
	routeFn func(ctx context.Context, event model.InboundEvent) error
}

func (m *mockRouter) Route(ctx context.Context, event model.InboundEvent) error {
	if m.routeFn != nil {
		return m.routeFn(ctx, event)
	}
	return nil
}

type mockPendingSource struct {
	pending []redis.XPendingExt
	claimFn func(ctx context.Context, id string) (*queue.Message, error)
	claimed []string
}

func (m *mockPendingSource) Pending(context.Context, time.Duration, int64) ([]redis.XPendingExt, error) {
	return m.pending, nil
}

func (m *mockPendingSource) Claim(ctx context.Context, id string, _ time.Duration) (*queue.Message, error) {
	m.claimed = append(m.claimed, id)
	if m.claimFn != nil {
		return m.claimFn(ctx, id)
	}
	return &queue.Message{ID: id, Attempt: 1}, nil
}

package service

import (
	"log/slog"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/mapper"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
)

type Deps struct {
	Conversation ConversationDeps
	Timeouts     ConversationTimeouts
	Mapper       mapper.EventMapper
	Queue        queue.Producer // nil in processes that only consume
	Dispatcher   channel.Dispatcher
	SendTimeout  time.Duration
	Logger       *slog.Logger
}

type Services struct {
	deps          Deps
	conversations ConversationService
}

func NewServices(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Services{
		deps:          deps,
		conversations: NewConversationService(deps.Conversation, deps.Timeouts, deps.Logger),
	}
}

func (s *Services) Conversations() ConversationService {
	return s.conversations
}

func (s *Services) Messages() MessageService {
	return NewMessageService(s.conversations, s.deps.Dispatcher, s.deps.Logger)
}

func (s *Services) Ingest() EventIngestService {
	return NewEventIngestService(s.deps.Mapper, s.deps.Queue, s.deps.Dispatcher, s.deps.SendTimeout, s.deps.Logger)
}

// TelegramIngest feeds updates from the assistant's own bot into the same
// queue as Respond.io events.
func (s *Services) TelegramIngest() EventIngestService {
	return NewEventIngestService(mapper.NewTelegramEventMapper(), s.deps.Queue, s.deps.Dispatcher, s.deps.SendTimeout, s.deps.Logger)
}

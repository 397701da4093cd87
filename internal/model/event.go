package model

// EventKind is the closed set of webhook event kinds the assistant understands.
type EventKind string

const (
	EventKindMessageReceived    EventKind = "message.received"
	EventKindMessageSent        EventKind = "message.sent"
	EventKindContactCreated     EventKind = "contact.created"
	EventKindConversationOpened EventKind = "conversation.opened"
	EventKindConversationClosed EventKind = "conversation.closed"
	EventKindUnknown            EventKind = "unknown"
)

var knownEventKinds = map[EventKind]struct{}{
	EventKindMessageReceived:    {},
	EventKindMessageSent:        {},
	EventKindContactCreated:     {},
	EventKindConversationOpened: {},
	EventKindConversationClosed: {},
}

// ParseEventKind maps a wire value to an EventKind. Unrecognized values become
// EventKindUnknown rather than an error.
func ParseEventKind(s string) EventKind {
	k := EventKind(s)
	if _, ok := knownEventKinds[k]; ok {
		return k
	}
	return EventKindUnknown
}

func (k EventKind) String() string {
	return string(k)
}

type Traffic string

const (
	TrafficIncoming Traffic = "incoming"
	TrafficOutgoing Traffic = "outgoing"
)

const MessageTypeText = "text"

// SourceTelegramBot marks events that arrived through the assistant's own
// Telegram bot rather than through Respond.io.
const SourceTelegramBot = "telegram_bot"

// TelegramIDPrefix scopes Telegram chat ids so they never collide with
// Respond.io contact ids in session and idempotency keys.
const TelegramIDPrefix = "tg-"

type Channel struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Message struct {
	ID      string  `json:"id,omitempty"`
	Text    string  `json:"text,omitempty"`
	Type    string  `json:"type,omitempty"`
	Traffic Traffic `json:"traffic,omitempty"`
}

// IsText treats a missing type as text; older payloads omit it.
func (m Message) IsText() bool {
	return m.Type == "" || m.Type == MessageTypeText
}

// IsOutgoing reports messages the business side sent. A missing traffic
// value is treated as incoming.
func (m Message) IsOutgoing() bool {
	return m.Traffic != "" && m.Traffic != TrafficIncoming
}

// InboundEvent is the normalized form of a webhook payload. It is immutable
// once enqueued.
type InboundEvent struct {
	Kind       EventKind `json:"kind"`
	ID         string    `json:"id,omitempty"`
	RawKind    string    `json:"raw_kind,omitempty"`
	ReceivedAt int64     `json:"received_at"`
	Channel    Channel   `json:"channel"`
	Contact    Contact   `json:"contact"`
	Message    Message   `json:"message"`
}

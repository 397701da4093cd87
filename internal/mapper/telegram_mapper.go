package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

type telegramUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	Chat      *telegramChat `json:"chat"`
	From      *telegramUser `json:"from"`
	Text      string        `json:"text"`
	Caption   string        `json:"caption"`
	Photo     []struct{}    `json:"photo"`
	Document  *struct{}     `json:"document"`
	Voice     *struct{}     `json:"voice"`
	Sticker   *struct{}     `json:"sticker"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
}

// TelegramEventMapper normalizes Bot API updates delivered to the webhook.
// Only private chats produce messages; bot commands other than /start and
// edits are surfaced as unknown events so the worker drops them.
type TelegramEventMapper struct{}

func NewTelegramEventMapper() *TelegramEventMapper {
	return &TelegramEventMapper{}
}

func (m *TelegramEventMapper) Map(_ context.Context, body []byte) (model.InboundEvent, error) {
	var u telegramUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return model.InboundEvent{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if u.UpdateID == 0 {
		return model.InboundEvent{}, fmt.Errorf("%w: telegram update without update_id", ErrParse)
	}

	ev := model.InboundEvent{
		ID:      model.TelegramIDPrefix + "update-" + strconv.FormatInt(u.UpdateID, 10),
		Kind:    model.EventKindUnknown,
		RawKind: "telegram.update",
	}

	msg := u.Message
	if msg == nil {
		if u.EditedMessage != nil {
			ev.RawKind = "telegram.edited_message"
		}
		return ev, nil
	}
	if msg.Chat == nil {
		return model.InboundEvent{}, fmt.Errorf("%w: telegram message without chat", ErrParse)
	}
	if msg.Chat.Type != "" && msg.Chat.Type != "private" {
		ev.RawKind = "telegram." + msg.Chat.Type
		return ev, nil
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	ev.Channel = model.Channel{ID: chatID, Source: model.SourceTelegramBot}
	ev.Contact = model.Contact{ID: model.TelegramIDPrefix + chatID}
	if msg.From != nil {
		ev.Contact.FirstName = strings.TrimSpace(msg.From.FirstName)
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(strings.Fields(text)[0], "@")
		ev.RawKind = "telegram.command" + command
		if command == "/start" {
			ev.Kind = model.EventKindConversationOpened
		}
		return ev, nil
	}

	ev.Kind = model.EventKindMessageReceived
	ev.RawKind = "telegram.message"
	ev.Message = model.Message{
		ID:      model.TelegramIDPrefix + chatID + "-" + strconv.FormatInt(msg.MessageID, 10),
		Text:    text,
		Type:    telegramMessageType(msg),
		Traffic: model.TrafficIncoming,
	}
	if msg.From != nil && msg.From.IsBot {
		ev.Message.Traffic = model.TrafficOutgoing
	}
	return ev, nil
}

func telegramMessageType(msg *telegramMessage) string {
	switch {
	case msg.Text != "":
		return model.MessageTypeText
	case len(msg.Photo) > 0:
		return "image"
	case msg.Document != nil:
		return "file"
	case msg.Voice != nil:
		return "audio"
	case msg.Sticker != nil:
		return "sticker"
	default:
		return "unsupported"
	}
}

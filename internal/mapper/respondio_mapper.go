package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

// payloadShape tags which of the two Respond.io envelopes a body uses.
type payloadShape int

const (
	// shapeFlat: {"event_type": ..., "contact": {...}, "message": {...}, "channel": {...}}
	shapeFlat payloadShape = iota
	// shapeNested: {"event": ..., "data": {"contact": {...}, "message": {...}}}
	shapeNested
)

func (s payloadShape) String() string {
	if s == shapeNested {
		return "nested"
	}
	return "flat"
}

// flexString accepts a JSON string, number or null. Respond.io sends numeric
// ids on some webhooks and string ids on others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type wireContact struct {
	ID             flexString `json:"id"`
	FirstName      string     `json:"firstName"`
	FirstNameSnake string     `json:"first_name"`
	Phone          string     `json:"phone"`
	PhoneNumber    string     `json:"phone_number"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireMessage struct {
	ID        flexString   `json:"id"`
	MessageID flexString   `json:"messageId"`
	Type      string       `json:"type"`
	Text      string       `json:"text"`
	Message   *wireContent `json:"message"`
	Traffic   string       `json:"traffic"`
	ChannelID flexString   `json:"channelId"`
}

type wireChannel struct {
	ID     flexString `json:"id"`
	Source string     `json:"source"`
}

type wireBody struct {
	Contact *wireContact `json:"contact"`
	Message *wireMessage `json:"message"`
	Channel *wireChannel `json:"channel"`
}

type wirePayload struct {
	EventType string     `json:"event_type"`
	Event     string     `json:"event"`
	EventID   flexString `json:"event_id"`
	Data      *wireBody  `json:"data"`
	wireBody
}

type RespondIOEventMapper struct{}

func NewRespondIOEventMapper() *RespondIOEventMapper {
	return &RespondIOEventMapper{}
}

// Map resolves the payload shape once and returns a fully populated event.
// Unknown event kinds are not an error; missing kinds and message events
// without a contact are.
func (m *RespondIOEventMapper) Map(ctx context.Context, body []byte) (model.InboundEvent, error) {
	var p wirePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.InboundEvent{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	shape, inner := m.resolveShape(p)

	rawKind := strings.TrimSpace(p.EventType)
	if rawKind == "" {
		rawKind = strings.TrimSpace(p.Event)
	}
	if rawKind == "" {
		return model.InboundEvent{}, fmt.Errorf("%w: missing event type (%s shape)", ErrParse, shape)
	}

	ev := model.InboundEvent{
		Kind:    model.ParseEventKind(rawKind),
		ID:      string(p.EventID),
		RawKind: rawKind,
	}

	if c := inner.Contact; c != nil {
		ev.Contact = model.Contact{
			ID:        string(c.ID),
			FirstName: strings.TrimSpace(firstNonEmpty(c.FirstName, c.FirstNameSnake)),
			Phone:     strings.TrimSpace(firstNonEmpty(c.Phone, c.PhoneNumber)),
		}
	}

	if msg := inner.Message; msg != nil {
		ev.Message = model.Message{
			ID:      string(firstNonEmptyFlex(msg.MessageID, msg.ID)),
			Text:    strings.TrimSpace(msg.Text),
			Type:    strings.ToLower(strings.TrimSpace(msg.Type)),
			Traffic: model.Traffic(strings.ToLower(strings.TrimSpace(msg.Traffic))),
		}
		if content := msg.Message; content != nil {
			if ev.Message.Text == "" {
				ev.Message.Text = strings.TrimSpace(content.Text)
			}
			if ev.Message.Type == "" {
				ev.Message.Type = strings.ToLower(strings.TrimSpace(content.Type))
			}
		}
		ev.Channel.ID = string(msg.ChannelID)
	}

	if ch := inner.Channel; ch != nil {
		if ch.ID != "" {
			ev.Channel.ID = string(ch.ID)
		}
		ev.Channel.Source = strings.TrimSpace(ch.Source)
	}

	if ev.Kind == model.EventKindMessageReceived && ev.Contact.ID == "" {
		return model.InboundEvent{}, fmt.Errorf("%w: message event without contact id (%s shape)", ErrParse, shape)
	}

	return ev, nil
}

func (m *RespondIOEventMapper) resolveShape(p wirePayload) (payloadShape, wireBody) {
	if p.Data != nil {
		return shapeNested, *p.Data
	}
	return shapeFlat, p.wireBody
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyFlex(values ...flexString) flexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

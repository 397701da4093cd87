package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/redis/go-redis/v9"
)

// Stream entry field names.
const (
	fieldKind       = "event_kind"
	fieldPayload    = "payload"
	fieldAttempt    = "attempt"
	fieldEnqueuedAt = "enqueued_at"
	fieldTraceID    = "trace_id"
	fieldLastError  = "last_error"
	fieldDLQError   = "error"
	fieldSourceID   = "source_id"
)

// entryFields reads stream values, which come back from Redis as strings.
type entryFields map[string]any

func (f entryFields) str(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func (f entryFields) num(key string) (int64, bool, error) {
	s, ok := f.str(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("field %s: %w", key, err)
	}
	return n, true, nil
}

func encodeValues(msg Message) (map[string]any, error) {
	payload, err := json.Marshal(msg.Event)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	values := map[string]any{
		fieldKind:    msg.Event.Kind.String(),
		fieldPayload: string(payload),
		fieldAttempt: max(msg.Attempt, 1),
	}
	if !msg.EnqueuedAt.IsZero() {
		values[fieldEnqueuedAt] = msg.EnqueuedAt.UnixMilli()
	}
	if msg.TraceID != "" {
		values[fieldTraceID] = msg.TraceID
	}
	if msg.LastError != "" {
		values[fieldLastError] = msg.LastError
	}
	return values, nil
}

// ParseMessage decodes a stream entry. A payload without a kind takes it
// from the event_kind field.
func ParseMessage(raw redis.XMessage) (Message, error) {
	fields := entryFields(raw.Values)

	payload, ok := fields.str(fieldPayload)
	if !ok {
		return Message{}, fmt.Errorf("missing %s", fieldPayload)
	}
	msg := Message{ID: raw.ID, Raw: raw, Attempt: 1}
	if err := json.Unmarshal([]byte(payload), &msg.Event); err != nil {
		return Message{}, fmt.Errorf("decoding payload: %w", err)
	}
	if msg.Event.Kind == "" {
		kind, _ := fields.str(fieldKind)
		msg.Event.Kind = model.ParseEventKind(kind)
	}

	attempt, ok, err := fields.num(fieldAttempt)
	if err != nil {
		return Message{}, err
	}
	if ok && attempt > 0 {
		msg.Attempt = int(attempt)
	}

	enqueued, ok, err := fields.num(fieldEnqueuedAt)
	if err != nil {
		return Message{}, err
	}
	if ok {
		msg.EnqueuedAt = time.UnixMilli(enqueued).UTC()
	}

	msg.TraceID, _ = fields.str(fieldTraceID)
	msg.LastError, _ = fields.str(fieldLastError)
	return msg, nil
}

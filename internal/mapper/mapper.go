package mapper

import (
	"context"
	"errors"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

// ErrParse marks payloads that cannot be normalized into an InboundEvent.
var ErrParse = errors.New("malformed webhook payload")

// EventMapper turns a raw webhook body into the normalized event.
type EventMapper interface {
	Map(ctx context.Context, body []byte) (model.InboundEvent, error)
}

package dto

import "github.com/LopeviaKochis/ai-virtual-assistant/internal/service"

type WebhookResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func ToWebhookResponse(r *service.EventIngestResult) WebhookResponse {
	resp := WebhookResponse{
		Status: string(r.Status),
		Reason: r.Reason,
	}
	if r.Event.RawKind != "" {
		resp.Event = r.Event.RawKind
	} else {
		resp.Event = string(r.Event.Kind)
	}
	return resp
}

type WebhookHealthResponse struct {
	Status             string `json:"status"`
	MessageSecret      bool   `json:"message_secret_configured"`
	ConversationSecret bool   `json:"conversation_secret_configured"`
	TelegramSecret     bool   `json:"telegram_secret_configured"`
}

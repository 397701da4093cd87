package dto

import (
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/logger"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
)

type ProcessMessageRequest struct {
	ContactID      string `json:"contact_id" binding:"required_without=ExternalUserID,max=64"`
	ExternalUserID string `json:"external_user_id" binding:"required_without=ContactID,max=128"`
	MessageText    string `json:"message_text" binding:"required,notblank,max=4096"`
	ContactName    string `json:"contact_name,omitempty" binding:"max=255"`
	ContactPhone   string `json:"contact_phone,omitempty" binding:"max=32"`
}

func (r ProcessMessageRequest) ToParams() service.ProcessMessageParams {
	return service.ProcessMessageParams{
		ContactID:      r.ContactID,
		ExternalUserID: r.ExternalUserID,
		Text:           r.MessageText,
		ContactName:    r.ContactName,
		ContactPhone:   r.ContactPhone,
	}
}

type ProcessMessageResponse struct {
	ContactID    string          `json:"contact_id,omitempty"`
	ResponseText string          `json:"response_text"`
	Intent       string          `json:"intent,omitempty"`
	Session      SessionResponse `json:"session"`
}

func ToProcessMessageResponse(r *service.ProcessMessageResult) ProcessMessageResponse {
	return ProcessMessageResponse{
		ContactID:    r.ContactID,
		ResponseText: r.ResponseText,
		Intent:       r.Intent,
		Session:      ToSessionResponse(r.Session),
	}
}

// SessionResponse is the public view of a session. Stored identifiers are
// masked.
type SessionResponse struct {
	Name               string `json:"name,omitempty"`
	PreferredName      string `json:"preferred_name,omitempty"`
	DNI                string `json:"dni,omitempty"`
	Phone              string `json:"phone,omitempty"`
	LastChannel        string `json:"last_channel,omitempty"`
	PendingIntent      string `json:"pending_intent,omitempty"`
	PendingReason      string `json:"pending_reason,omitempty"`
	PendingUserMessage string `json:"pending_user_message,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

func ToSessionResponse(s model.Session) SessionResponse {
	resp := SessionResponse{
		Name:               s.Name,
		PreferredName:      s.PreferredName,
		DNI:                logger.Mask(s.DNI, 3),
		Phone:              logger.Mask(s.Phone, 3),
		LastChannel:        s.LastChannel,
		PendingIntent:      string(s.PendingIntent),
		PendingReason:      s.PendingReason,
		PendingUserMessage: s.PendingUserMessage,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

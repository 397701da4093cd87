package model

import "time"

// Profile is the long-lived contact document kept by the profile store.
type Profile struct {
	ContactID       string    `json:"contact_id"`
	Name            string    `json:"name,omitempty"`
	PreferredName   string    `json:"preferred_name,omitempty"`
	DNI             string    `json:"dni,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	LastChannel     string    `json:"last_channel,omitempty"`
	TotalMessages   int64     `json:"total_messages"`
	LastInteraction time.Time `json:"last_interaction"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProfileFromSession builds the profile fields a turn can update.
func ProfileFromSession(contactID string, s Session) Profile {
	return Profile{
		ContactID:     contactID,
		Name:          s.Name,
		PreferredName: s.PreferredName,
		DNI:           s.DNI,
		Phone:         s.Phone,
		LastChannel:   s.LastChannel,
	}
}

package domain

import "time"

// User is a chat participant as reported by the chat backend.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Image      string     `json:"image,omitempty"`
	Online     bool       `json:"online"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

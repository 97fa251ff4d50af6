package domain

import "time"

// Message is immutable once created and append-only within a Channel.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Reaction  string    `json:"reaction,omitempty"`
}

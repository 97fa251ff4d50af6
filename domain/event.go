package domain

import "time"

type EventType string

const (
	EventAddedToChannel      EventType = "notification.added_to_channel"
	EventRemovedFromChannel  EventType = "notification.removed_from_channel"
	EventMessageNew          EventType = "message.new"
	EventNotificationMessage EventType = "notification.message_new"
	EventChannelUpdated      EventType = "channel.updated"
	EventMarkRead            EventType = "notification.mark_read"
	EventConnectionOK        EventType = "connection.ok"

	// EventConnectionChanged is emitted locally by the session manager, never by the backend.
	EventConnectionChanged EventType = "connection.changed"
)

// Event is a server pushed notification, or a local connection transition.
type Event struct {
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channel_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	State     ConnectionState `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

// AffectsMembership is true for events adding or removing the current user from a channel.
func (e Event) AffectsMembership() bool {
	return e.Type == EventAddedToChannel || e.Type == EventRemovedFromChannel
}

// AffectsChannelList is true for every backend event that can change the channel list view.
func (e Event) AffectsChannelList() bool {
	switch e.Type {
	case EventAddedToChannel, EventRemovedFromChannel, EventMessageNew,
		EventNotificationMessage, EventChannelUpdated, EventMarkRead:
		return true
	default:
		return false
	}
}

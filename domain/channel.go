package domain

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// DefaultChannelType is the channel type used for direct and group conversations.
const DefaultChannelType = "messaging"

// Channel is a read-through projection of a conversation owned by the chat backend.
type Channel struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Name          string     `json:"name,omitempty"`
	Image         string     `json:"image,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	Members       []User     `json:"members"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Messages      []Message  `json:"messages,omitempty"`
	UnreadCount   int        `json:"unread_count"`
}

// ChannelMetadata is the caller supplied data of a channel being created.
// An empty ID lets the backend allocate one.
type ChannelMetadata struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty" validate:"max=128"`
	Image string `json:"image,omitempty" validate:"omitempty,url"`
}

// HasMember reports whether userID belongs to the channel.
func (c Channel) HasMember(userID string) bool {
	return lo.ContainsBy(c.Members, func(u User) bool { return u.ID == userID })
}

// MemberIDs returns the ids of the channel members in their stored order.
func (c Channel) MemberIDs() []string {
	return lo.Map(c.Members, func(u User, _ int) string { return u.ID })
}

// LastMessage returns the most recent message of the channel, if any.
func (c Channel) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// OrderChannels builds a ChannelListView: channels are deduplicated by id and
// sorted by LastMessageAt descending, channels without messages last, ties by id ascending.
// When an id appears twice the entry with the most recent activity is kept.
// The order is always recomputed from scratch, the input is left untouched.
func OrderChannels(channels []Channel) []Channel {
	byID := make(map[string]int, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if i, ok := byID[c.ID]; ok {
			if !after(out[i].LastMessageAt, c.LastMessageAt) {
				out[i] = c
			}
			continue
		}
		byID[c.ID] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out
}

// after reports whether a is strictly more recent than b, nil being the oldest.
func after(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

package projection

import (
	"fmt"
	"messengy/contract"
	"messengy/domain"
	"time"

	"github.com/samber/lo"
)

const (
	NotificationNewChat     = "new_chat"
	NotificationNewChatText = "Started a conversation with you"
)

// ChatRow is one line of the chat list screen.
type ChatRow struct {
	ChannelID   string
	Title       string
	AvatarURL   string
	Online      bool
	Preview     string
	Timestamp   string
	UnreadCount int
}

// ShowBadge tells whether the unread badge is displayed.
func (r ChatRow) ShowBadge() bool { return r.UnreadCount > 0 }

type NotificationRow struct {
	ID        string
	UserName  string
	AvatarURL string
	Message   string
	Timestamp string
	Unread    bool
	Type      string
}

type FriendRow struct {
	UserID    string
	Name      string
	AvatarURL string
	Status    string
}

// Projector assembles screen rows. The optional censor masks previews.
type Projector struct {
	censor contract.ICensor
}

func NewProjector(censor contract.ICensor) Projector {
	return Projector{censor: censor}
}

func (p Projector) ChatRows(channels []domain.Channel, selfID string, now time.Time) []ChatRow {
	return lo.Map(channels, func(c domain.Channel, _ int) ChatRow {
		other, direct := Counterpart(c, selfID)
		row := ChatRow{
			ChannelID:   c.ID,
			Title:       DisplayName(c, selfID),
			AvatarURL:   AvatarURL(other),
			Online:      other.Online,
			Preview:     LastMessagePreview(c),
			UnreadCount: c.UnreadCount,
		}
		if !direct {
			row.AvatarURL = AvatarURL(domain.User{ID: c.ID, Name: row.Title, Image: c.Image})
		}
		if last, ok := c.LastMessage(); ok {
			row.Timestamp = RelativeTime(last.CreatedAt, now)
			if p.censor != nil {
				row.Preview = p.censor.Censor(row.Preview)
			}
		}
		return row
	})
}

// NotificationRows turns each channel into a "new chat" notification.
func (p Projector) NotificationRows(channels []domain.Channel, selfID string, now time.Time) []NotificationRow {
	return lo.Map(channels, func(c domain.Channel, i int) NotificationRow {
		other, ok := Counterpart(c, selfID)
		name := other.Name
		if !ok || name == "" {
			name = UnknownUser
		}
		return NotificationRow{
			ID:        fmt.Sprintf("notification-%d", i),
			UserName:  name,
			AvatarURL: AvatarURL(other),
			Message:   NotificationNewChatText,
			Timestamp: TimeAgo(c.CreatedAt, now),
			Unread:    c.UnreadCount > 0,
			Type:      NotificationNewChat,
		}
	})
}

func (p Projector) FriendRows(users []domain.User) []FriendRow {
	return lo.Map(users, func(u domain.User, _ int) FriendRow {
		row := FriendRow{UserID: u.ID, Name: u.Name, AvatarURL: AvatarURL(u), Status: "Offline"}
		if row.Name == "" {
			row.Name = UnknownUser
		}
		if u.Online {
			row.Status = "Online"
		}
		return row
	})
}

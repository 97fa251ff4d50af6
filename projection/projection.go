// Package projection derives UI-ready fields from raw channel state.
// Everything here is pure: no clock, no I/O, the caller passes "now".
package projection

import (
	"fmt"
	"messengy/domain"
	"net/url"
	"time"

	"github.com/samber/lo"
)

const (
	NoMessagesYet = "No messages yet"
	UnknownName   = "Unknown"
	UnknownUser   = "Unknown User"

	// ClockLayout and DateLayout are the two RelativeTime renderings.
	ClockLayout = "15:04"
	DateLayout  = "1/2/2006"

	avatarFallbackURL = "https://getstream.io/random_png/"
)

// Counterpart returns the other member of a two member channel.
// Channels with any other member count have no single counterpart.
func Counterpart(channel domain.Channel, selfID string) (domain.User, bool) {
	if len(channel.Members) != 2 {
		return domain.User{}, false
	}
	return lo.Find(channel.Members, func(u domain.User) bool { return u.ID != selfID })
}

// LastMessagePreview returns the text of the most recent message.
func LastMessagePreview(channel domain.Channel) string {
	last, ok := channel.LastMessage()
	if !ok {
		return NoMessagesYet
	}
	return last.Text
}

// DisplayName is the counterpart name for direct chats, the channel name otherwise.
// Group chats get no derived name: without a channel name they are "Unknown".
func DisplayName(channel domain.Channel, selfID string) string {
	if other, ok := Counterpart(channel, selfID); ok && other.Name != "" {
		return other.Name
	}
	if channel.Name != "" {
		return channel.Name
	}
	return UnknownName
}

// AvatarURL returns the user image, or a generated placeholder keyed on id and name.
func AvatarURL(user domain.User) string {
	if user.Image != "" {
		return user.Image
	}
	q := url.Values{}
	q.Set("id", user.ID)
	q.Set("name", user.Name)
	return avatarFallbackURL + "?" + q.Encode()
}

// RelativeTime is the chat list timestamp: "now" under an hour,
// the clock time under a day, the calendar date beyond.
func RelativeTime(ts, now time.Time) string {
	elapsed := now.Sub(ts)
	local := ts.In(now.Location())
	switch {
	case elapsed < time.Hour:
		return "now"
	case elapsed < 24*time.Hour:
		return local.Format(ClockLayout)
	default:
		return local.Format(DateLayout)
	}
}

// TimeAgo is the coarser notification timestamp: now, hours, days, then weeks.
func TimeAgo(ts, now time.Time) string {
	hours := now.Sub(ts).Hours()
	switch {
	case hours < 1:
		return "now"
	case hours < 24:
		return fmt.Sprintf("%dh", int(hours))
	case hours < 168:
		return fmt.Sprintf("%dd", int(hours/24))
	default:
		return fmt.Sprintf("%dw", int(hours/168))
	}
}

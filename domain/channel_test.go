package domain

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func ids(channels []Channel) []string {
	return lo.Map(channels, func(c Channel, _ int) string { return c.ID })
}

func permutations(channels []Channel) [][]Channel {
	if len(channels) <= 1 {
		return [][]Channel{append([]Channel(nil), channels...)}
	}
	var out [][]Channel
	for i := range channels {
		rest := append(append([]Channel(nil), channels[:i]...), channels[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Channel{channels[i]}, p...))
		}
	}
	return out
}

func TestOrderChannels(t *testing.T) {
	t1 := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("most recent first, no activity last", func(t *testing.T) {
		req := require.New(t)
		got := OrderChannels([]Channel{{ID: "c1"}, {ID: "c2", LastMessageAt: &t2}})
		req.Equal([]string{"c2", "c1"}, ids(got))
	})

	t.Run("same order for every permutation", func(t *testing.T) {
		req := require.New(t)
		set := []Channel{
			{ID: "c4"},
			{ID: "c1", LastMessageAt: &t1},
			{ID: "c3", LastMessageAt: &t2},
			{ID: "c2", LastMessageAt: &t1},
			{ID: "c0"},
		}
		expected := []string{"c3", "c1", "c2", "c0", "c4"}
		all := permutations(set)
		req.Len(all, 120)
		for _, p := range all {
			req.Equal(expected, ids(OrderChannels(p)))
		}
	})

	t.Run("duplicates keep the most recent entry", func(t *testing.T) {
		req := require.New(t)
		got := OrderChannels([]Channel{
			{ID: "c1", LastMessageAt: &t1, UnreadCount: 1},
			{ID: "c2"},
			{ID: "c1", LastMessageAt: &t2, UnreadCount: 2},
			{ID: "c1", UnreadCount: 3},
		})
		req.Equal([]string{"c1", "c2"}, ids(got))
		req.Equal(2, got[0].UnreadCount)
	})

	t.Run("input is left untouched", func(t *testing.T) {
		req := require.New(t)
		input := []Channel{{ID: "c1"}, {ID: "c2", LastMessageAt: &t1}}
		_ = OrderChannels(input)
		req.Equal([]string{"c1", "c2"}, ids(input))
	})

	t.Run("empty", func(t *testing.T) {
		require.Empty(t, OrderChannels(nil))
	})
}

func TestChannel_Helpers(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c := Channel{
		ID:      "c1",
		Members: []User{{ID: "u1"}, {ID: "u2"}},
		Messages: []Message{
			{ID: "m1", Text: "first", CreatedAt: at},
			{ID: "m2", Text: "second", CreatedAt: at.Add(time.Minute)},
		},
	}

	req.True(c.HasMember("u2"))
	req.False(c.HasMember("u3"))
	req.Equal([]string{"u1", "u2"}, c.MemberIDs())
	last, ok := c.LastMessage()
	req.True(ok)
	req.Equal("m2", last.ID)

	_, ok = Channel{}.LastMessage()
	req.False(ok)
}

func TestEvent_AffectsChannelList(t *testing.T) {
	tests := []struct {
		event   EventType
		affects bool
		members bool
	}{
		{EventAddedToChannel, true, true},
		{EventRemovedFromChannel, true, true},
		{EventMessageNew, true, false},
		{EventNotificationMessage, true, false},
		{EventChannelUpdated, true, false},
		{EventMarkRead, true, false},
		{EventConnectionOK, false, false},
		{EventConnectionChanged, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			req := require.New(t)
			evt := Event{Type: tt.event}
			req.Equal(tt.affects, evt.AffectsChannelList())
			req.Equal(tt.members, evt.AffectsMembership())
		})
	}
}

func TestIdentity(t *testing.T) {
	req := require.New(t)
	req.Error(Identity{DisplayName: "Nobody"}.Validate())
	req.NoError(Identity{ID: "u1"}.Validate())
	req.Equal(User{ID: "u1", Name: "Alice"}, Identity{ID: "u1", DisplayName: "Alice"}.User())
	req.Equal("connected", Connected.String())
	req.Equal("unknown", ConnectionState(42).String())
}

func TestSession_Expired(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	req.False(Session{}.Expired(now))
	req.False(Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	req.True(Session{ExpiresAt: now}.Expired(now))
}

package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"messengy/domain"
	"messengy/errors"
	"messengy/mocks"
	"messengy/projection"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = domain.Identity{ID: "u1", DisplayName: "Alice"}
	bob   = domain.Identity{ID: "u2", DisplayName: "Bob"}
)

func connected(ctrl *gomock.Controller, identity domain.Identity, conn *mocks.MockIConnection) *mocks.MockISession {
	session := mocks.NewMockISession(ctrl)
	session.EXPECT().Identity().Return(identity, true).AnyTimes()
	session.EXPECT().Connection().Return(conn, nil).AnyTimes()
	return session
}

type creatorFunc func(ctx context.Context, identity domain.Identity, members []string, metadata domain.ChannelMetadata) (domain.Channel, error)

func (f creatorFunc) CreateChannel(ctx context.Context, identity domain.Identity, members []string, metadata domain.ChannelMetadata) (domain.Channel, error) {
	return f(ctx, identity, members, metadata)
}

func TestFriendService_Suggestions(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx := context.Background()

	t.Run("should list other users by last activity", func(t *testing.T) {
		req := require.New(t)
		conn := mocks.NewMockIConnection(ctrl)
		users := []domain.User{{ID: "u2", Name: "Bob"}}
		conn.EXPECT().QueryUsers(gomock.Any(),
			domain.UserFilter{ExcludeIDs: []string{"u1"}},
			domain.UserSort{LastActive: domain.Descending},
			domain.QueryOptions{Limit: SuggestionLimit},
		).Return(users, nil)
		svc := NewFriendService(log, connected(ctrl, alice, conn), nil)

		got, err := svc.Suggestions(ctx, alice)

		req.NoError(err)
		req.Equal(users, got)
	})

	t.Run("should refuse a session bound to someone else", func(t *testing.T) {
		conn := mocks.NewMockIConnection(ctrl)
		svc := NewFriendService(log, connected(ctrl, bob, conn), nil)

		_, err := svc.Suggestions(ctx, alice)

		require.ErrorIs(t, err, errors.ErrNotConnected)
	})

	t.Run("should fail when not connected", func(t *testing.T) {
		session := mocks.NewMockISession(ctrl)
		session.EXPECT().Identity().Return(domain.Identity{}, false)
		session.EXPECT().Connection().Return(nil, errors.ErrNotConnected)
		svc := NewFriendService(log, session, nil)

		_, err := svc.Suggestions(ctx, alice)

		require.ErrorIs(t, err, errors.ErrNotConnected)
	})
}

func TestFriendService_StartChat(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx := context.Background()

	t.Run("should create a direct chat named after both users", func(t *testing.T) {
		req := require.New(t)
		var members []string
		var metadata domain.ChannelMetadata
		svc := NewFriendService(log, nil, creatorFunc(func(_ context.Context, identity domain.Identity, m []string, md domain.ChannelMetadata) (domain.Channel, error) {
			members, metadata = m, md
			return domain.Channel{ID: "c1", Name: md.Name}, nil
		}))

		channel, err := svc.StartChat(ctx, alice, domain.User{ID: "u2", Name: "Bob"})

		req.NoError(err)
		req.Equal("c1", channel.ID)
		req.Equal([]string{"u1", "u2"}, members)
		req.Equal("Alice, Bob", metadata.Name)
	})

	t.Run("should refuse a chat with oneself", func(t *testing.T) {
		svc := NewFriendService(log, nil, creatorFunc(func(context.Context, domain.Identity, []string, domain.ChannelMetadata) (domain.Channel, error) {
			t.Fatal("must not create")
			return domain.Channel{}, nil
		}))

		_, err := svc.StartChat(ctx, alice, alice.User())

		require.ErrorIs(t, err, errors.ErrChannelCreate)
	})
}

func TestNotificationService_Recent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Hour)

	conn := mocks.NewMockIConnection(ctrl)
	conn.EXPECT().QueryChannels(gomock.Any(),
		domain.ChannelFilter{Type: domain.DefaultChannelType, Members: []string{"u1"}},
		domain.ChannelSort{LastMessageAt: domain.Descending},
		domain.QueryOptions{Limit: NotificationLimit},
	).Return([]domain.Channel{
		{ID: "c1", Members: []domain.User{alice.User(), {ID: "u3", Name: "Carol"}}, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "c2", Members: []domain.User{alice.User(), bob.User()}, CreatedAt: now.Add(-2 * time.Hour), LastMessageAt: &at, UnreadCount: 1},
	}, nil)
	svc := NewNotificationService(connected(ctrl, alice, conn), projection.NewProjector(nil))

	rows, err := svc.Recent(context.Background(), alice, now)

	req.NoError(err)
	req.Len(rows, 2)
	req.Equal("Bob", rows[0].UserName)
	req.Equal("2h", rows[0].Timestamp)
	req.True(rows[0].Unread)
	req.Equal("Carol", rows[1].UserName)
	req.False(rows[1].Unread)
	req.Equal(projection.NotificationNewChat, rows[1].Type)
}

func TestConversationService(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	t.Run("should send a message", func(t *testing.T) {
		req := require.New(t)
		conn := mocks.NewMockIConnection(ctrl)
		conn.EXPECT().SendMessage(gomock.Any(), "c1", "hello").Return(domain.Message{ID: "m1", Text: "hello"}, nil)
		svc := NewConversationService(connected(ctrl, alice, conn))

		message, err := svc.Send(ctx, alice, "c1", "hello")

		req.NoError(err)
		req.Equal("m1", message.ID)
	})

	t.Run("should reject an empty message", func(t *testing.T) {
		conn := mocks.NewMockIConnection(ctrl)
		conn.EXPECT().SendMessage(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		svc := NewConversationService(connected(ctrl, alice, conn))

		_, err := svc.Send(ctx, alice, "c1", "")
		require.Error(t, err)
		_, err = svc.Send(ctx, alice, "", "hello")
		require.Error(t, err)
	})

	t.Run("should mark a channel read", func(t *testing.T) {
		req := require.New(t)
		conn := mocks.NewMockIConnection(ctrl)
		boom := stderrors.New("boom")
		conn.EXPECT().MarkRead(gomock.Any(), "c1").Return(nil)
		conn.EXPECT().MarkRead(gomock.Any(), "c2").Return(boom)
		svc := NewConversationService(connected(ctrl, alice, conn))

		req.NoError(svc.MarkRead(ctx, alice, "c1"))
		req.ErrorIs(svc.MarkRead(ctx, alice, "c2"), boom)
	})
}

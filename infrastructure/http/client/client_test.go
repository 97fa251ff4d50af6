package client

import (
	"context"
	"log/slog"
	"messengy/auth"
	"messengy/domain"
	"messengy/errors"
	"messengy/infrastructure/http/server"
	"messengy/infrastructure/memory"
	"messengy/infrastructure/storage"
	"messengy/services"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	publishableKey = "pk_test"
	apiKey         = "chat_key"
)

func startServer(t *testing.T) string {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := storage.Open("", log, false)
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer("secret", time.Hour)
	backend := memory.NewBackend(log, issuer, 16)
	accounts := services.NewAuthService(log, storage.NewUserRepository(db), backend, issuer)
	srv := server.NewServer(log, server.Config{PublishableKey: publishableKey, APIKey: apiKey, PingInterval: time.Second},
		backend, accounts, issuer)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		_ = db.Close()
	})
	return ts.URL
}

func signUp(t *testing.T, addr, email, first string) (*IdentityClient, domain.Session) {
	identity, err := NewIdentityClient(addr, publishableKey)
	require.NoError(t, err)
	session, err := identity.Register(context.Background(), auth.SignUpRequest{Email: email, Password: "ComplexPass123!", FirstName: first})
	require.NoError(t, err)
	return identity, session
}

func connect(t *testing.T, addr string, identity *IdentityClient, session domain.Session) *Connection {
	backend, err := NewBackend(slog.Default(), addr, apiKey, 16)
	require.NoError(t, err)
	credential, err := identity.Issue(context.Background(), session.Identity, domain.CredentialPurposeChat)
	require.NoError(t, err)
	conn, err := backend.Connect(context.Background(), session.Identity, credential)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return conn.(*Connection)
}

func waitFor(t *testing.T, conn *Connection, eventType domain.EventType) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-conn.Events():
			require.True(t, ok, "event stream closed")
			if evt.Type == eventType {
				return evt
			}
		case <-timeout:
			require.FailNow(t, "event not received", string(eventType))
		}
	}
}

func Test_Round_Trip_Through_Server(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	addr := startServer(t)

	// Given two registered users connected to the server
	adaID, ada := signUp(t, addr, "ada@example.com", "Ada")
	bobID, bob := signUp(t, addr, "bob@example.com", "Bob")
	adaConn := connect(t, addr, adaID, ada)
	bobConn := connect(t, addr, bobID, bob)

	// When Ada starts a chat with Bob
	channel, err := adaConn.CreateChannel(ctx, domain.DefaultChannelType, []string{ada.Identity.ID, bob.Identity.ID},
		domain.ChannelMetadata{Name: "Ada, Bob"})
	req.NoError(err)

	// Then both are told they were added
	req.Equal(channel.ID, waitFor(t, adaConn, domain.EventAddedToChannel).ChannelID)
	req.Equal(channel.ID, waitFor(t, bobConn, domain.EventAddedToChannel).ChannelID)

	// When Ada writes
	message, err := adaConn.SendMessage(ctx, channel.ID, "hello Bob")
	req.NoError(err)

	// Then Bob receives it and sees it unread
	evt := waitFor(t, bobConn, domain.EventMessageNew)
	req.Equal(message.ID, evt.Message.ID)
	count, err := bobConn.CountUnread(ctx)
	req.NoError(err)
	req.Equal(1, count)

	channels, err := bobConn.QueryChannels(ctx,
		domain.ChannelFilter{Type: domain.DefaultChannelType, Members: []string{bob.Identity.ID}},
		domain.ChannelSort{LastMessageAt: domain.Descending}, domain.QueryOptions{Limit: 30, State: true})
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal("hello Bob", channels[0].Messages[0].Text)
	req.Equal(1, channels[0].UnreadCount)

	// When Bob reads the channel
	req.NoError(bobConn.MarkRead(ctx, channel.ID))
	waitFor(t, bobConn, domain.EventMarkRead)
	count, err = bobConn.CountUnread(ctx)
	req.NoError(err)
	req.Zero(count)

	// And users can be discovered
	users, err := adaConn.QueryUsers(ctx, domain.UserFilter{ExcludeIDs: []string{ada.Identity.ID}},
		domain.UserSort{LastActive: domain.Descending}, domain.QueryOptions{Limit: 20})
	req.NoError(err)
	req.Len(users, 1)
	req.Equal("Bob", users[0].Name)
	req.True(users[0].Online)
}

func Test_Errors_Cross_The_Wire(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	addr := startServer(t)
	adaID, ada := signUp(t, addr, "ada@example.com", "Ada")
	adaConn := connect(t, addr, adaID, ada)

	_, err := adaConn.CreateChannel(ctx, "", []string{ada.Identity.ID, "ghost"}, domain.ChannelMetadata{})
	req.ErrorIs(err, errors.ErrInvalidMember)

	_, err = adaConn.SendMessage(ctx, "missing", "hi")
	req.ErrorIs(err, errors.ErrChannelNotFound)

	_, err = adaID.Login(ctx, auth.SignInRequest{Email: "ada@example.com", Password: "WrongPass123!"})
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, err = adaID.Register(ctx, auth.SignUpRequest{Email: "ada@example.com", Password: "ComplexPass123!"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// A wrong API key is refused before the websocket upgrade
	backend, err := NewBackend(slog.Default(), addr, "wrong", 4)
	req.NoError(err)
	_, err = backend.Connect(ctx, ada.Identity, domain.Credential(ada.Token))
	req.ErrorIs(err, errors.ErrAuth)

	// Signed out clients cannot issue credentials
	adaID.Forget()
	_, err = adaID.Issue(ctx, ada.Identity, domain.CredentialPurposeChat)
	req.ErrorIs(err, errors.ErrSignedOut)
}

func Test_Close_Ends_Event_Stream(t *testing.T) {
	req := require.New(t)
	addr := startServer(t)
	adaID, ada := signUp(t, addr, "ada@example.com", "Ada")
	conn := connect(t, addr, adaID, ada)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(conn.Close(ctx))

	for range conn.Events() {
	}
	req.NoError(conn.Close(ctx))
}

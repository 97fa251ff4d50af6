package storage

import (
	"log/slog"
	"messengy/domain"
	apperrors "messengy/errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	db, err := Open("", slog.Default(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	// Given a new account
	created, err := repository.CreateUser("Ada@example.com", "hash", Profile{FirstName: "Ada", LastName: "Lovelace"})
	req.NoError(err)
	req.NotEmpty(created.ID)

	// Then it can be read by email, case insensitively, and by id
	byEmail, err := repository.GetUserByEmail("ada@example.com")
	req.NoError(err)
	req.Equal(created.ID, byEmail.ID)
	req.Equal("Ada Lovelace", byEmail.DisplayName())

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal("hash", byID.PasswordHash)
	req.Equal([]string{"user"}, byID.Roles)
}

func Test_Create_User_Twice(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.CreateUser("ada@example.com", "hash", Profile{})
	req.NoError(err)

	_, err = repository.CreateUser("ada@example.com", "other", Profile{})
	req.ErrorIs(err, apperrors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
	_, err = repository.GetUserByID("nope")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func Test_DisplayName_Falls_Back_To_Email(t *testing.T) {
	require.Equal(t, "grace", User{Email: "grace@example.com"}.DisplayName())
}

func Test_ChannelCache_Round_Trip(t *testing.T) {
	req := require.New(t)
	cache := NewChannelCache(openDB(t), slog.Default())

	// Given no snapshot
	channels, err := cache.LoadChannels("u1")
	req.NoError(err)
	req.Nil(channels)

	// When a snapshot is saved
	last := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)
	saved := []domain.Channel{
		{ID: "c2", Type: "messaging", Members: []domain.User{{ID: "u1"}, {ID: "u2", Name: "Bob"}},
			CreatedAt: last.Add(-time.Hour), LastMessageAt: &last, UnreadCount: 3,
			Messages: []domain.Message{{ID: "m1", ChannelID: "c2", SenderID: "u2", Text: "hi", CreatedAt: last}}},
		{ID: "c1", Type: "messaging", Members: []domain.User{{ID: "u1"}}, CreatedAt: last.Add(-2 * time.Hour)},
	}
	req.NoError(cache.SaveChannels("u1", saved))

	// Then it is loaded back with timestamps intact
	channels, err = cache.LoadChannels("u1")
	req.NoError(err)
	req.Len(channels, 2)
	req.Equal("c2", channels[0].ID)
	req.True(last.Equal(*channels[0].LastMessageAt))
	req.Equal(3, channels[0].UnreadCount)
	req.Equal("hi", channels[0].Messages[0].Text)
	req.Nil(channels[1].LastMessageAt)

	// And other identities have their own snapshot
	other, err := cache.LoadChannels("u2")
	req.NoError(err)
	req.Nil(other)
}

func Test_SessionStore(t *testing.T) {
	req := require.New(t)
	store := NewSessionStore(openDB(t))

	_, ok, err := store.Load()
	req.NoError(err)
	req.False(ok)

	session := domain.Session{
		Identity:  domain.Identity{ID: "u1", DisplayName: "Ada"},
		Token:     "token",
		ExpiresAt: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC),
	}
	req.NoError(store.Save(session))

	loaded, ok, err := store.Load()
	req.NoError(err)
	req.True(ok)
	req.Equal(session.Identity, loaded.Identity)
	req.True(session.ExpiresAt.Equal(loaded.ExpiresAt))

	req.NoError(store.Clear())
	_, ok, err = store.Load()
	req.NoError(err)
	req.False(ok)
}

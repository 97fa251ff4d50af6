//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "messengy/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string, profile Profile) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id string) (User, error)
}

// Profile is the public part of an account, shown as the chat display name.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User is an account of the reference identity server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Profile      Profile   `json:"profile"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName joins first and last name, falling back to the email local part.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName)
	if name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

func emailKey(email string) []byte {
	return []byte("user:email:" + strings.ToLower(email))
}

func idKey(id string) []byte {
	return []byte("user:id:" + id)
}

// CreateUser persists the account under its email and indexes its id.
// Fails with ErrUserAlreadyExists when the email is taken.
func (r *UserRepository) CreateUser(email, hashedPassword string, profile Profile) (User, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		Profile:      profile,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}
	data, err := marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := emailKey(email)
		if _, err := txn.Get(key); err == nil {
			return apperrors.ErrUserAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idKey(user.ID), key)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		return readUser(txn, emailKey(email), &user)
	})
	return user, err
}

func (r *UserRepository) GetUserByID(id string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return notFound(err)
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readUser(txn, key, &user)
	})
	return user, err
}

func readUser(txn *badger.Txn, key []byte, user *User) error {
	item, err := txn.Get(key)
	if err != nil {
		return notFound(err)
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, user)
	})
}

func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrUserNotFound
	}
	return err
}

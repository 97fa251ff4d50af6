package storage

import (
	"errors"
	"messengy/domain"

	"github.com/dgraph-io/badger/v4"
)

var sessionKey = []byte("session:current")

// SessionStore keeps the signed in session across runs, the way a mobile token cache does.
type SessionStore struct {
	db *badger.DB
}

func NewSessionStore(db *badger.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(session domain.Session) error {
	data, err := marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey, data)
	})
}

// Load returns false when no session was saved.
func (s *SessionStore) Load() (domain.Session, bool, error) {
	var session domain.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &session)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

func (s *SessionStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	})
}

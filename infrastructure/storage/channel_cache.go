package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"messengy/domain"

	"github.com/dgraph-io/badger/v4"
)

// ChannelCache keeps the last channel list successfully queried for each identity.
// It backs degraded reads while the backend cannot be reached.
type ChannelCache struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChannelCache(db *badger.DB, log *slog.Logger) *ChannelCache {
	return &ChannelCache{db: db, log: log}
}

func channelsKey(userID string) []byte {
	return []byte("channels:" + userID)
}

// SaveChannels overwrites the snapshot of userID.
func (c *ChannelCache) SaveChannels(userID string, channels []domain.Channel) error {
	data, err := marshal(channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(channelsKey(userID), data)
	})
}

// LoadChannels returns the snapshot of userID, nil when none was saved.
func (c *ChannelCache) LoadChannels(userID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelsKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &channels)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.log.Debug("No channel snapshot", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading channels of %s: %w", userID, err)
	}
	return channels, nil
}

package memory

import (
	"context"
	"fmt"
	"messengy/domain"
	"messengy/errors"
	"sync/atomic"

	"github.com/google/uuid"
)

// Connection is the handle of one user on the memory backend.
type Connection struct {
	id      string
	userID  string
	backend *Backend
	events  chan domain.Event
	closed  atomic.Bool
}

func newConnection(b *Backend, userID string, bufferSize int) *Connection {
	return &Connection{id: uuid.NewString(), userID: userID, backend: b, events: make(chan domain.Event, bufferSize)}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) UserID() string { return c.userID }

func (c *Connection) check() error {
	if c.closed.Load() {
		return fmt.Errorf("%w: connection %s is closed", errors.ErrConnection, c.id)
	}
	return nil
}

func (c *Connection) QueryChannels(ctx context.Context, filter domain.ChannelFilter, sort domain.ChannelSort,
	opts domain.QueryOptions) ([]domain.Channel, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.backend.QueryChannels(ctx, c.userID, filter, sort, opts)
}

func (c *Connection) CreateChannel(ctx context.Context, channelType string, members []string,
	metadata domain.ChannelMetadata) (domain.Channel, error) {
	if err := c.check(); err != nil {
		return domain.Channel{}, err
	}
	return c.backend.CreateChannel(ctx, c.userID, channelType, members, metadata)
}

func (c *Connection) SendMessage(ctx context.Context, channelID, text string) (domain.Message, error) {
	if err := c.check(); err != nil {
		return domain.Message{}, err
	}
	return c.backend.SendMessage(ctx, c.userID, channelID, text)
}

func (c *Connection) MarkRead(ctx context.Context, channelID string) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.backend.MarkRead(ctx, c.userID, channelID)
}

func (c *Connection) CountUnread(ctx context.Context) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	return c.backend.CountUnread(ctx, c.userID)
}

func (c *Connection) QueryUsers(ctx context.Context, filter domain.UserFilter, sort domain.UserSort,
	opts domain.QueryOptions) ([]domain.User, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.backend.QueryUsers(ctx, filter, sort, opts)
}

// Events is closed by Close.
func (c *Connection) Events() <-chan domain.Event {
	return c.events
}

// Close is idempotent.
func (c *Connection) Close(_ context.Context) error {
	if c.closed.CompareAndSwap(false, true) {
		c.backend.disconnect(c)
	}
	return nil
}

// Package memory is an in-process chat backend: users, channels, messages and read
// markers held in memory, with events pushed to the connections of channel members.
// It stands in for the hosted chat service in tests and in the reference server.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 100
	// stateMessages is the number of latest messages returned with a channel state.
	stateMessages = 25
)

// CredentialVerifier returns the user a credential was issued for.
type CredentialVerifier interface {
	Verify(credential domain.Credential) (string, error)
}

type channelRecord struct {
	channel  domain.Channel
	members  []string
	messages []domain.Message
	reads    map[string]time.Time
}

type Backend struct {
	log        *slog.Logger
	verifier   CredentialVerifier
	registry   *Registry
	bufferSize int

	mu       sync.RWMutex
	now      func() time.Time
	lastTick time.Time
	users    map[string]domain.User
	channels map[string]*channelRecord
}

func NewBackend(log *slog.Logger, verifier CredentialVerifier, bufferSize int) *Backend {
	return &Backend{
		log:        log,
		verifier:   verifier,
		registry:   NewRegistry(log),
		bufferSize: max(bufferSize, 1),
		now:        time.Now,
		users:      make(map[string]domain.User),
		channels:   make(map[string]*channelRecord),
	}
}

// Stats is a point in time summary of the backend, for debugging.
func (b *Backend) Stats() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	messages := 0
	for _, r := range b.channels {
		messages += len(r.messages)
	}
	return map[string]any{
		"users":       len(b.users),
		"channels":    len(b.channels),
		"messages":    messages,
		"connections": b.registry.Count(),
	}
}

// UpsertUser creates the user or updates its profile. Presence is kept.
func (b *Backend) UpsertUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID == "" {
		return fmt.Errorf("%w: empty user id", errors.ErrInvalidMember)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsertUser(user)
	return nil
}

// upsertUser must be called with mu held.
func (b *Backend) upsertUser(user domain.User) {
	existing, ok := b.users[user.ID]
	if !ok {
		b.users[user.ID] = domain.User{ID: user.ID, Name: user.Name, Image: user.Image}
		return
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	if user.Image != "" {
		existing.Image = user.Image
	}
	b.users[user.ID] = existing
}

// Connect opens a connection for identity once its credential is verified.
// The first event of every connection is connection.ok.
func (b *Backend) Connect(ctx context.Context, identity domain.Identity, credential domain.Credential) (contract.IConnection, error) {
	return b.Open(ctx, identity, credential)
}

// Open is Connect returning the concrete connection.
func (b *Backend) Open(ctx context.Context, identity domain.Identity, credential domain.Credential) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	userID, err := b.verifier.Verify(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrAuth, err)
	}
	if userID != identity.ID {
		return nil, fmt.Errorf("%w: credential issued for %s, not %s", errors.ErrAuth, userID, identity.ID)
	}

	b.mu.Lock()
	b.upsertUser(identity.User())
	b.touch(identity.ID)
	at := b.clock()
	b.mu.Unlock()

	conn := newConnection(b, identity.ID, b.bufferSize)
	conn.events <- domain.Event{Type: domain.EventConnectionOK, UserID: identity.ID, CreatedAt: at}
	b.registry.Subscribe(conn)
	b.log.Info("Connection opened", "user_id", identity.ID, "connection_id", conn.id, "connections", b.registry.Count())
	return conn, nil
}

func (b *Backend) disconnect(conn *Connection) {
	if !b.registry.Unsubscribe(conn) {
		return
	}
	b.mu.Lock()
	b.touch(conn.userID)
	b.mu.Unlock()
	b.log.Info("Connection closed", "user_id", conn.userID, "connection_id", conn.id)
}

// QueryChannels lists the channels visible to userID matching filter.
func (b *Backend) QueryChannels(ctx context.Context, userID string, filter domain.ChannelFilter,
	order domain.ChannelSort, opts domain.QueryOptions) ([]domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := lo.Filter(lo.Values(b.channels), func(r *channelRecord, _ int) bool {
		if filter.Type != "" && r.channel.Type != filter.Type {
			return false
		}
		return slices.Contains(r.members, userID) && lo.Every(r.members, filter.Members)
	})
	sort.Slice(records, func(i, j int) bool {
		return lessRecent(records[i].channel, records[j].channel, order.LastMessageAt == domain.Ascending)
	})

	records = page(records, opts)
	return lo.Map(records, func(r *channelRecord, _ int) domain.Channel {
		return b.view(r, userID, opts.State)
	}), nil
}

// lessRecent orders by last message, channels without messages after the others,
// then by creation and id.
func lessRecent(a, b domain.Channel, ascending bool) bool {
	x, y := a.LastMessageAt, b.LastMessageAt
	switch {
	case x == nil && y != nil:
		return false
	case x != nil && y == nil:
		return true
	case x != nil && !x.Equal(*y):
		if ascending {
			return x.Before(*y)
		}
		return x.After(*y)
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.After(b.CreatedAt)
	default:
		return a.ID < b.ID
	}
}

func page[T any](items []T, opts domain.QueryOptions) []T {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	limit = min(limit, maxQueryLimit)
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[max(opts.Offset, 0):]
	return items[:min(limit, len(items))]
}

// CreateChannel creates a channel of members. Without an id in metadata, a channel of the
// same type and member set is returned as is instead of creating a second one.
func (b *Backend) CreateChannel(ctx context.Context, userID, channelType string, members []string,
	metadata domain.ChannelMetadata) (domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return domain.Channel{}, err
	}
	if channelType == "" {
		channelType = domain.DefaultChannelType
	}
	members = lo.Uniq(members)
	if len(members) == 0 {
		return domain.Channel{}, fmt.Errorf("%w: no member", errors.ErrInvalidMember)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range members {
		if _, ok := b.users[id]; !ok {
			return domain.Channel{}, fmt.Errorf("%w: unknown user %s", errors.ErrInvalidMember, id)
		}
	}

	if metadata.ID != "" {
		if _, ok := b.channels[metadata.ID]; ok {
			return domain.Channel{}, fmt.Errorf("%w: %s", errors.ErrDuplicateChannel, metadata.ID)
		}
	} else if existing, ok := b.distinct(channelType, members); ok {
		return b.view(existing, userID, true), nil
	}

	id := metadata.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := b.clock()
	record := &channelRecord{
		channel: domain.Channel{
			ID:        id,
			Type:      channelType,
			Name:      metadata.Name,
			Image:     metadata.Image,
			CreatedBy: userID,
			CreatedAt: createdAt,
		},
		members: members,
		reads:   make(map[string]time.Time, len(members)),
	}
	for _, m := range members {
		record.reads[m] = createdAt
	}
	b.channels[id] = record
	b.log.Info("Channel created", "channel_id", id, "created_by", userID, "members", len(members))

	for _, m := range members {
		b.registry.Deliver(m, domain.Event{Type: domain.EventAddedToChannel, ChannelID: id, UserID: m, CreatedAt: createdAt})
	}
	return b.view(record, userID, true), nil
}

// distinct must be called with mu held.
func (b *Backend) distinct(channelType string, members []string) (*channelRecord, bool) {
	return lo.Find(lo.Values(b.channels), func(r *channelRecord) bool {
		return r.channel.Type == channelType && len(r.members) == len(members) && lo.Every(r.members, members)
	})
}

func (b *Backend) SendMessage(ctx context.Context, userID, channelID, text string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := b.memberRecord(userID, channelID)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		SenderID:  userID,
		Text:      text,
		CreatedAt: b.clock(),
	}
	record.messages = append(record.messages, message)
	record.channel.LastMessageAt = &message.CreatedAt
	record.reads[userID] = message.CreatedAt
	b.touch(userID)

	for _, m := range record.members {
		copied := message
		b.registry.Deliver(m, domain.Event{Type: domain.EventMessageNew, ChannelID: channelID, UserID: userID,
			Message: &copied, CreatedAt: message.CreatedAt})
	}
	return message, nil
}

// MarkRead moves the read marker of userID to now.
func (b *Backend) MarkRead(ctx context.Context, userID, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := b.memberRecord(userID, channelID)
	if err != nil {
		return err
	}
	at := b.clock()
	record.reads[userID] = at
	b.registry.Deliver(userID, domain.Event{Type: domain.EventMarkRead, ChannelID: channelID, UserID: userID, CreatedAt: at})
	return nil
}

// CountUnread sums, over the channels of userID, the messages of others after its read marker.
func (b *Backend) CountUnread(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, r := range b.channels {
		if slices.Contains(r.members, userID) {
			total += unread(r, userID)
		}
	}
	return total, nil
}

// RemoveMember takes userID out of a channel. The removed user is notified, the others
// see the channel updated.
func (b *Backend) RemoveMember(ctx context.Context, channelID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := b.memberRecord(userID, channelID)
	if err != nil {
		return err
	}
	record.members = lo.Without(record.members, userID)
	delete(record.reads, userID)

	at := b.clock()
	b.registry.Deliver(userID, domain.Event{Type: domain.EventRemovedFromChannel, ChannelID: channelID, UserID: userID, CreatedAt: at})
	for _, m := range record.members {
		b.registry.Deliver(m, domain.Event{Type: domain.EventChannelUpdated, ChannelID: channelID, UserID: userID, CreatedAt: at})
	}
	return nil
}

// QueryUsers lists users, most recently active first.
func (b *Backend) QueryUsers(ctx context.Context, filter domain.UserFilter, order domain.UserSort,
	opts domain.QueryOptions) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	users := lo.Filter(lo.Values(b.users), func(u domain.User, _ int) bool {
		return !slices.Contains(filter.ExcludeIDs, u.ID)
	})
	sort.Slice(users, func(i, j int) bool {
		x, y := users[i].LastActive, users[j].LastActive
		switch {
		case x == nil && y != nil:
			return false
		case x != nil && y == nil:
			return true
		case x != nil && !x.Equal(*y):
			if order.LastActive == domain.Ascending {
				return x.Before(*y)
			}
			return x.After(*y)
		default:
			return users[i].ID < users[j].ID
		}
	})
	return lo.Map(page(users, opts), func(u domain.User, _ int) domain.User {
		return b.withPresence(u)
	}), nil
}

// memberRecord must be called with mu held.
func (b *Backend) memberRecord(userID, channelID string) (*channelRecord, error) {
	record, ok := b.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrChannelNotFound, channelID)
	}
	if !slices.Contains(record.members, userID) {
		return nil, fmt.Errorf("%w: %s is not a member of %s", errors.ErrInvalidMember, userID, channelID)
	}
	return record, nil
}

// view must be called with mu held.
func (b *Backend) view(r *channelRecord, userID string, withState bool) domain.Channel {
	channel := r.channel
	if channel.LastMessageAt != nil {
		at := *channel.LastMessageAt
		channel.LastMessageAt = &at
	}
	channel.Members = lo.Map(r.members, func(id string, _ int) domain.User {
		return b.withPresence(b.users[id])
	})
	channel.UnreadCount = unread(r, userID)
	if withState {
		channel.Messages = slices.Clone(r.messages[max(len(r.messages)-stateMessages, 0):])
	}
	return channel
}

func (b *Backend) withPresence(u domain.User) domain.User {
	u.Online = b.registry.Online(u.ID)
	if u.LastActive != nil {
		at := *u.LastActive
		u.LastActive = &at
	}
	return u
}

func unread(r *channelRecord, userID string) int {
	marker := r.reads[userID]
	return lo.CountBy(r.messages, func(m domain.Message) bool {
		return m.SenderID != userID && m.CreatedAt.After(marker)
	})
}

// touch must be called with mu held.
func (b *Backend) touch(userID string) {
	u, ok := b.users[userID]
	if !ok {
		return
	}
	at := b.clock()
	u.LastActive = &at
	b.users[userID] = u
}

// clock returns strictly increasing timestamps so that server side ordering is total.
// It must be called with mu held, or before the backend is shared.
func (b *Backend) clock() time.Time {
	now := b.now().UTC()
	if !now.After(b.lastTick) {
		now = b.lastTick.Add(time.Nanosecond)
	}
	b.lastTick = now
	return now
}

// Package channels keeps the in-memory channel list view of the connected identity
// fresh against the chat backend. Every change is a full re-query: the view is
// recomputed, never patched, so concurrent additions cannot be missed.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

var validate = validator.New()

// ListResult is one published state of the channel list view.
// Stale is set when the last query failed and Channels comes from the cache.
type ListResult struct {
	Channels []domain.Channel
	Err      error
	Stale    bool
	At       time.Time
}

// Listener is invoked after every view change, one result at a time and in the order
// the view changed, from whichever goroutine published the change.
// It must return quickly and must not call ListChannels or CreateChannel.
type Listener interface {
	OnChannelSetChanged(result ListResult)
}

type ListenerFunc func(result ListResult)

func (f ListenerFunc) OnChannelSetChanged(result ListResult) { f(result) }

type Config struct {
	ChannelType string
	Limit       int
	// Debounce delays an event driven re-query so that bursts share one query.
	Debounce time.Duration
}

type createRequest struct {
	Members  []string `validate:"required,unique,dive,required"`
	Metadata domain.ChannelMetadata
}

type Synchronizer struct {
	log     *slog.Logger
	session contract.ISession
	cache   contract.IChannelCache
	index   contract.IChannelIndex
	config  Config
	flights singleflight.Group

	mu   sync.RWMutex
	view ListResult
	// generation advances on every change that makes older queries obsolete.
	// viewGeneration is the generation of the published view: older results are dropped.
	generation     uint64
	viewGeneration uint64

	// publishMu keeps the view, the cache, the index and the listeners in the same order.
	publishMu sync.Mutex

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	pending chan struct{}
}

// NewSynchronizer builds a synchronizer reading through session.
// cache and index are optional.
func NewSynchronizer(log *slog.Logger, session contract.ISession, cache contract.IChannelCache,
	index contract.IChannelIndex, config Config) *Synchronizer {
	if config.ChannelType == "" {
		config.ChannelType = domain.DefaultChannelType
	}
	return &Synchronizer{
		log:       log,
		session:   session,
		cache:     cache,
		index:     index,
		config:    config,
		listeners: make(map[int]Listener),
		pending:   make(chan struct{}, 1),
	}
}

// ListChannels queries every channel identity is a member of, most recent activity first.
// Concurrent calls for the same identity share one query, unless a change happened
// since that query started.
// Fails with ErrNotConnected unless the session is connected for identity.
func (s *Synchronizer) ListChannels(ctx context.Context, identity domain.Identity) ([]domain.Channel, error) {
	return s.list(ctx, identity, s.currentGeneration())
}

func (s *Synchronizer) list(ctx context.Context, identity domain.Identity, generation uint64) ([]domain.Channel, error) {
	conn, err := s.connectionFor(identity)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%d", identity.ID, generation)
	v, err, _ := s.flights.Do(key, func() (interface{}, error) {
		channels, err := conn.QueryChannels(ctx,
			domain.ChannelFilter{Type: s.config.ChannelType, Members: []string{identity.ID}},
			domain.ChannelSort{LastMessageAt: domain.Descending},
			domain.QueryOptions{Limit: s.config.Limit, Watch: true, State: true},
		)
		if err != nil {
			err = fmt.Errorf("querying channels of %s: %w", identity.ID, err)
			if s.boundTo(identity.ID) {
				s.degrade(generation, identity.ID, err)
			}
			return nil, err
		}
		ordered := domain.OrderChannels(channels)
		if !s.publish(ctx, generation, identity.ID, ordered) && !s.boundTo(identity.ID) {
			return nil, fmt.Errorf("%w: session of %s released during the query", errors.ErrNotConnected, identity.ID)
		}
		return ordered, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.Channel)), nil
}

// CreateChannel creates a channel of the configured type, then refreshes the view so the
// channel shows up in the next listing. members must contain identity.
func (s *Synchronizer) CreateChannel(ctx context.Context, identity domain.Identity, members []string,
	metadata domain.ChannelMetadata) (domain.Channel, error) {
	if err := validate.Struct(createRequest{Members: members, Metadata: metadata}); err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %w", errors.ErrChannelCreate, err)
	}
	if !lo.Contains(members, identity.ID) {
		return domain.Channel{}, fmt.Errorf("%w: members must include %s", errors.ErrChannelCreate, identity.ID)
	}

	conn, err := s.connectionFor(identity)
	if err != nil {
		return domain.Channel{}, err
	}

	channel, err := conn.CreateChannel(ctx, s.config.ChannelType, members, metadata)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %w", errors.ErrChannelCreate, err)
	}
	s.log.Info("Channel created", "channel_id", channel.ID, "members", len(members))

	// The channel exists server side even if the refresh fails; the view carries the error.
	if _, err := s.list(ctx, identity, s.advance()); err != nil {
		s.log.Warn("Refresh after channel creation failed", "channel_id", channel.ID, "error", err)
	}
	return channel, nil
}

// Subscribe registers a listener of view changes. The returned func unsubscribes it.
func (s *Synchronizer) Subscribe(listener Listener) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// Snapshot returns the current view.
func (s *Synchronizer) Snapshot() ListResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.view
	result.Channels = slices.Clone(s.view.Channels)
	return result
}

// Search returns the channels of the current view matching text, best match first.
func (s *Synchronizer) Search(ctx context.Context, text string) ([]domain.Channel, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.ErrEmptyQuery
	}
	view := s.Snapshot().Channels
	if s.index == nil {
		needle := strings.ToLower(text)
		return lo.Filter(view, func(c domain.Channel, _ int) bool {
			return strings.Contains(strings.ToLower(c.Name), needle) ||
				lo.ContainsBy(c.Members, func(u domain.User) bool {
					return strings.Contains(strings.ToLower(u.Name), needle)
				})
		}), nil
	}

	ids, err := s.index.Search(ctx, text, len(view))
	if err != nil {
		return nil, fmt.Errorf("searching channels: %w", err)
	}
	byID := lo.SliceToMap(view, func(c domain.Channel) (string, domain.Channel) { return c.ID, c })
	return lo.FilterMap(ids, func(id string, _ int) (domain.Channel, bool) {
		c, ok := byID[id]
		return c, ok
	}), nil
}

// TotalUnread delegates to the backend count primitive.
func (s *Synchronizer) TotalUnread(ctx context.Context) (int, error) {
	conn, err := s.session.Connection()
	if err != nil {
		return 0, err
	}
	return conn.CountUnread(ctx)
}

// Run drains the session events. Relevant events schedule a re-query; the queries run on
// a second goroutine so the event loop never blocks on the network.
func (s *Synchronizer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.drain(ctx)
	}()
	defer wg.Wait()

	events := s.session.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-events:
			s.handle(evt)
		}
	}
}

func (s *Synchronizer) handle(evt domain.Event) {
	switch {
	case evt.Type == domain.EventConnectionChanged:
		switch evt.State {
		case domain.Connected:
			s.advance()
			s.schedule()
		case domain.Disconnected:
			s.reset()
		case domain.Failed:
			s.degrade(s.invalidate(), evt.UserID, fmt.Errorf("%w: session %s", errors.ErrNotConnected, evt.State))
		}
	case evt.AffectsChannelList():
		s.log.Debug("Channel list event", "event", evt.Type, "channel_id", evt.ChannelID)
		s.advance()
		s.schedule()
	default:
		s.log.Debug("Ignoring event", "event", evt.Type)
	}
}

// schedule never blocks: a pending signal already covers this event.
func (s *Synchronizer) schedule() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
		}

		if s.config.Debounce > 0 {
			timer := time.NewTimer(s.config.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		// Events received while debouncing are covered by the coming query.
		select {
		case <-s.pending:
		default:
		}

		s.refresh(ctx)
	}
}

func (s *Synchronizer) refresh(ctx context.Context) {
	identity, ok := s.session.Identity()
	if !ok || s.session.State() != domain.Connected {
		s.log.Debug("Skipping re-query, session not connected")
		return
	}
	if _, err := s.list(ctx, identity, s.currentGeneration()); err != nil {
		s.log.Warn("Channel re-query failed", "user_id", identity.ID, "error", err)
	}
}

func (s *Synchronizer) connectionFor(identity domain.Identity) (contract.IConnection, error) {
	current, ok := s.session.Identity()
	if ok && current.ID != identity.ID {
		return nil, fmt.Errorf("%w: session is bound to %s, not %s", errors.ErrNotConnected, current.ID, identity.ID)
	}
	return s.session.Connection()
}

// boundTo reports whether the session is still connected for userID.
func (s *Synchronizer) boundTo(userID string) bool {
	current, ok := s.session.Identity()
	return ok && current.ID == userID && s.session.State() == domain.Connected
}

func (s *Synchronizer) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// advance starts a new generation: queries started before it are not shared anymore.
func (s *Synchronizer) advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// invalidate starts a new generation and drops every result of the previous ones.
func (s *Synchronizer) invalidate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.viewGeneration = s.generation
	return s.generation
}

// publish makes channels the view, unless a newer view was published since the query
// started or the session is no longer bound to userID.
func (s *Synchronizer) publish(ctx context.Context, generation uint64, userID string, channels []domain.Channel) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	result := ListResult{Channels: channels, At: time.Now().UTC()}
	if !s.boundTo(userID) || !s.setView(generation, result) {
		s.log.Debug("Dropping outdated channel list", "user_id", userID, "generation", generation)
		return false
	}

	if s.cache != nil {
		if err := s.cache.SaveChannels(userID, channels); err != nil {
			s.log.Warn("Channel snapshot not saved", "user_id", userID, "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.Index(ctx, userID, channels); err != nil {
			s.log.Warn("Channel index not updated", "user_id", userID, "error", err)
		}
	}
	s.notify(result)
	return true
}

// degrade publishes the last snapshot known for userID, or an empty list, flagged with err.
func (s *Synchronizer) degrade(generation uint64, userID string, err error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	var channels []domain.Channel
	if s.cache != nil && userID != "" {
		cached, cerr := s.cache.LoadChannels(userID)
		if cerr != nil {
			s.log.Debug("No channel snapshot available", "user_id", userID, "error", cerr)
		}
		channels = cached
	}
	result := ListResult{Channels: channels, Err: err, Stale: true, At: time.Now().UTC()}
	if s.setView(generation, result) {
		s.notify(result)
	}
}

func (s *Synchronizer) reset() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	result := ListResult{At: time.Now().UTC()}
	if s.setView(s.invalidate(), result) {
		s.notify(result)
	}
}

// setView installs result unless the view already holds a newer generation.
func (s *Synchronizer) setView(generation uint64, result ListResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation < s.viewGeneration {
		return false
	}
	s.view = result
	s.viewGeneration = generation
	return true
}

func (s *Synchronizer) notify(result ListResult) {
	s.listenersMu.Lock()
	listeners := lo.Values(s.listeners)
	s.listenersMu.Unlock()

	for _, l := range listeners {
		copied := result
		copied.Channels = slices.Clone(result.Channels)
		l.OnChannelSetChanged(copied)
	}
}

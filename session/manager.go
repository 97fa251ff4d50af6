// Package session owns the single chat connection of the process and binds it
// to the identity provided by the external identity session provider.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Manager is the exclusive owner of the chat transport handle.
// At most one connection is alive at a time and at most one connect is in flight
// per identity: concurrent Connect calls for the same identity share the same attempt.
type Manager struct {
	log     *slog.Logger
	backend contract.IChatBackend
	flights singleflight.Group

	// connectMu serializes connect and teardown bodies, across identities.
	connectMu sync.Mutex

	mu            sync.RWMutex
	state         domain.ConnectionState
	identity      *domain.Identity
	conn          contract.IConnection
	lastErr       error
	pumpStop      chan struct{}
	pumpDone      chan struct{}
	cancelConnect context.CancelFunc

	events chan domain.Event
}

func NewManager(log *slog.Logger, backend contract.IChatBackend, eventBufferSize int) *Manager {
	return &Manager{
		log:     log,
		backend: backend,
		state:   domain.Disconnected,
		events:  make(chan domain.Event, eventBufferSize),
	}
}

// Connect binds the chat session to identity using a freshly fetched credential.
// A session bound to another identity is released first; if that fails the error
// is returned and the previous session is left untouched.
// No retry is attempted: on failure the state is Failed and the error surfaced.
func (m *Manager) Connect(ctx context.Context, identity domain.Identity, credentials contract.ICredentialProvider) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrAuth, err)
	}
	_, err, shared := m.flights.Do(identity.ID, func() (interface{}, error) {
		return nil, m.connect(ctx, identity, credentials)
	})
	if shared {
		m.log.Debug("Connect shared an in-flight attempt", "user_id", identity.ID)
	}
	return err
}

func (m *Manager) connect(ctx context.Context, identity domain.Identity, credentials contract.ICredentialProvider) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	current, conn := m.identity, m.conn
	m.mu.RUnlock()

	if conn != nil {
		if current.ID == identity.ID {
			return nil
		}
		m.log.Info("Releasing chat session before switching identity", "from", current.ID, "to", identity.ID)
		if err := m.teardown(ctx); err != nil {
			return fmt.Errorf("%w: releasing session of %s: %w", errors.ErrConnection, current.ID, err)
		}
	}

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.transition(domain.Connecting, &identity, nil, func() { m.cancelConnect = cancel })

	credential, err := credentials.Credential(connectCtx, domain.CredentialPurposeChat)
	if err != nil {
		err = fmt.Errorf("%w: %w", errors.ErrAuth, err)
		m.transition(domain.Failed, &identity, err, nil)
		return err
	}

	conn, err = m.backend.Connect(connectCtx, identity, credential)
	if err != nil {
		err = fmt.Errorf("%w: %w", errors.ErrConnection, err)
		m.transition(domain.Failed, &identity, err, nil)
		return err
	}

	m.transition(domain.Connected, &identity, nil, func() {
		m.conn = conn
		m.pumpStop = make(chan struct{})
		m.pumpDone = make(chan struct{})
		go m.pump(conn, m.pumpStop, m.pumpDone)
	})
	m.log.Info("Chat session connected", "user_id", identity.ID)
	return nil
}

// Disconnect releases the connection. Idempotent: without an active connection it
// only resets a Failed or Connecting state. An in-flight connect is cancelled first.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.RLock()
	cancel := m.cancelConnect
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	return m.teardown(ctx)
}

// teardown must be called with connectMu held.
func (m *Manager) teardown(ctx context.Context) error {
	m.mu.RLock()
	conn, stop, done, state := m.conn, m.pumpStop, m.pumpDone, m.state
	m.mu.RUnlock()

	if conn == nil {
		if state != domain.Disconnected {
			m.transition(domain.Disconnected, nil, nil, nil)
		}
		return nil
	}

	close(stop)
	<-done

	if err := conn.Close(ctx); err != nil {
		m.log.Warn("Chat connection release failed", "error", err)
		m.mu.Lock()
		if m.conn == conn {
			m.pumpStop = make(chan struct{})
			m.pumpDone = make(chan struct{})
			go m.pump(conn, m.pumpStop, m.pumpDone)
		}
		m.mu.Unlock()
		return err
	}

	m.transition(domain.Disconnected, nil, nil, func() {
		m.conn = nil
		m.pumpStop, m.pumpDone = nil, nil
	})
	m.log.Info("Chat session disconnected")
	return nil
}

// transition updates the state under lock, runs mutate while still locked,
// then publishes a connection.changed event.
func (m *Manager) transition(state domain.ConnectionState, identity *domain.Identity, err error, mutate func()) {
	m.mu.Lock()
	m.state = state
	m.identity = identity
	m.lastErr = err
	if state != domain.Connecting {
		m.cancelConnect = nil
	}
	if mutate != nil {
		mutate()
	}
	m.mu.Unlock()

	evt := domain.Event{Type: domain.EventConnectionChanged, State: state, CreatedAt: time.Now().UTC()}
	if identity != nil {
		evt.UserID = identity.ID
	}
	m.emit(evt)
}

// pump forwards the connection events into the manager stream until stopped.
// A closed event channel means the backend dropped the connection.
func (m *Manager) pump(conn contract.IConnection, stop, done chan struct{}) {
	defer close(done)
	events := conn.Events()
	for {
		select {
		case <-stop:
			return
		case evt, ok := <-events:
			if !ok {
				m.connectionLost(conn)
				return
			}
			m.emit(evt)
		}
	}
}

func (m *Manager) connectionLost(conn contract.IConnection) {
	m.mu.RLock()
	owned, identity := m.conn == conn, m.identity
	m.mu.RUnlock()
	if !owned {
		return
	}
	if cerr := conn.Close(context.Background()); cerr != nil {
		m.log.Debug("Closing lost connection", "error", cerr)
	}
	err := fmt.Errorf("%w: connection lost", errors.ErrConnection)
	m.log.Warn("Chat connection lost", "error", err)
	m.transition(domain.Failed, identity, err, func() {
		if m.conn == conn {
			m.conn = nil
		}
	})
}

func (m *Manager) emit(evt domain.Event) {
	select {
	case m.events <- evt:
	default:
		m.log.Warn("Session event buffer full, dropping event", "event", evt.Type)
	}
}

// Events is the stable event stream of the session, across reconnections.
func (m *Manager) Events() <-chan domain.Event {
	return m.events
}

func (m *Manager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the error of the last failed connect, if the state is Failed.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) Identity() (domain.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return domain.Identity{}, false
	}
	return *m.identity, true
}

// Connection returns the live connection, or ErrNotConnected.
func (m *Manager) Connection() (contract.IConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != domain.Connected || m.conn == nil {
		return nil, fmt.Errorf("%w: state is %s", errors.ErrNotConnected, m.state)
	}
	return m.conn, nil
}

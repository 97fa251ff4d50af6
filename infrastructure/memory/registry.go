package memory

import (
	"log/slog"
	"messengy/domain"
	"sync"
)

// Registry tracks the live connections of every user.
// A user may hold several connections (one per device), each with its own event buffer.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[string]map[string]*Connection // user -> connection id -> connection
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log, sessions: make(map[string]map[string]*Connection)}
}

func (r *Registry) Subscribe(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.userID]; !ok {
		r.sessions[conn.userID] = make(map[string]*Connection)
	}
	r.sessions[conn.userID][conn.id] = conn
}

// Unsubscribe removes conn and closes its event stream. It reports whether conn was registered.
// No empty set is left behind for a user without connections.
func (r *Registry) Unsubscribe(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.sessions[conn.userID]
	if !ok {
		return false
	}
	if _, ok := conns[conn.id]; !ok {
		return false
	}
	delete(conns, conn.id)
	if len(conns) == 0 {
		delete(r.sessions, conn.userID)
	}
	close(conn.events)
	return true
}

// Deliver pushes evt to every connection of userID without blocking.
// A connection whose buffer is full misses the event.
func (r *Registry) Deliver(userID string, evt domain.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.sessions[userID] {
		select {
		case conn.events <- evt:
		default:
			r.log.Warn("Connection buffer full, dropping event",
				"user_id", userID, "connection_id", conn.id, "event", evt.Type)
		}
	}
}

// Online reports whether userID holds at least one connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, conns := range r.sessions {
		total += len(conns)
	}
	return total
}

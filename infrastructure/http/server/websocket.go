package server

import (
	"context"
	"messengy/domain"
	"messengy/infrastructure/memory"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// handleEvents opens a backend connection for the token owner and streams its events
// as JSON text frames until either side goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := s.issuer.Validate(token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	identity := domain.Identity{ID: claims.UserID, DisplayName: claims.Name}

	conn, err := s.backend.Open(r.Context(), identity, domain.Credential(token))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer conn.Close(context.Background())

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "user_id", identity.ID, "error", err)
		return
	}
	defer ws.Close()

	s.log.Info("Event stream opened", "user_id", identity.ID, "connection_id", conn.ID())
	gone := s.readUntilClosed(ws)
	s.writeEvents(ws, conn, gone)
	s.log.Info("Event stream closed", "user_id", identity.ID, "connection_id", conn.ID())
}

// readUntilClosed discards inbound frames. The returned channel is closed when the peer leaves.
func (s *Server) readUntilClosed(ws *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * s.config.PingInterval))
	})
	_ = ws.SetReadDeadline(time.Now().Add(2 * s.config.PingInterval))
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()
	return gone
}

func (s *Server) writeEvents(ws *websocket.Conn, conn *memory.Connection, gone <-chan struct{}) {
	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.done:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case evt, ok := <-conn.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "connection closed"))
				return
			}
			if err := ws.WriteJSON(evt); err != nil {
				s.log.Debug("Event write failed", "user_id", conn.UserID(), "error", err)
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

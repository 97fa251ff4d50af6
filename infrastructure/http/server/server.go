// Package server exposes the memory chat backend and the account service over HTTP:
// REST for requests, a websocket per connection for pushed events.
package server

import (
	"encoding/json"
	"log/slog"
	"messengy/auth"
	"messengy/infrastructure/http/protocol"
	"messengy/infrastructure/memory"
	"messengy/services"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

type Server struct {
	log      *slog.Logger
	config   Config
	backend  *memory.Backend
	accounts services.IAuthService
	issuer   *auth.TokenIssuer
	upgrader websocket.Upgrader

	debug http.Handler

	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(log *slog.Logger, config Config, backend *memory.Backend, accounts services.IAuthService,
	issuer *auth.TokenIssuer) *Server {
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	return &Server{
		log:      log,
		config:   config,
		backend:  backend,
		accounts: accounts,
		issuer:   issuer,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// WithDebug exposes handler on the debug route, behind the API key.
func (s *Server) WithDebug(handler http.Handler) *Server {
	s.debug = handler
	return s
}

// Close ends every open event stream. http.Server.Shutdown does not track hijacked connections.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Router wires the routes. Account routes need the publishable key, chat routes
// the API key plus a bearer credential (the websocket takes it as a query parameter).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKey(auth.HeaderPublishableKey, s.config.PublishableKey))
		r.Post(protocol.RouteRegister, s.handleRegister)
		r.Post(protocol.RouteLogin, s.handleLogin)
		r.Post(protocol.RouteRefresh, s.handleRefresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireKey(auth.HeaderAPIKey, s.config.APIKey))
		r.Get(protocol.RouteEvents, s.handleEvents)
		if s.debug != nil {
			r.Handle(protocol.RouteDebugInspect, s.debug)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(s.issuer))
			r.Post(protocol.RouteQueryChannels, s.handleQueryChannels)
			r.Post(protocol.RouteChannels, s.handleCreateChannel)
			r.Post(protocol.RouteChannels+"/{channelID}/messages", s.handleSendMessage)
			r.Post(protocol.RouteChannels+"/{channelID}/read", s.handleMarkRead)
			r.Get(protocol.RouteUnread, s.handleUnread)
			r.Post(protocol.RouteQueryUsers, s.handleQueryUsers)
		})
	})
	return r
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Code: protocol.CodeBadRequest, Message: "invalid request body"})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

var statuses = map[string]int{
	protocol.CodeAuth:               http.StatusUnauthorized,
	protocol.CodeInvalidCredentials: http.StatusUnauthorized,
	protocol.CodeInvalidPassword:    http.StatusBadRequest,
	protocol.CodeUserExists:         http.StatusConflict,
	protocol.CodeChannelNotFound:    http.StatusNotFound,
	protocol.CodeInvalidMember:      http.StatusBadRequest,
	protocol.CodeDuplicateChannel:   http.StatusConflict,
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := protocol.Code(err)
	status, ok := statuses[code]
	if !ok {
		status = http.StatusInternalServerError
		s.log.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	respondJSON(w, status, protocol.ErrorResponse{Code: code, Message: err.Error()})
}

package server

import (
	"messengy/auth"
	"messengy/infrastructure/http/protocol"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, protocol.ErrorResponse{Code: protocol.CodeAuth, Message: "authorization token is missing"})
		return
	}
	session, err := s.accounts.Refresh(r.Context(), token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func userID(r *http.Request) string {
	claims, _ := auth.ClaimsFrom(r.Context())
	return claims.UserID
}

func (s *Server) handleQueryChannels(w http.ResponseWriter, r *http.Request) {
	var req protocol.QueryChannelsRequest
	if !decode(w, r, &req) {
		return
	}
	channels, err := s.backend.QueryChannels(r.Context(), userID(r), req.Filter, req.Sort, req.Options)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, channels)
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateChannelRequest
	if !decode(w, r, &req) {
		return
	}
	channel, err := s.backend.CreateChannel(r.Context(), userID(r), req.Type, req.Members, req.Metadata)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, channel)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req protocol.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	message, err := s.backend.SendMessage(r.Context(), userID(r), chi.URLParam(r, "channelID"), req.Text)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, message)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.MarkRead(r.Context(), userID(r), chi.URLParam(r, "channelID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	count, err := s.backend.CountUnread(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.UnreadResponse{TotalUnreadCount: count})
}

func (s *Server) handleQueryUsers(w http.ResponseWriter, r *http.Request) {
	var req protocol.QueryUsersRequest
	if !decode(w, r, &req) {
		return
	}
	users, err := s.backend.QueryUsers(r.Context(), req.Filter, req.Sort, req.Options)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

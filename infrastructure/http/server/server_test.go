package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"messengy/auth"
	"messengy/errors"
	"messengy/infrastructure/http/protocol"
	"messengy/infrastructure/memory"
	"messengy/infrastructure/storage"
	"messengy/services"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *auth.TokenIssuer) {
	db, err := storage.Open("", slog.Default(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	backend := memory.NewBackend(slog.Default(), issuer, 4)
	accounts := services.NewAuthService(slog.Default(), storage.NewUserRepository(db), backend, issuer)
	srv := NewServer(slog.Default(), Config{PublishableKey: "pk", APIKey: "ck"}, backend, accounts, issuer)
	t.Cleanup(srv.Close)
	return srv, issuer
}

func TestRouter_Keys(t *testing.T) {
	srv, issuer := newTestServer(t)
	router := srv.Router()
	token, _, err := issuer.GenerateToken("u1", "Ada", []string{"user"}, "stream")
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
	}{
		{"account route without publishable key", http.MethodPost, protocol.RouteLogin, nil, http.StatusUnauthorized},
		{"chat route without api key", http.MethodGet, protocol.RouteUnread, map[string]string{"Authorization": "Bearer " + token}, http.StatusUnauthorized},
		{"chat route without token", http.MethodGet, protocol.RouteUnread, map[string]string{auth.HeaderAPIKey: "ck"}, http.StatusUnauthorized},
		{"chat route with both", http.MethodGet, protocol.RouteUnread, map[string]string{auth.HeaderAPIKey: "ck", "Authorization": "Bearer " + token}, http.StatusOK},
		{"debug route disabled", http.MethodGet, protocol.RouteDebugInspect, map[string]string{auth.HeaderAPIKey: "ck"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte("{}")))
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, r)
			require.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_ErrorCodes(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, protocol.RouteLogin,
		bytes.NewReader([]byte(`{"email":"nobody@example.com","password":"ComplexPass123!"}`)))
	r.Header.Set(auth.HeaderPublishableKey, "pk")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, r)

	var body protocol.ErrorResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.ErrorIs(protocol.Sentinel(body.Code), errors.ErrInvalidCredentials)
}

func TestRouter_Debug(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.WithDebug(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).Router()

	r := httptest.NewRequest(http.MethodGet, protocol.RouteDebugInspect, nil)
	r.Header.Set(auth.HeaderAPIKey, "ck")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	require.Equal(t, http.StatusTeapot, rec.Code)
}

package client

import (
	"context"
	"fmt"
	"messengy/auth"
	"messengy/domain"
	"messengy/errors"
	"messengy/infrastructure/http/protocol"
	"net/http"
	"sync"
)

// IdentityClient signs in against the chat server account routes and keeps the session.
// It issues chat credentials by refreshing the session token.
type IdentityClient struct {
	requester requester

	mu      sync.RWMutex
	session *domain.Session
}

func NewIdentityClient(addr, publishableKey string) (*IdentityClient, error) {
	r, err := newRequester(addr, http.Header{auth.HeaderPublishableKey: []string{publishableKey}})
	if err != nil {
		return nil, err
	}
	return &IdentityClient{requester: r}, nil
}

func (c *IdentityClient) Register(ctx context.Context, req auth.SignUpRequest) (domain.Session, error) {
	return c.open(ctx, protocol.RouteRegister, "", req)
}

func (c *IdentityClient) Login(ctx context.Context, req auth.SignInRequest) (domain.Session, error) {
	return c.open(ctx, protocol.RouteLogin, "", req)
}

// Resume restores a session saved by a previous run.
func (c *IdentityClient) Resume(session domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &session
}

func (c *IdentityClient) Session() (domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return domain.Session{}, false
	}
	return *c.session, true
}

func (c *IdentityClient) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// Issue exchanges the session token for a fresh one, which doubles as the chat credential.
func (c *IdentityClient) Issue(ctx context.Context, identity domain.Identity, _ string) (domain.Credential, error) {
	current, ok := c.Session()
	if !ok || current.Identity.ID != identity.ID {
		return "", fmt.Errorf("%w: no session for %s", errors.ErrSignedOut, identity.ID)
	}
	session, err := c.open(ctx, protocol.RouteRefresh, current.Token, nil)
	if err != nil {
		return "", err
	}
	return domain.Credential(session.Token), nil
}

func (c *IdentityClient) open(ctx context.Context, route, bearer string, in any) (domain.Session, error) {
	var session domain.Session
	if err := c.requester.do(ctx, http.MethodPost, route, bearer, in, &session); err != nil {
		return domain.Session{}, err
	}
	c.Resume(session)
	return session, nil
}

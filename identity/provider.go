// Package identity holds the signed in identity of the process and hands out
// credentials for it. It plays the identity session provider for the chat core.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"sync"
)

const transitionBuffer = 8

type Provider struct {
	log    *slog.Logger
	issuer contract.ICredentialIssuer

	mu          sync.RWMutex
	current     *domain.Identity
	subscribers map[int]chan domain.AuthTransition
	nextID      int
}

func NewProvider(log *slog.Logger, issuer contract.ICredentialIssuer) *Provider {
	return &Provider{
		log:         log,
		issuer:      issuer,
		subscribers: make(map[int]chan domain.AuthTransition),
	}
}

// SignIn makes identity the current one and notifies subscribers.
// Signing in while another identity is current acts as a switch.
func (p *Provider) SignIn(identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrAuth, err)
	}
	p.mu.Lock()
	if p.current != nil && *p.current == identity {
		p.mu.Unlock()
		return nil
	}
	p.current = &identity
	p.broadcast(domain.AuthTransition{SignedIn: true, Identity: identity})
	p.mu.Unlock()
	p.log.Info("Signed in", "user_id", identity.ID)
	return nil
}

// SignOut clears the current identity. No-op when nobody is signed in.
func (p *Provider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	previous := *p.current
	p.current = nil
	p.broadcast(domain.AuthTransition{SignedIn: false, Identity: previous})
	p.log.Info("Signed out", "user_id", previous.ID)
}

func (p *Provider) CurrentIdentity() (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return domain.Identity{}, false
	}
	return *p.current, true
}

// Credential issues a fresh credential for the current identity.
// Every failure is an ErrAuth, so callers redirect to sign in instead of retrying.
func (p *Provider) Credential(ctx context.Context, purpose string) (domain.Credential, error) {
	identity, ok := p.CurrentIdentity()
	if !ok {
		return "", fmt.Errorf("%w: %w", errors.ErrAuth, errors.ErrSignedOut)
	}
	credential, err := p.issuer.Issue(ctx, identity, purpose)
	if err != nil {
		return "", fmt.Errorf("%w: issuing %s credential for %s: %w", errors.ErrAuth, purpose, identity.ID, err)
	}
	return credential, nil
}

// Transitions subscribes to sign-in and sign-out transitions.
func (p *Provider) Transitions() (<-chan domain.AuthTransition, func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan domain.AuthTransition, transitionBuffer)
	p.subscribers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// broadcast must be called with mu held.
// A lagging subscriber loses its oldest pending transition, never the latest one,
// so the last transition it reads is always the current state.
func (p *Provider) broadcast(transition domain.AuthTransition) {
	for _, ch := range p.subscribers {
		for sent := false; !sent; {
			select {
			case ch <- transition:
				sent = true
			default:
				select {
				case dropped := <-ch:
					p.log.Warn("Identity subscriber is lagging, dropping oldest transition",
						"user_id", dropped.Identity.ID, "signed_in", dropped.SignedIn)
				default:
				}
			}
		}
	}
}

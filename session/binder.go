package session

import (
	"context"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"time"
)

const teardownTimeout = 5 * time.Second

// Binder follows the identity provider: sign-in connects the chat session,
// sign-out releases it. Whatever the reason Run returns, the session is released.
type Binder struct {
	log      *slog.Logger
	manager  *Manager
	identity contract.IIdentityProvider
}

func NewBinder(log *slog.Logger, manager *Manager, identity contract.IIdentityProvider) *Binder {
	return &Binder{log: log, manager: manager, identity: identity}
}

func (b *Binder) Run(ctx context.Context) error {
	transitions, unsubscribe := b.identity.Transitions()
	defer unsubscribe()
	defer b.release()

	if current, ok := b.identity.CurrentIdentity(); ok {
		b.bind(ctx, current)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-transitions:
			if !ok {
				return nil
			}
			if t.SignedIn {
				b.bind(ctx, t.Identity)
			} else {
				b.release()
			}
		}
	}
}

// bind never retries: the failure stays visible through Manager.State and Manager.Err.
func (b *Binder) bind(ctx context.Context, identity domain.Identity) {
	if err := b.manager.Connect(ctx, identity, b.identity); err != nil {
		b.log.Error("Chat session binding failed", "user_id", identity.ID, "error", err)
	}
}

func (b *Binder) release() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := b.manager.Disconnect(ctx); err != nil {
		b.log.Error("Chat session release failed", "error", err)
	}
}

package session

import (
	"context"
	"log/slog"
	"messengy/domain"
	"messengy/identity"
	"messengy/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func Test_Binder_Follows_Identity_Transitions(t *testing.T) {
	defer goleak.VerifyNone(t)
	req := require.New(t)
	ctrl := gomock.NewController(t)

	issuer := mocks.NewMockICredentialIssuer(ctrl)
	issuer.EXPECT().Issue(gomock.Any(), gomock.Any(), domain.CredentialPurposeChat).Return(domain.Credential("token"), nil).AnyTimes()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	provider := identity.NewProvider(log, issuer)

	backend := mocks.NewMockIChatBackend(ctrl)
	connA, _ := newConnection(ctrl)
	connB, _ := newConnection(ctrl)
	gomock.InOrder(
		backend.EXPECT().Connect(gomock.Any(), alice, domain.Credential("token")).Return(connA, nil),
		connA.EXPECT().Close(gomock.Any()).Return(nil),
		backend.EXPECT().Connect(gomock.Any(), bob, domain.Credential("token")).Return(connB, nil),
		connB.EXPECT().Close(gomock.Any()).Return(nil),
	)
	manager := newManager(backend)
	binder := NewBinder(log, manager, provider)

	// Given alice is already signed in when the binder starts
	req.NoError(provider.SignIn(alice))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- binder.Run(ctx) }()

	// Then her session is bound
	req.Eventually(func() bool {
		current, ok := manager.Identity()
		return ok && current == alice && manager.State() == domain.Connected
	}, time.Second, 10*time.Millisecond)

	// When she signs out
	provider.SignOut()

	// Then the session is released
	req.Eventually(func() bool { return manager.State() == domain.Disconnected }, time.Second, 10*time.Millisecond)

	// When bob signs in
	req.NoError(provider.SignIn(bob))
	req.Eventually(func() bool {
		current, ok := manager.Identity()
		return ok && current == bob && manager.State() == domain.Connected
	}, time.Second, 10*time.Millisecond)

	// And the binder stops
	cancel()
	req.NoError(<-done)

	// Then bob's session does not outlive it
	req.Equal(domain.Disconnected, manager.State())
}

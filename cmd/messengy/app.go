package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"messengy/channels"
	"messengy/domain"
	"messengy/errors"
	"messengy/identity"
	"messengy/infrastructure/http/client"
	"messengy/infrastructure/storage"
	"messengy/internal"
	"messengy/moderation"
	"messengy/projection"
	"messengy/runtime"
	"messengy/runtime/workers"
	"messengy/search"
	"messengy/services"
	"messengy/session"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// app holds the client side graph shared by every command.
type app struct {
	config internal.Config
	log    *slog.Logger
	out    io.Writer

	db       *badger.DB
	sessions *storage.SessionStore
	accounts *client.IdentityClient
	provider *identity.Provider

	manager       *session.Manager
	synchronizer  *channels.Synchronizer
	index         *search.ChannelIndex
	projector     projection.Projector
	friends       *services.FriendService
	notifications *services.NotificationService
	conversations *services.ConversationService
}

func newApp(ctx context.Context, config internal.Config, log *slog.Logger, mask rune) (*app, error) {
	db, err := storage.Open(config.BadgerFilepath, log, log.Enabled(ctx, slog.LevelDebug))
	if err != nil {
		return nil, err
	}
	a := &app{config: config, log: log, out: os.Stdout, db: db, sessions: storage.NewSessionStore(db)}

	if a.accounts, err = client.NewIdentityClient(config.ChatServerAddr, config.IdentityPublishableKey); err != nil {
		a.Close()
		return nil, err
	}
	backend, err := client.NewBackend(log, config.ChatServerAddr, config.ChatAPIKey, config.EventBufferSize)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.index, err = search.NewChannelIndex(log); err != nil {
		a.Close()
		return nil, err
	}
	censor, err := loadCensor(config, log, mask)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.provider = identity.NewProvider(log, a.accounts)
	a.manager = session.NewManager(log, backend, config.EventBufferSize)
	a.synchronizer = channels.NewSynchronizer(log, a.manager, storage.NewChannelCache(db, log), a.index, channels.Config{
		Limit:    config.QueryLimit,
		Debounce: config.RequeryDebounce,
	})
	a.projector = projection.NewProjector(censor)
	a.friends = services.NewFriendService(log, a.manager, a.synchronizer)
	a.notifications = services.NewNotificationService(a.manager, a.projector)
	a.conversations = services.NewConversationService(a.manager)

	if err := a.resume(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// loadCensor reads the dictionaries of CENSORED_WORDS_DIR, or the embedded ones.
func loadCensor(config internal.Config, log *slog.Logger, mask rune) (*moderation.Moderator, error) {
	loader, dir := runtime.EmbeddedCensoredLoader(), runtime.DefaultCensoredDir
	if config.CensoredWordsDir != "" {
		loader, dir = runtime.NewCensoredLoader(os.DirFS(config.CensoredWordsDir)), "."
	}
	data, err := loader.LoadAll(dir)
	if err != nil {
		return nil, fmt.Errorf("loading censored words: %w", err)
	}
	log.Debug("Censored words loaded", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(log, data.Words, mask)
}

// resume signs the saved session back in. An expired session is dropped.
func (a *app) resume() error {
	saved, ok, err := a.sessions.Load()
	if err != nil || !ok {
		return err
	}
	if saved.Expired(time.Now()) {
		a.log.Info("Saved session expired", "user_id", saved.Identity.ID)
		return a.sessions.Clear()
	}
	a.accounts.Resume(saved)
	return a.provider.SignIn(saved.Identity)
}

// signIn keeps a session obtained from the account routes.
func (a *app) signIn(session domain.Session) error {
	if err := a.sessions.Save(session); err != nil {
		return err
	}
	return a.provider.SignIn(session.Identity)
}

func (a *app) signOut() error {
	a.provider.SignOut()
	a.accounts.Forget()
	return a.sessions.Clear()
}

// connect binds the chat session to the signed in identity for a one shot command.
func (a *app) connect(ctx context.Context) (domain.Identity, error) {
	current, ok := a.provider.CurrentIdentity()
	if !ok {
		return domain.Identity{}, errSignedOut()
	}
	if err := a.manager.Connect(ctx, current, a.provider); err != nil {
		return domain.Identity{}, err
	}
	return current, nil
}

func errSignedOut() error {
	return fmt.Errorf("%w: run `messengy login` first", errors.ErrSignedOut)
}

func (a *app) orchestrator() *runtime.Orchestrator {
	return runtime.NewOrchestrator(a.log, workers.NewSupervisor(a.log, a.config.RestartInterval), a.manager,
		session.NewBinder(a.log, a.manager, a.provider), a.synchronizer, a.config.ShutdownTimeout)
}

// Close releases the chat session, persists the refreshed session and closes local storage.
func (a *app) Close() {
	if a.manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		if err := a.manager.Disconnect(ctx); err != nil {
			a.log.Warn("Chat session release failed", "error", err)
		}
		cancel()
	}
	if a.accounts != nil {
		if current, ok := a.accounts.Session(); ok {
			if err := a.sessions.Save(current); err != nil {
				a.log.Warn("Session not saved", "error", err)
			}
		}
	}
	if a.index != nil {
		_ = a.index.Close()
	}
	_ = a.db.Close()
}

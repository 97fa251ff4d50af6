package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"messengy/auth"
	"messengy/infrastructure/http/protocol"
	"messengy/infrastructure/http/server"
	"messengy/infrastructure/memory"
	"messengy/infrastructure/storage"
	"messengy/internal"
	"messengy/services"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the chat server and blocks until a signal or a server failure.
// Every defer runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := server.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Accounts database (BadgerDB)
	db, err := storage.Open(config.BadgerFilepath, logger, logger.Enabled(ctx, slog.LevelDebug))
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Chat backend and account services
	issuer := auth.NewTokenIssuer(config.TokenSecret, config.TokenDuration)
	backend := memory.NewBackend(logger, issuer, config.EventBufferSize)
	accounts := services.NewAuthService(logger, storage.NewUserRepository(db), backend, issuer)
	chatServer := server.NewServer(logger, config, backend, accounts, issuer)
	if logger.Enabled(ctx, slog.LevelDebug) {
		chatServer.WithDebug(internal.InspectHandler(db, nil, backend.Stats))
		logger.Info("Debug Badger inspector available", "route", protocol.RouteDebugInspect)
	}

	httpServer := &http.Server{
		Addr:    config.Addr(),
		Handler: chatServer.Router(),
	}

	// 4. Serve until the signal, then drain
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting chat server", "address", config.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gracefully...")
		// Event streams are hijacked connections: Shutdown does not wait for them.
		chatServer.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	logger.Info("Chat server stopped cleanly")
	return exitOK, nil
}

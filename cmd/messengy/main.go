package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"messengy/internal"
	"os"
	"os/signal"
	"syscall"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
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
		fmt.Fprintf(os.Stderr, "messengy: %v\n", err)
	}
	os.Exit(code)
}

// run loads the configuration, opens the local state and executes the command line.
// Every defer runs before the process exits.
func run() (int, error) {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	mask, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config, logger, mask)
	if err != nil {
		return exitRuntime, err
	}
	defer a.Close()

	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		if stderrors.Is(err, errUsage) {
			return exitConfig, err
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

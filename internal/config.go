package internal

import (
	"fmt"
	"time"
)

// Config of the messengy client, read from the environment with go-env.
type Config struct {
	IdentityPublishableKey string        `env:"IDENTITY_PUBLISHABLE_KEY,required=true"`
	ChatAPIKey             string        `env:"CHAT_API_KEY,required=true"`
	ChatServerAddr         string        `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	LogLevel               string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath         string        `env:"BADGER_FILEPATH,default=.messengy"`
	QueryLimit             int           `env:"QUERY_LIMIT,default=30"`
	RequeryDebounce        time.Duration `env:"REQUERY_DEBOUNCE,default=150ms"`
	EventBufferSize        int           `env:"EVENT_BUFFER_SIZE,default=64"`
	RestartInterval        time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout        time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	CensoredWordsDir       string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement        string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

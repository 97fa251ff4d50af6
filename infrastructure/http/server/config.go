package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CHATSERVER"

type Config struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	PublishableKey  string        `envconfig:"PUBLISHABLE_KEY" required:"true"`
	APIKey          string        `envconfig:"API_KEY" required:"true"`
	TokenSecret     string        `envconfig:"TOKEN_SECRET" required:"true"`
	TokenDuration   time.Duration `envconfig:"TOKEN_DURATION" default:"24h"`
	BadgerFilepath  string        `envconfig:"BADGER_FILEPATH"`
	EventBufferSize int           `envconfig:"EVENT_BUFFER_SIZE" default:"64"`
	PingInterval    time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"INFO"`
}

// LoadConfig reads the CHATSERVER_* environment.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process(envPrefix, &cfg)
	return cfg, err
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package storage

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Open opens the badger database at path, or an in-memory one when path is empty.
// Badger's own logger is silenced unless the logger is at debug level.
func Open(path string, log *slog.Logger, debug bool) (*badger.DB, error) {
	options := badger.DefaultOptions(path)
	if path == "" {
		options = badger.DefaultOptions("").WithInMemory(true)
	}
	if !debug {
		options = options.WithLogger(nil)
	} else {
		options = options.WithLoggingLevel(badger.DEBUG)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	log.Info("BadgerDB opened", "path", path, "in_memory", path == "")
	return db, nil
}

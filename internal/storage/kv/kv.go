// Package kv provides the whole-value key/value backends used for local
// persistence. Values are opaque bytes, read whole and written whole.
package kv

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Store reads and writes whole values by key.
type Store interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open creates the backend named by driver at path.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverBolt, "":
		return NewBoltStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}
}

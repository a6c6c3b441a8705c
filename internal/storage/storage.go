// Package storage implements conversation.Store in memory and on SQLite.
package storage

import (
	"fmt"

	"github.com/kalambet/moodrelay/internal/conversation"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Open returns the store for the named backend.
func Open(backend, dsn string, maxRecords int) (conversation.Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(maxRecords), nil
	case BackendSQLite:
		return OpenSQLite(dsn, maxRecords)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %q or %q)", backend, BackendMemory, BackendSQLite)
	}
}

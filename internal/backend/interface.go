package backend

import (
	"context"

	"smartasset/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store and its cleanup function.
type Result struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	Type Type

	// URL is a Postgres connection URL or a SQLite file path.
	URL string
	// Key is the Postgres password.
	Key string

	// Memory backend seed directory
	DataDirectory string
}

// Type represents the kind of ledger store
type Type string

const (
	PostgresBackend Type = "postgres"
	SQLiteBackend   Type = "sqlite"
	MemoryBackend   Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case PostgresBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{PostgresBackend, SQLiteBackend, MemoryBackend}
}

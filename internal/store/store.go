package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// KV is the durable key-value collaborator shared by the ledger and the
// operator settings. Implementations must provide single-key atomicity;
// nothing here assumes multi-key transactions.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes key unconditionally. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes key only if it does not already exist and reports
	// whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

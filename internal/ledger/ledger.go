// Package ledger records which correspondents have already received the
// automated first-contact reply. It is the sole de-duplication boundary:
// the dispatch engine checks it before sending and commits to it only
// after a confirmed send.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joebot/greetbot/internal/store"
)

const (
	// KeyPrefix namespaces ledger entries in the shared KV store.
	KeyPrefix = "notified:"

	// TTL is how long a correspondent stays marked. After expiry the
	// backing store reclaims the key and the correspondent becomes
	// eligible again.
	TTL = 365 * 24 * time.Hour
)

// Ledger is a durable set of already-notified correspondent IDs.
type Ledger struct {
	kv store.KV
}

// New wraps a KV store as a correspondent ledger.
func New(kv store.KV) *Ledger {
	return &Ledger{kv: kv}
}

// HasNotified reports whether a live, non-expired entry exists for the
// correspondent.
func (l *Ledger) HasNotified(ctx context.Context, correspondentID string) (bool, error) {
	_, err := l.kv.Get(ctx, KeyPrefix+correspondentID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger read %s: %w", correspondentID, err)
	}
	return true, nil
}

// MarkNotified records the correspondent as notified. Marking twice is
// harmless: the write is create-if-absent, so an existing entry (and its
// original expiry) is left untouched.
func (l *Ledger) MarkNotified(ctx context.Context, correspondentID string) error {
	_, err := l.kv.SetNX(ctx, KeyPrefix+correspondentID, time.Now().UTC().Format(time.RFC3339), TTL)
	if err != nil {
		return fmt.Errorf("ledger write %s: %w", correspondentID, err)
	}
	return nil
}

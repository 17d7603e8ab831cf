// Package settings holds the operator-facing dispatch settings and the
// admin auth fields, persisted as one JSON document in the KV store.
// Each dispatch cycle works from an immutable snapshot loaded at cycle
// start, so admin edits mid-cycle never affect a running cycle.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joebot/greetbot/internal/store"
	"github.com/joebot/greetbot/internal/text"
)

const (
	// Key is where the settings document lives in the KV store.
	Key = "config"

	// MaxReplyGraphemes bounds the operator-configured reply text.
	MaxReplyGraphemes = 1000

	// MaxDelaySeconds is the upper end of the documented delay clamp.
	MaxDelaySeconds = 300

	// MinPasswordLen is the minimum admin password length.
	MinPasswordLen = 8

	// DefaultReplyText is used until the operator sets their own.
	DefaultReplyText = "Hi! Thanks for reaching out — I'll get back to you soon."
)

// Settings is the full persisted document: dispatch settings plus the
// admin auth fields that share the same store key.
type Settings struct {
	Enabled         bool   `json:"enabled"`
	ReplyText       string `json:"replyText"`
	DelaySeconds    int    `json:"delaySeconds"`
	PerCycleSendCap int    `json:"perCycleSendCap"` // 0 means uncapped

	SetupComplete bool   `json:"setupComplete"`
	PasswordHash  string `json:"passwordHash,omitempty"`
}

// Dispatch is the per-cycle snapshot the engine consumes. It carries no
// auth fields and is passed by value.
type Dispatch struct {
	Enabled         bool
	ReplyText       string
	DelaySeconds    int
	PerCycleSendCap int
}

// Dispatch extracts the engine-facing snapshot.
func (s Settings) Dispatch() Dispatch {
	return Dispatch{
		Enabled:         s.Enabled,
		ReplyText:       s.ReplyText,
		DelaySeconds:    s.DelaySeconds,
		PerCycleSendCap: s.PerCycleSendCap,
	}
}

// ClampDelay forces a delay into the documented [0, MaxDelaySeconds]
// range. This is the only silent clamp in the system; everything else
// rejects out-of-range values.
func ClampDelay(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return seconds
}

// ValidateReplyText rejects empty reply text and text over the grapheme
// bound. Empty is rejected rather than accepted-then-defaulted, so an
// operator update never silently reverts.
func ValidateReplyText(s string) error {
	if s == "" {
		return errors.New("reply text must not be empty")
	}
	if n := text.GraphemeLen(s); n > MaxReplyGraphemes {
		return fmt.Errorf("reply text is %d characters, max %d", n, MaxReplyGraphemes)
	}
	return nil
}

// Store loads and saves the settings document.
type Store struct {
	kv store.KV
}

// NewStore wraps a KV store.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Load reads the settings document, applying defaults and the delay
// clamp. A missing document yields the defaults with SetupComplete
// false, not an error.
func (st *Store) Load(ctx context.Context) (Settings, error) {
	s := defaults()

	raw, err := st.kv.Get(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return defaults(), fmt.Errorf("parse settings: %w", err)
	}

	// Defaults apply at load time so every reader sees the same values.
	if s.ReplyText == "" {
		s.ReplyText = DefaultReplyText
	}
	s.DelaySeconds = ClampDelay(s.DelaySeconds)
	if s.PerCycleSendCap < 0 {
		s.PerCycleSendCap = 0
	}
	return s, nil
}

// Save persists the settings document. The delay clamp is re-applied so
// a bad value can never round-trip into the store.
func (st *Store) Save(ctx context.Context, s Settings) error {
	s.DelaySeconds = ClampDelay(s.DelaySeconds)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := st.kv.Set(ctx, Key, string(data), 0); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func defaults() Settings {
	return Settings{
		ReplyText: DefaultReplyText,
	}
}

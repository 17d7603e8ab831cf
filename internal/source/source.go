// Package source abstracts the messaging platform: a paginated listing
// of the account's conversations and a way to send a message into one.
package source

import (
	"context"
	"time"
)

// Message is the last-message metadata a conversation exposes.
type Message struct {
	ID       string
	SenderID string
	Text     string
	SentAt   time.Time
}

// Conversation is one conversation as reported by the platform. The
// member list includes the bot's own account.
type Conversation struct {
	ID          string
	MemberIDs   []string
	LastMessage *Message // nil when the conversation has no messages yet
}

// Page is one page of a conversation listing. An empty Cursor signals
// the end of the list.
type Page struct {
	Conversations []Conversation
	Cursor        string
}

// Source is the interface for chat platform integrations.
type Source interface {
	Name() string
	// AccountID returns the bot's own account identifier, authenticating
	// first if the platform requires it.
	AccountID(ctx context.Context) (string, error)
	// ListConversations fetches one page, forward-only. An empty cursor
	// starts from the beginning.
	ListConversations(ctx context.Context, limit int, cursor string) (Page, error)
	// SendMessage delivers text into a conversation. Text must already
	// fit the platform limit; see MaxMessageLen.
	SendMessage(ctx context.Context, convoID, text string) error
	// MaxMessageLen is the platform's message length cap in grapheme
	// clusters.
	MaxMessageLen() int
}

package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/joebot/greetbot/internal/config"
)

const (
	// chatProxy routes XRPC calls to the Bluesky chat service.
	chatProxy = "did:web:api.bsky.chat#bsky_chat"

	// blueskyMaxGraphemes is the chat message length cap.
	blueskyMaxGraphemes = 1000
)

// Bluesky talks to the Bluesky chat API over XRPC. Sessions are created
// lazily and refreshed once on a 401.
type Bluesky struct {
	cfg    config.BlueskyConfig
	client *resty.Client

	mu        sync.Mutex
	accessJwt string
	did       string
}

// NewBluesky creates a Bluesky source. No network calls happen until
// the first request.
func NewBluesky(cfg config.BlueskyConfig) *Bluesky {
	client := resty.New().
		SetBaseURL(cfg.Service).
		SetTimeout(30 * time.Second)
	return &Bluesky{cfg: cfg, client: client}
}

func (b *Bluesky) Name() string { return "bluesky" }

func (b *Bluesky) MaxMessageLen() int { return blueskyMaxGraphemes }

// AccountID returns the account DID, creating a session if needed.
func (b *Bluesky) AccountID(ctx context.Context) (string, error) {
	if _, err := b.session(ctx); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.did, nil
}

type blueskyConvo struct {
	ID      string `json:"id"`
	Members []struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	} `json:"members"`
	LastMessage *struct {
		ID     string `json:"id"`
		Text   string `json:"text"`
		SentAt string `json:"sentAt"`
		Sender struct {
			DID string `json:"did"`
		} `json:"sender"`
	} `json:"lastMessage"`
}

// ListConversations fetches one page of chat.bsky.convo.listConvos.
func (b *Bluesky) ListConversations(ctx context.Context, limit int, cursor string) (Page, error) {
	var out struct {
		Convos []blueskyConvo `json:"convos"`
		Cursor string         `json:"cursor"`
	}

	params := map[string]string{"limit": strconv.Itoa(limit)}
	if cursor != "" {
		params["cursor"] = cursor
	}

	resp, err := b.do(ctx, func(jwt string) (*resty.Response, error) {
		return b.client.R().
			SetContext(ctx).
			SetAuthToken(jwt).
			SetHeader("Atproto-Proxy", chatProxy).
			SetQueryParams(params).
			SetResult(&out).
			Get("/xrpc/chat.bsky.convo.listConvos")
	})
	if err != nil {
		return Page{}, fmt.Errorf("list convos: %w", err)
	}
	if resp.IsError() {
		return Page{}, fmt.Errorf("list convos: %s: %s", resp.Status(), resp.String())
	}

	page := Page{Cursor: out.Cursor}
	for _, c := range out.Convos {
		convo := Conversation{ID: c.ID}
		for _, m := range c.Members {
			convo.MemberIDs = append(convo.MemberIDs, m.DID)
		}
		if c.LastMessage != nil {
			sentAt, _ := time.Parse(time.RFC3339, c.LastMessage.SentAt)
			convo.LastMessage = &Message{
				ID:       c.LastMessage.ID,
				SenderID: c.LastMessage.Sender.DID,
				Text:     c.LastMessage.Text,
				SentAt:   sentAt,
			}
		}
		page.Conversations = append(page.Conversations, convo)
	}
	return page, nil
}

// SendMessage posts into a conversation via chat.bsky.convo.sendMessage.
func (b *Bluesky) SendMessage(ctx context.Context, convoID, text string) error {
	body := map[string]any{
		"convoId": convoID,
		"message": map[string]any{"text": text},
	}

	resp, err := b.do(ctx, func(jwt string) (*resty.Response, error) {
		return b.client.R().
			SetContext(ctx).
			SetAuthToken(jwt).
			SetHeader("Atproto-Proxy", chatProxy).
			SetBody(body).
			Post("/xrpc/chat.bsky.convo.sendMessage")
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send message: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// do runs an authenticated request, retrying once with a fresh session
// on 401 and waiting out a single 429.
func (b *Bluesky) do(ctx context.Context, fn func(jwt string) (*resty.Response, error)) (*resty.Response, error) {
	jwt, err := b.session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := fn(jwt)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		jwt, err = b.refreshSession(ctx)
		if err != nil {
			return nil, err
		}
		return fn(jwt)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		wait := retryAfter(resp)
		slog.Warn("Bluesky rate limited", "retry_after", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		return fn(jwt)
	}

	return resp, nil
}

func (b *Bluesky) session(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.accessJwt != "" {
		jwt := b.accessJwt
		b.mu.Unlock()
		return jwt, nil
	}
	b.mu.Unlock()
	return b.refreshSession(ctx)
}

func (b *Bluesky) refreshSession(ctx context.Context) (string, error) {
	var out struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"identifier": b.cfg.Identifier,
			"password":   b.cfg.AppPassword,
		}).
		SetResult(&out).
		Post("/xrpc/com.atproto.server.createSession")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create session: %s: %s", resp.Status(), resp.String())
	}

	b.mu.Lock()
	b.accessJwt = out.AccessJwt
	b.did = out.DID
	b.mu.Unlock()

	slog.Info("Bluesky session created", "did", out.DID)
	return out.AccessJwt, nil
}

func retryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joebot/greetbot/internal/config"
)

// fakeXRPC is a minimal Bluesky PDS for tests.
type fakeXRPC struct {
	t            *testing.T
	sessions     int
	expiredJwts  map[string]bool
	sends        []map[string]any
	listResponse string
}

func (f *fakeXRPC) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Identifier != "bot.bsky.social" || req.Password != "app-pass" {
			http.Error(w, `{"error":"AuthenticationRequired"}`, http.StatusUnauthorized)
			return
		}
		f.sessions++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"accessJwt": "jwt-" + string(rune('0'+f.sessions)),
			"did":       "did:plc:bot",
		})
	})

	mux.HandleFunc("GET /xrpc/chat.bsky.convo.listConvos", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			http.Error(w, `{"error":"ExpiredToken"}`, http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Atproto-Proxy") != chatProxy {
			f.t.Errorf("missing chat proxy header, got %q", r.Header.Get("Atproto-Proxy"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.listResponse))
	})

	mux.HandleFunc("POST /xrpc/chat.bsky.convo.sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			http.Error(w, `{"error":"ExpiredToken"}`, http.StatusUnauthorized)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.sends = append(f.sends, body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg1"}`))
	})

	return mux
}

func (f *fakeXRPC) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 || auth[:7] != "Bearer " {
		return false
	}
	return !f.expiredJwts[auth[7:]]
}

func newTestBluesky(t *testing.T, f *fakeXRPC) *Bluesky {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewBluesky(config.BlueskyConfig{
		Service:     srv.URL,
		Identifier:  "bot.bsky.social",
		AppPassword: "app-pass",
	})
}

const listFixture = `{
	"convos": [
		{
			"id": "convo1",
			"members": [{"did": "did:plc:bot", "handle": "bot.bsky.social"}, {"did": "did:plc:alice", "handle": "alice.bsky.social"}],
			"lastMessage": {"id": "m1", "text": "hi there", "sentAt": "2026-08-30T12:00:00Z", "sender": {"did": "did:plc:alice"}}
		},
		{
			"id": "convo2",
			"members": [{"did": "did:plc:bot"}]
		}
	],
	"cursor": "next-page"
}`

func TestBlueskyAccountID(t *testing.T) {
	b := newTestBluesky(t, &fakeXRPC{t: t})

	did, err := b.AccountID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if did != "did:plc:bot" {
		t.Errorf("did = %q", did)
	}
}

func TestBlueskyListConversations(t *testing.T) {
	f := &fakeXRPC{t: t, listResponse: listFixture}
	b := newTestBluesky(t, f)

	page, err := b.ListConversations(context.Background(), 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if page.Cursor != "next-page" {
		t.Errorf("cursor = %q", page.Cursor)
	}
	if len(page.Conversations) != 2 {
		t.Fatalf("got %d conversations", len(page.Conversations))
	}

	c := page.Conversations[0]
	if c.ID != "convo1" {
		t.Errorf("id = %q", c.ID)
	}
	if len(c.MemberIDs) != 2 || c.MemberIDs[1] != "did:plc:alice" {
		t.Errorf("members = %v", c.MemberIDs)
	}
	if c.LastMessage == nil || c.LastMessage.SenderID != "did:plc:alice" || c.LastMessage.Text != "hi there" {
		t.Errorf("last message = %+v", c.LastMessage)
	}

	if page.Conversations[1].LastMessage != nil {
		t.Error("convo without lastMessage should map to nil")
	}
}

func TestBlueskySendMessage(t *testing.T) {
	f := &fakeXRPC{t: t}
	b := newTestBluesky(t, f)

	if err := b.SendMessage(context.Background(), "convo1", "welcome!"); err != nil {
		t.Fatal(err)
	}
	if len(f.sends) != 1 {
		t.Fatalf("got %d sends", len(f.sends))
	}
	if f.sends[0]["convoId"] != "convo1" {
		t.Errorf("convoId = %v", f.sends[0]["convoId"])
	}
	msg, _ := f.sends[0]["message"].(map[string]any)
	if msg["text"] != "welcome!" {
		t.Errorf("text = %v", msg["text"])
	}
}

func TestBlueskyReauthOn401(t *testing.T) {
	f := &fakeXRPC{t: t, listResponse: listFixture, expiredJwts: map[string]bool{"jwt-1": true}}
	b := newTestBluesky(t, f)

	// First session yields jwt-1, which the server treats as expired;
	// the client must create a fresh session and retry once.
	if _, err := b.ListConversations(context.Background(), 50, ""); err != nil {
		t.Fatal(err)
	}
	if f.sessions != 2 {
		t.Errorf("sessions created = %d, want 2", f.sessions)
	}
}

func TestBlueskyBadCredentials(t *testing.T) {
	srv := httptest.NewServer((&fakeXRPC{t: t}).handler())
	t.Cleanup(srv.Close)
	b := NewBluesky(config.BlueskyConfig{
		Service:     srv.URL,
		Identifier:  "bot.bsky.social",
		AppPassword: "wrong",
	})

	if _, err := b.AccountID(context.Background()); err == nil {
		t.Fatal("expected auth failure")
	}
}

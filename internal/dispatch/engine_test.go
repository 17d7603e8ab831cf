package dispatch

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/joebot/greetbot/internal/ledger"
	"github.com/joebot/greetbot/internal/settings"
	"github.com/joebot/greetbot/internal/source"
	"github.com/joebot/greetbot/internal/store"
)

const self = "did:plc:bot"

type sentMsg struct {
	ConvoID string
	Text    string
}

// fakeSource pages through a fixed conversation list and records sends.
type fakeSource struct {
	pages     [][]source.Conversation
	maxLen    int
	listErr   error
	failIDs   map[string]bool
	sent      []sentMsg
	listCalls int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) AccountID(context.Context) (string, error) { return self, nil }

func (f *fakeSource) MaxMessageLen() int {
	if f.maxLen == 0 {
		return 1000
	}
	return f.maxLen
}

func (f *fakeSource) ListConversations(_ context.Context, _ int, cursor string) (source.Page, error) {
	f.listCalls++
	if f.listErr != nil {
		return source.Page{}, f.listErr
	}
	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(cursor)
	}
	if idx >= len(f.pages) {
		return source.Page{}, nil
	}
	page := source.Page{Conversations: f.pages[idx]}
	if idx+1 < len(f.pages) {
		page.Cursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (f *fakeSource) SendMessage(_ context.Context, convoID, text string) error {
	if f.failIDs[convoID] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, sentMsg{ConvoID: convoID, Text: text})
	return nil
}

// convo builds a two-member conversation whose last message came from
// lastSender.
func convo(id, other, lastSender string) source.Conversation {
	return source.Conversation{
		ID:        id,
		MemberIDs: []string{self, other},
		LastMessage: &source.Message{
			ID:       id + "-last",
			SenderID: lastSender,
			Text:     "hey",
			SentAt:   time.Now(),
		},
	}
}

func newEngine(src *fakeSource) (*Engine, *ledger.Ledger) {
	led := ledger.New(store.NewMemory())
	return &Engine{
		Source: src,
		Ledger: led,
		Sleep:  func(context.Context, time.Duration) error { return nil },
	}, led
}

func enabled(overrides ...func(*settings.Dispatch)) settings.Dispatch {
	cfg := settings.Dispatch{Enabled: true, ReplyText: "welcome!"}
	for _, f := range overrides {
		f(&cfg)
	}
	return cfg
}

func TestDisabledDoesNothing(t *testing.T) {
	src := &fakeSource{pages: [][]source.Conversation{{convo("c1", "did:abc", "did:abc")}}}
	engine, _ := newEngine(src)

	report, err := engine.RunCycle(context.Background(), settings.Dispatch{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 || report.Scanned != 0 {
		t.Errorf("disabled cycle did work: %+v", report)
	}
	if src.listCalls != 0 {
		t.Error("disabled cycle must not touch the source")
	}
}

func TestFirstContactEndToEnd(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{pages: [][]source.Conversation{{convo("c1", "did:abc", "did:abc")}}}
	engine, led := newEngine(src)

	cfg := enabled(func(d *settings.Dispatch) { d.PerCycleSendCap = 10 })

	report, err := engine.RunCycle(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Fatalf("sent = %d, want 1", report.Sent)
	}
	if len(src.sent) != 1 || src.sent[0].ConvoID != "c1" || src.sent[0].Text != "welcome!" {
		t.Fatalf("unexpected sends: %+v", src.sent)
	}

	notified, _ := led.HasNotified(ctx, "did:abc")
	if !notified {
		t.Fatal("ledger entry missing after confirmed send")
	}

	// Second immediate cycle with identical input sends nothing.
	report, err = engine.RunCycle(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 {
		t.Errorf("re-scan sent %d, want 0", report.Sent)
	}
	if len(src.sent) != 1 {
		t.Errorf("total sends = %d, want 1", len(src.sent))
	}
}

func TestBotLastSenderNeverTriggers(t *testing.T) {
	src := &fakeSource{pages: [][]source.Conversation{{convo("c1", "did:abc", self)}}}
	engine, _ := newEngine(src)

	report, err := engine.RunCycle(context.Background(), enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 {
		t.Errorf("sent %d to an already-answered thread", report.Sent)
	}
}

func TestMalformedConversationsSkipped(t *testing.T) {
	noLast := source.Conversation{ID: "c-empty", MemberIDs: []string{self, "did:x"}}
	selfOnly := convo("c-self", self, self)
	selfOnly.MemberIDs = []string{self}
	crowd := convo("c-crowd", "did:a", "did:a")
	crowd.MemberIDs = []string{self, "did:a", "did:b"}

	src := &fakeSource{pages: [][]source.Conversation{{noLast, selfOnly, crowd}}}
	engine, _ := newEngine(src)

	report, err := engine.RunCycle(context.Background(), enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 {
		t.Errorf("sent = %d, want 0", report.Sent)
	}
	if report.Scanned != 3 {
		t.Errorf("scanned = %d, want 3", report.Scanned)
	}
}

func TestCapStopsCycleAndDefersRest(t *testing.T) {
	ctx := context.Background()
	var convos []source.Conversation
	for i := 0; i < 5; i++ {
		id := strconv.Itoa(i)
		convos = append(convos, convo("c"+id, "did:u"+id, "did:u"+id))
	}
	src := &fakeSource{pages: [][]source.Conversation{convos}}
	engine, _ := newEngine(src)

	cfg := enabled(func(d *settings.Dispatch) { d.PerCycleSendCap = 2 })

	for cycle, want := range []int{2, 2, 1, 0} {
		report, err := engine.RunCycle(ctx, cfg)
		if err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		if report.Sent != want {
			t.Fatalf("cycle %d sent = %d, want %d", cycle, report.Sent, want)
		}
	}
	if len(src.sent) != 5 {
		t.Errorf("total sends = %d, want 5", len(src.sent))
	}
}

func TestSendFailureLeavesCorrespondentEligible(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		pages:   [][]source.Conversation{{convo("c1", "did:abc", "did:abc")}},
		failIDs: map[string]bool{"c1": true},
	}
	engine, led := newEngine(src)

	report, err := engine.RunCycle(ctx, enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Sent != 0 {
		t.Fatalf("report = %+v, want one failure and no sends", report)
	}
	notified, _ := led.HasNotified(ctx, "did:abc")
	if notified {
		t.Fatal("failed send must not write the ledger")
	}

	// The platform recovers; the next cycle retries and succeeds.
	src.failIDs = nil
	report, err = engine.RunCycle(ctx, enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Errorf("retry cycle sent = %d, want 1", report.Sent)
	}
}

func TestDuplicateAcrossPagesSentOnce(t *testing.T) {
	src := &fakeSource{pages: [][]source.Conversation{
		{convo("c1", "did:abc", "did:abc")},
		{convo("c2", "did:abc", "did:abc"), convo("c3", "did:xyz", "did:xyz")},
	}}
	engine, _ := newEngine(src)

	report, err := engine.RunCycle(context.Background(), enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 2 {
		t.Fatalf("sent = %d, want 2 (one per correspondent)", report.Sent)
	}
	for _, s := range src.sent {
		if s.ConvoID == "c2" {
			t.Error("second conversation of the same correspondent got a send")
		}
	}
}

func TestListingFailureAbortsCycle(t *testing.T) {
	src := &fakeSource{listErr: errors.New("service unavailable")}
	engine, _ := newEngine(src)

	_, err := engine.RunCycle(context.Background(), enabled())
	if err == nil {
		t.Fatal("expected cycle failure on listing error")
	}
}

func TestEmptyListIsNotAnError(t *testing.T) {
	src := &fakeSource{}
	engine, _ := newEngine(src)

	report, err := engine.RunCycle(context.Background(), enabled())
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 0 || report.Sent != 0 {
		t.Errorf("report = %+v, want all zero", report)
	}
}

func TestDelayHappensBeforeEachSend(t *testing.T) {
	src := &fakeSource{pages: [][]source.Conversation{{
		convo("c1", "did:a", "did:a"),
		convo("c2", "did:b", "did:b"),
	}}}
	engine, _ := newEngine(src)

	var delays []time.Duration
	engine.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	cfg := enabled(func(d *settings.Dispatch) { d.DelaySeconds = 7 })
	report, err := engine.RunCycle(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 2 {
		t.Fatalf("sent = %d, want 2", report.Sent)
	}
	if len(delays) != 2 || delays[0] != 7*time.Second || delays[1] != 7*time.Second {
		t.Errorf("delays = %v, want two of 7s", delays)
	}
}

func TestReplyTruncatedToSourceLimit(t *testing.T) {
	src := &fakeSource{
		pages:  [][]source.Conversation{{convo("c1", "did:abc", "did:abc")}},
		maxLen: 5,
	}
	engine, _ := newEngine(src)

	cfg := enabled(func(d *settings.Dispatch) { d.ReplyText = "hello world" })
	if _, err := engine.RunCycle(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if len(src.sent) != 1 || src.sent[0].Text != "hello" {
		t.Errorf("sent %+v, want text truncated to %q", src.sent, "hello")
	}
}

func TestOtherMember(t *testing.T) {
	tests := []struct {
		members []string
		want    string
		ok      bool
	}{
		{[]string{self, "did:a"}, "did:a", true},
		{[]string{"did:a", self}, "did:a", true},
		{[]string{self}, "", false},
		{[]string{}, "", false},
		{[]string{self, "did:a", "did:b"}, "", false},
		{[]string{self, "did:a", "did:a"}, "did:a", true},
	}
	for _, tt := range tests {
		got, ok := otherMember(tt.members, self)
		if got != tt.want || ok != tt.ok {
			t.Errorf("otherMember(%v) = (%q, %v), want (%q, %v)", tt.members, got, ok, tt.want, tt.ok)
		}
	}
}

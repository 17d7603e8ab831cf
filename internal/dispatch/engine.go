// Package dispatch runs the first-contact scan: one full paginated pass
// over the account's conversations, sending the configured reply to each
// correspondent whose latest message is inbound and who has never been
// greeted before.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joebot/greetbot/internal/settings"
	"github.com/joebot/greetbot/internal/source"
	"github.com/joebot/greetbot/internal/text"
)

// Ledger is the de-duplication boundary the engine commits to. Reads
// happen before a send, writes strictly after a confirmed send.
type Ledger interface {
	HasNotified(ctx context.Context, correspondentID string) (bool, error)
	MarkNotified(ctx context.Context, correspondentID string) error
}

// Report summarizes one dispatch cycle.
type Report struct {
	Scanned int // conversations observed
	Sent    int // replies delivered and ledgered
	Failed  int // sends that errored and were skipped
	Elapsed time.Duration
}

// Engine orchestrates dispatch cycles. It holds no mutable state between
// cycles and takes its settings as a per-cycle snapshot, so concurrent
// invocations only contend on the ledger.
type Engine struct {
	Source   source.Source
	Ledger   Ledger
	PageSize int

	// Sleep implements the configured pre-send delay. Nil means a
	// context-aware time.Sleep. Tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunCycle performs one complete scan. Listing and ledger-read failures
// abort the cycle (the next trigger retries); individual send failures
// skip that correspondent only.
func (e *Engine) RunCycle(ctx context.Context, cfg settings.Dispatch) (Report, error) {
	start := time.Now()
	report := Report{}

	if !cfg.Enabled {
		return report, nil
	}

	selfID, err := e.Source.AccountID(ctx)
	if err != nil {
		return report, fmt.Errorf("resolve account: %w", err)
	}

	reply := text.TruncateGraphemes(cfg.ReplyText, e.Source.MaxMessageLen())
	pageSize := e.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	cursor := ""
	for {
		page, err := e.Source.ListConversations(ctx, pageSize, cursor)
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("list conversations: %w", err)
		}

		for _, convo := range page.Conversations {
			report.Scanned++

			correspondent, ok := otherMember(convo.MemberIDs, selfID)
			if !ok {
				continue // malformed or self-only conversation
			}
			if convo.LastMessage == nil || convo.LastMessage.SenderID == selfID {
				// Nothing inbound, or the ball is in their court already.
				continue
			}

			notified, err := e.Ledger.HasNotified(ctx, correspondent)
			if err != nil {
				report.Elapsed = time.Since(start)
				return report, fmt.Errorf("ledger check: %w", err)
			}
			if notified {
				continue
			}

			if cfg.PerCycleSendCap > 0 && report.Sent >= cfg.PerCycleSendCap {
				// Cap reached: stop the whole cycle, the next trigger
				// picks up the remaining correspondents.
				slog.Info("Send cap reached, ending cycle", "cap", cfg.PerCycleSendCap)
				report.Elapsed = time.Since(start)
				return report, nil
			}

			if cfg.DelaySeconds > 0 {
				if err := e.sleep(ctx, time.Duration(cfg.DelaySeconds)*time.Second); err != nil {
					report.Elapsed = time.Since(start)
					return report, err
				}
			}

			if err := e.Source.SendMessage(ctx, convo.ID, reply); err != nil {
				// No ledger write: the correspondent stays eligible and
				// a later cycle retries them.
				slog.Warn("Send failed, skipping", "convo", convo.ID, "err", err)
				report.Failed++
				continue
			}

			// The ledger write must land before the loop moves on, so a
			// re-observation of this correspondent later in the same
			// cycle finds the entry.
			if err := e.Ledger.MarkNotified(ctx, correspondent); err != nil {
				report.Sent++
				report.Elapsed = time.Since(start)
				return report, fmt.Errorf("ledger write after send: %w", err)
			}
			report.Sent++
			slog.Info("First-contact reply sent", "correspondent", correspondent, "convo", convo.ID)
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// otherMember returns the sole member ID differing from selfID. A
// conversation with zero or several other members is not actionable.
func otherMember(memberIDs []string, selfID string) (string, bool) {
	other := ""
	for _, id := range memberIDs {
		if id == selfID || id == "" {
			continue
		}
		if other != "" && other != id {
			return "", false
		}
		other = id
	}
	return other, other != ""
}

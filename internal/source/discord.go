package source

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/greetbot/internal/config"
)

const discordMaxGraphemes = 2000

// Discord exposes the bot account's DM channels as conversations using
// the Discord REST API. Discord has no server-side cursor for the DM
// channel listing, so the full list is fetched once per cycle and paged
// locally with an index cursor.
type Discord struct {
	session *discordgo.Session

	mu     sync.Mutex
	selfID string
	// channels caches the DM listing for the duration of one pagination
	// walk; a fresh walk (empty cursor) refetches it.
	channels []*discordgo.Channel
}

// NewDiscord creates a Discord source from a bot token.
func NewDiscord(cfg config.DiscordConfig) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) MaxMessageLen() int { return discordMaxGraphemes }

// AccountID returns the bot user's ID, fetching it on first use.
func (d *Discord) AccountID(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.selfID != "" {
		return d.selfID, nil
	}
	user, err := d.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord self: %w", err)
	}
	d.selfID = user.ID
	return d.selfID, nil
}

// ListConversations pages over the bot's DM channels. The cursor is the
// index of the next channel in the cached listing.
func (d *Discord) ListConversations(ctx context.Context, limit int, cursor string) (Page, error) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}

	d.mu.Lock()
	if cursor == "" || d.channels == nil {
		channels, err := d.session.UserChannels(discordgo.WithContext(ctx))
		if err != nil {
			d.mu.Unlock()
			return Page{}, fmt.Errorf("list dm channels: %w", err)
		}
		d.channels = channels
	}
	channels := d.channels
	d.mu.Unlock()

	if start >= len(channels) {
		return Page{}, nil
	}
	end := start + limit
	if end > len(channels) {
		end = len(channels)
	}

	page := Page{}
	for _, ch := range channels[start:end] {
		if ch.Type != discordgo.ChannelTypeDM {
			continue
		}
		convo := Conversation{ID: ch.ID}
		for _, u := range ch.Recipients {
			convo.MemberIDs = append(convo.MemberIDs, u.ID)
		}
		if self, err := d.AccountID(ctx); err == nil {
			convo.MemberIDs = append(convo.MemberIDs, self)
		}

		if ch.LastMessageID != "" {
			msg, err := d.session.ChannelMessage(ch.ID, ch.LastMessageID, discordgo.WithContext(ctx))
			if err == nil {
				convo.LastMessage = &Message{
					ID:       msg.ID,
					SenderID: msg.Author.ID,
					Text:     msg.Content,
					SentAt:   msg.Timestamp,
				}
			}
			// A deleted last message leaves LastMessage nil; the engine
			// treats that conversation as not actionable.
		}
		page.Conversations = append(page.Conversations, convo)
	}

	if end < len(channels) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

// SendMessage sends text into a DM channel.
func (d *Discord) SendMessage(ctx context.Context, convoID, text string) error {
	_, err := d.session.ChannelMessageSend(convoID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

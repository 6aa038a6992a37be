// Package discord is an optional chat surface. Messages from the
// configured channel are routed like CLI input and the reply is posted
// back to the same channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/timebox/internal/logging"
)

// discord rejects messages over 2000 characters
const maxMessageLen = 2000

// Connector bridges a Discord channel to a route function.
type Connector struct {
	session   *discordgo.Session
	channelID string
	botID     string
	route     func(ctx context.Context, input string) string
}

func New(token, channelID string, route func(ctx context.Context, input string) string) (*Connector, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	c := &Connector{
		session:   session,
		channelID: channelID,
		route:     route,
	}

	session.AddHandler(c.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return c, nil
}

// Start connects to Discord and begins listening.
func (c *Connector) Start() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	c.botID = c.session.State.User.ID
	logging.Info("discord", "connected as %s", c.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord.
func (c *Connector) Stop() error {
	return c.session.Close()
}

// Send pushes an unprompted message (e.g. an idle nudge) to the
// configured channel.
func (c *Connector) Send(text string) error {
	if c.channelID == "" {
		return fmt.Errorf("no channel configured")
	}
	for _, chunk := range splitMessage(text) {
		if _, err := c.session.ChannelMessageSend(c.channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == c.botID || m.Author.Bot {
		return
	}
	if c.channelID != "" && m.ChannelID != c.channelID {
		return
	}
	if m.Content == "" {
		return
	}

	logging.Debug("discord", "message from %s: %s", m.Author.Username, logging.Truncate(m.Content, 50))

	reply := c.route(context.Background(), m.Content)
	if reply == "" {
		return
	}

	for _, chunk := range splitMessage(reply) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			logging.Warn("discord", "failed to send reply: %v", err)
			return
		}
	}
}

// splitMessage breaks a reply into chunks Discord will accept,
// preferring newline boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxMessageLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxMessageLen {
		cut := maxMessageLen
		for i := maxMessageLen - 1; i > maxMessageLen/2; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// Package discord posts labyard notifications to a Discord channel.
package discord

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/labyard/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff after a 429.
	baseBackoff = 1 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 30 * time.Second
)

// session abstracts the discordgo methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelOpts holds parameters for creating a Discord Channel.
type ChannelOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// Channel implements notify.Channel for Discord.
type Channel struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// New creates a Discord Channel. Sending uses the REST API only, so no
// gateway connection is opened.
func New(opts ChannelOpts) (*Channel, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	c := &Channel{
		sess:        opts.Session,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if c.sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		c.sess = s
	}
	return c, nil
}

func (c *Channel) Name() string { return "discord" }

// Send posts msg as one embed.
func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	data := buildMessageSend(msg)
	err := c.retryOnRateLimit(ctx, func() error {
		_, sendErr := c.sess.ChannelMessageSendComplex(c.channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// buildMessageSend converts a notify.Message to a Discord MessageSend.
func buildMessageSend(msg notify.Message) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Subject,
		Description: msg.Body,
	}
	if msg.Color != "" {
		embed.Color = parseHexColor(msg.Color)
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	if msg.To != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "for " + msg.To}
	}
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on 429s.
func (c *Channel) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * c.baseBackoff
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// Package slack posts labyard notifications to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/labyard/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// ChannelOpts holds parameters for creating a Slack Channel.
type ChannelOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// Channel implements notify.Channel for Slack.
type Channel struct {
	client    slackClient
	channelID string
}

// New creates a Slack Channel.
func New(opts ChannelOpts) (*Channel, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	c := &Channel{client: opts.Client, channelID: opts.ChannelID}
	if c.client == nil {
		c.client = slackapi.New(opts.BotToken)
	}
	return c, nil
}

func (c *Channel) Name() string { return "slack" }

// Send posts msg as a single attachment.
func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	options := buildMessageOptions(msg)
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := c.client.PostMessage(c.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// buildMessageOptions converts a notify.Message into Slack message options.
func buildMessageOptions(msg notify.Message) []slackapi.MsgOption {
	att := slackapi.Attachment{
		Title:    msg.Subject,
		Text:     msg.Body,
		Color:    msg.Color,
		Fallback: msg.Subject,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	if msg.To != "" {
		att.Footer = "for " + msg.To
	}
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(msg.Subject, false),
		slackapi.MsgOptionAttachments(att),
	}
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// LogChannel writes notifications to the structured log. Useful in
// development and as a fallback when no transport is configured.
type LogChannel struct {
	Logger *zap.Logger
}

func (c LogChannel) Name() string { return "log" }

// Send implements Channel.
func (c LogChannel) Send(ctx context.Context, msg Message) error {
	l := c.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// SMTPOpts holds parameters for an SMTPChannel.
type SMTPOpts struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc delivers one built message.
type sendFunc func(ctx context.Context, m *mail.Msg) error

// SMTPChannel delivers notifications as plain-text mail.
type SMTPChannel struct {
	opts SMTPOpts
	send sendFunc
}

// NewSMTPChannel creates an SMTPChannel.
func NewSMTPChannel(opts SMTPOpts) (*SMTPChannel, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("notify: smtp host is required")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("notify: smtp from address is required")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	c := &SMTPChannel{opts: opts}
	c.send = c.dialAndSend
	return c, nil
}

func (c *SMTPChannel) Name() string { return "smtp" }

// Send implements Channel. It returns once ctx is done even if the mail
// server never answers.
func (c *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("no recipient address")
	}
	m, err := c.build(msg)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- c.send(ctx, m) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func (c *SMTPChannel) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.opts.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (c *SMTPChannel) dialAndSend(ctx context.Context, m *mail.Msg) error {
	options := []mail.Option{
		mail.WithPort(c.opts.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			options = append(options, mail.WithTimeout(d))
		}
	}
	if c.opts.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.opts.Username),
			mail.WithPassword(c.opts.Password))
	}
	client, err := mail.NewClient(c.opts.Host, options...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

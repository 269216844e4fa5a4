// Package notify delivers best-effort notifications about workflow events.
//
// A Notifier never decides whether a transition happens: callers queue
// notifications as post-commit hooks and Deliver swallows every failure
// after logging it.
package notify

import (
	"context"
	"time"

	"github.com/zulandar/labyard/internal/metrics"
	"go.uber.org/zap"
)

// Kind identifies a notification template.
type Kind string

const (
	RequirementCreated Kind = "requirement_created"
	SampleReceived     Kind = "sample_received"
	AnalysisCompleted  Kind = "analysis_completed"
	StorageExpiration  Kind = "storage_expiration"
	Custom             Kind = "custom"
)

// Data carries template values for one notification.
type Data map[string]interface{}

// Notifier sends a notification of kind to the recipient address.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, to string, data Data) error
}

// Colors used by chat channels, one per notification mood.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// Field is a labelled value shown alongside a message body.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Message is a rendered notification ready for a Channel.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
	Color   string
	Fields  []Field
	SentAt  time.Time
}

// Channel is one delivery transport (mail, chat, log).
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Kind, string, Data) error { return nil }

// Deliver calls n and absorbs any failure: it is logged and counted, never
// returned. A nil Notifier is a no-op.
func Deliver(ctx context.Context, n Notifier, log *zap.Logger, kind Kind, to string, data Data) {
	if n == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := n.Notify(ctx, kind, to, data); err != nil {
		metrics.Notifications.WithLabelValues(string(kind), "failed").Inc()
		log.Warn("notification failed",
			zap.String("kind", string(kind)),
			zap.String("to", to),
			zap.Error(err))
		return
	}
	metrics.Notifications.WithLabelValues(string(kind), "sent").Inc()
}

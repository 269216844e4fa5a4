package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Channels []Channel
	Logger   *zap.Logger
	// Async sends on a background goroutine and returns immediately.
	Async bool
	// Timeout bounds one delivery, sync or async (default 30s).
	Timeout time.Duration
	Now     func() time.Time
}

// Dispatcher renders a notification once and fans it out to every channel.
type Dispatcher struct {
	channels []Channel
	log      *zap.Logger
	async    bool
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if len(opts.Channels) == 0 {
		return nil, fmt.Errorf("notify: at least one channel is required")
	}
	d := &Dispatcher{
		channels: opts.Channels,
		log:      opts.Logger,
		async:    opts.Async,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Notify implements Notifier. In async mode rendering errors are still
// returned, while channel errors are only logged.
func (d *Dispatcher) Notify(ctx context.Context, kind Kind, to string, data Data) error {
	msg, err := Render(kind, to, data)
	if err != nil {
		return err
	}
	msg.SentAt = d.now()

	if !d.async {
		return d.sendNow(ctx, msg)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.send(sendCtx, msg); err != nil {
			d.log.Warn("async notification failed",
				zap.String("kind", string(kind)),
				zap.String("to", to),
				zap.Error(err))
		}
	}()
	return nil
}

// Sync returns a Notifier over the same channels that always delivers
// before returning, so callers that count outcomes see real failures.
func (d *Dispatcher) Sync() Notifier {
	return syncNotifier{d: d}
}

type syncNotifier struct {
	d *Dispatcher
}

func (n syncNotifier) Notify(ctx context.Context, kind Kind, to string, data Data) error {
	msg, err := Render(kind, to, data)
	if err != nil {
		return err
	}
	msg.SentAt = n.d.now()
	return n.d.sendNow(ctx, msg)
}

// sendNow delivers on the caller's goroutine, bounded by the timeout.
func (d *Dispatcher) sendNow(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.send(ctx, msg)
}

// Wait blocks until every asynchronous delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

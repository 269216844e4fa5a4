// Package expiry warns requesters about stored samples nearing their
// estimated expiry.
package expiry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/labyard/internal/metrics"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/notify"
	"github.com/zulandar/labyard/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Defaults for a Sweeper.
const (
	DefaultCron      = "0 8 * * *"
	DefaultLookahead = 7 * 24 * time.Hour
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Opts configures a Sweeper.
type Opts struct {
	DB *gorm.DB
	// Notifier must report delivery failures; give it a synchronous
	// notifier (see notify.Dispatcher.Sync) or Notified only counts queued notices.
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Lookahead time.Duration
	// Cron is the schedule Run fires on.
	Cron string
	Now  func() time.Time
}

// Sweeper finds expiring storage and notifies the owning requesters.
type Sweeper struct {
	db        *gorm.DB
	notifier  notify.Notifier
	log       *zap.Logger
	lookahead time.Duration
	schedule  cron.Schedule
	now       func() time.Time
}

// Result summarises one sweep.
type Result struct {
	Expiring   int
	Requesters int
	Notified   int
	Failed     int
}

// New creates a Sweeper, validating the cron expression.
func New(opts Opts) (*Sweeper, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("expiry: db is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("expiry: notifier is required")
	}
	expr := opts.Cron
	if expr == "" {
		expr = DefaultCron
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("expiry: parse cron %q: %w", expr, err)
	}
	s := &Sweeper{
		db:        opts.DB,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		lookahead: opts.Lookahead,
		schedule:  sched,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.lookahead <= 0 {
		s.lookahead = DefaultLookahead
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

type batch struct {
	name  string
	items []map[string]interface{}
}

// Sweep sends one storage_expiration notice per requester owning OCCUPIED
// storage that expires within the lookahead. Requesters are handled in email
// order; a failed notice is logged and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	now := s.now()
	rows, err := storage.Expiring(s.db.WithContext(ctx), now, now.Add(s.lookahead))
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("expiry: sweep: %w", err)
	}

	byEmail := map[string]*batch{}
	for _, st := range rows {
		requester := st.Sample.Requirement.Requester
		if requester.Email == "" {
			s.log.Warn("expiring storage without requester", zap.String("storage_id", st.ID))
			continue
		}
		b, ok := byEmail[requester.Email]
		if !ok {
			b = &batch{name: requester.Name}
			byEmail[requester.Email] = b
		}
		b.items = append(b.items, item(st))
	}

	emails := make([]string, 0, len(byEmail))
	for e := range byEmail {
		emails = append(emails, e)
	}
	sort.Strings(emails)

	res := &Result{Expiring: len(rows), Requesters: len(emails)}
	days := int(s.lookahead.Hours() / 24)
	for _, email := range emails {
		b := byEmail[email]
		err := s.notifier.Notify(ctx, notify.StorageExpiration, email, notify.Data{
			"name":  b.name,
			"days":  days,
			"items": b.items,
		})
		if err != nil {
			res.Failed++
			metrics.Notifications.WithLabelValues(string(notify.StorageExpiration), "failed").Inc()
			s.log.Error("expiry notice failed",
				zap.String("to", email),
				zap.Int("items", len(b.items)),
				zap.Error(err))
			continue
		}
		res.Notified++
		metrics.Notifications.WithLabelValues(string(notify.StorageExpiration), "sent").Inc()
	}

	result := "ok"
	if res.Failed > 0 {
		result = "partial"
	}
	metrics.SweepRuns.WithLabelValues(result).Inc()
	s.log.Info("expiry sweep finished",
		zap.Int("expiring", res.Expiring),
		zap.Int("requesters", res.Requesters),
		zap.Int("notified", res.Notified),
		zap.Int("failed", res.Failed))
	return res, nil
}

func item(st models.Storage) map[string]interface{} {
	return map[string]interface{}{
		"qr_code":    st.Sample.QRCode,
		"location":   st.Location,
		"shelf":      st.Shelf,
		"box":        st.Box,
		"expires_at": st.ExpiresAt,
	}
}

// Next returns how long until the next scheduled sweep after now.
func (s *Sweeper) Next() time.Duration {
	now := s.now()
	d := s.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Start runs the schedule on a background goroutine. The returned stop
// cancels it and waits for an in-flight sweep to finish.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(s.Next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("expiry sweep", zap.Error(err))
			}
			timer.Reset(s.Next())
		}
	}
}

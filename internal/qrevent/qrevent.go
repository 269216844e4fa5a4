// Package qrevent records and queries the append-only scan log of samples.
package qrevent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Query limits.
const (
	DefaultRecent = 50
	MaxRecent     = 200
	MaxResults    = 100
)

// Service records QR events. It only ever inserts.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Service. now defaults to time.Now.
func New(db *gorm.DB, now func() time.Time) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("qrevent: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}, nil
}

// RecordOpts describes one scan.
type RecordOpts struct {
	QRCode   string
	Type     string
	UserID   string
	Location string
	Metadata map[string]interface{}
}

// Trail is a sample with its events, newest first.
type Trail struct {
	Sample models.Sample
	Events []models.QREvent
}

// Statistics summarises the event log.
type Statistics struct {
	Total   int64            `json:"total"`
	ByType  map[string]int64 `json:"by_type"`
	Last24h int64            `json:"last_24h"`
}

// Record appends an event for the sample with the given QR code.
func (s *Service) Record(ctx context.Context, opts RecordOpts) (*models.QREvent, error) {
	if !slices.Contains(models.EventTypes, opts.Type) {
		return nil, &workflow.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", opts.Type)}
	}

	var ev models.QREvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		smp, err := sampleByCode(tx, opts.QRCode)
		if err != nil {
			return err
		}
		var user models.User
		if err := workflow.Load(tx, workflow.User, opts.UserID, &user); err != nil {
			return err
		}

		ev = models.QREvent{
			SampleID:  smp.ID,
			Type:      opts.Type,
			UserID:    user.ID,
			Location:  opts.Location,
			Metadata:  opts.Metadata,
			CreatedAt: s.now(),
		}
		if err := tx.Omit(clause.Associations).Create(&ev).Error; err != nil {
			return fmt.Errorf("qrevent: record: %w", err)
		}
		ev.Sample = *smp
		ev.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ByQRCode returns the sample with the given code and its events, newest first.
func (s *Service) ByQRCode(ctx context.Context, code string) (*Trail, error) {
	db := s.db.WithContext(ctx)
	smp, err := sampleByCode(db.Preload("Requirement.Requester").Preload("Storage"), code)
	if err != nil {
		return nil, err
	}
	t := &Trail{Sample: *smp}
	if err := db.Preload("User").Where("sample_id = ?", smp.ID).
		Order("created_at DESC").Find(&t.Events).Error; err != nil {
		return nil, fmt.Errorf("qrevent: events of %s: %w", code, err)
	}
	return t, nil
}

// Timeline returns a sample's events oldest first.
func (s *Service) Timeline(ctx context.Context, sampleID string) ([]models.QREvent, error) {
	db := s.db.WithContext(ctx)
	if err := workflow.Load(db, workflow.Sample, sampleID, &models.Sample{}); err != nil {
		return nil, err
	}
	var events []models.QREvent
	if err := db.Preload("User").Where("sample_id = ?", sampleID).
		Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("qrevent: timeline of %s: %w", sampleID, err)
	}
	return events, nil
}

// ByType returns the latest events of one type.
func (s *Service) ByType(ctx context.Context, eventType string) ([]models.QREvent, error) {
	if !slices.Contains(models.EventTypes, eventType) {
		return nil, &workflow.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", eventType)}
	}
	return s.latest(ctx, MaxResults, "type = ?", eventType)
}

// Recent returns the latest events across all samples. limit defaults to
// DefaultRecent and is capped at MaxRecent.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.QREvent, error) {
	if limit <= 0 {
		limit = DefaultRecent
	}
	return s.latest(ctx, min(limit, MaxRecent), "")
}

// SearchLocation returns the latest events whose location contains term.
func (s *Service) SearchLocation(ctx context.Context, term string) ([]models.QREvent, error) {
	return s.latest(ctx, MaxResults, "location LIKE ?", "%"+term+"%")
}

func (s *Service) latest(ctx context.Context, limit int, where string, args ...interface{}) ([]models.QREvent, error) {
	q := s.db.WithContext(ctx).Preload("Sample").Preload("User")
	if where != "" {
		q = q.Where(where, args...)
	}
	var events []models.QREvent
	if err := q.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("qrevent: list: %w", err)
	}
	return events, nil
}

// Statistics counts events by type and over the last day.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	st := &Statistics{ByType: map[string]int64{}}

	if err := db.Model(&models.QREvent{}).Count(&st.Total).Error; err != nil {
		return nil, fmt.Errorf("qrevent: count: %w", err)
	}
	var rows []struct {
		Type  string
		Count int64
	}
	if err := db.Model(&models.QREvent{}).Select("type, count(*) as count").
		Group("type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("qrevent: count by type: %w", err)
	}
	for _, r := range rows {
		st.ByType[r.Type] = r.Count
	}
	if err := db.Model(&models.QREvent{}).Where("created_at >= ?", s.now().Add(-24*time.Hour)).
		Count(&st.Last24h).Error; err != nil {
		return nil, fmt.Errorf("qrevent: count last day: %w", err)
	}
	return st, nil
}

func sampleByCode(tx *gorm.DB, code string) (*models.Sample, error) {
	var smp models.Sample
	if err := tx.Where("qr_code = ?", code).First(&smp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.NotFoundError{Entity: workflow.Sample, ID: code}
		}
		return nil, fmt.Errorf("qrevent: sample %s: %w", code, err)
	}
	return &smp, nil
}

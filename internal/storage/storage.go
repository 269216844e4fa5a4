// Package storage tracks where samples sit in the warehouse and gates their
// disposal behind a request/approve pair.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/labyard/internal/metrics"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultExpiringDays is the lookahead used by ExpiringSoon when none is given.
const DefaultExpiringDays = 30

// Opts holds the collaborators of a Service.
type Opts struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Now    func() time.Time
}

// Service runs storage operations.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("storage: db is required")
	}
	s := &Service{db: opts.DB, log: opts.Logger, now: opts.Now}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// CreateOpts holds the placement of a sample.
type CreateOpts struct {
	SampleID  string
	Location  string
	Shelf     string
	Box       string
	Position  string
	ExpiresAt *time.Time
}

// UpdateOpts holds placement fields to change; nil fields are left alone.
type UpdateOpts struct {
	Location  *string
	Shelf     *string
	Box       *string
	Position  *string
	ExpiresAt *time.Time
	Status    *string
}

// Filters holds optional filters for listing storage records.
type Filters struct {
	Status string
	Shelf  string
	// Location matches any record whose location contains the value.
	Location        string
	PendingDeletion bool
}

// Slot is one occupied or free position on a shelf.
type Slot struct {
	Location string `json:"location"`
	Box      string `json:"box"`
	Position string `json:"position"`
	Status   string `json:"status"`
}

// ShelfLayout summarises the positions of one shelf.
type ShelfLayout struct {
	Shelf     string `json:"shelf"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Occupied  int    `json:"occupied"`
	Slots     []Slot `json:"slots"`
}

// LocationCount is the number of records at one location.
type LocationCount struct {
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// Statistics summarises storage records.
type Statistics struct {
	Total           int64            `json:"total"`
	ByStatus        map[string]int64 `json:"by_status"`
	PendingDeletion int64            `json:"pending_deletion"`
	ByLocation      []LocationCount  `json:"by_location"`
}

// Create places a sample, OCCUPIED. A sample has at most one record.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Storage, error) {
	if opts.Location == "" || opts.Shelf == "" {
		return nil, &workflow.ValidationError{Field: "location", Reason: "location and shelf are required"}
	}

	var st models.Storage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var smp models.Sample
		if err := workflow.Load(tx, workflow.Sample, opts.SampleID, &smp); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Storage{}).Where("sample_id = ?", smp.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("storage: check sample %s: %w", smp.ID, err)
		}
		if n > 0 {
			return &workflow.ConflictError{Entity: workflow.Storage, Reason: fmt.Sprintf("sample %s is already stored", smp.QRCode)}
		}

		st = models.Storage{
			SampleID:  smp.ID,
			Location:  opts.Location,
			Shelf:     opts.Shelf,
			Box:       opts.Box,
			Position:  opts.Position,
			ExpiresAt: opts.ExpiresAt,
			Status:    models.StorageOccupied,
		}
		if err := tx.Omit(clause.Associations).Create(&st).Error; err != nil {
			return fmt.Errorf("storage: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Get retrieves a storage record with its sample.
func (s *Service) Get(ctx context.Context, id string) (*models.Storage, error) {
	var st models.Storage
	if err := workflow.Load(s.db.WithContext(ctx).Preload("Sample"), workflow.Storage, id, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetBySample retrieves the storage record of a sample.
func (s *Service) GetBySample(ctx context.Context, sampleID string) (*models.Storage, error) {
	var st models.Storage
	err := s.db.WithContext(ctx).Preload("Sample").Where("sample_id = ?", sampleID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.NotFoundError{Entity: workflow.Storage, ID: "sample " + sampleID}
		}
		return nil, fmt.Errorf("storage: get by sample %s: %w", sampleID, err)
	}
	return &st, nil
}

// List returns storage records matching filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.Storage, error) {
	q := s.db.WithContext(ctx).Model(&models.Storage{}).Preload("Sample")

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Shelf != "" {
		q = q.Where("shelf = ?", filters.Shelf)
	}
	if filters.Location != "" {
		q = q.Where("location LIKE ?", "%"+filters.Location+"%")
	}
	if filters.PendingDeletion {
		q = q.Where("deletion_requested = ? AND deletion_approved = ?", true, false)
	}

	var out []models.Storage
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Update edits the placement, expiry or status of a record.
func (s *Service) Update(ctx context.Context, id string, opts UpdateOpts) (*models.Storage, error) {
	fields := map[string]interface{}{}
	if opts.Location != nil {
		fields["location"] = *opts.Location
	}
	if opts.Shelf != nil {
		fields["shelf"] = *opts.Shelf
	}
	if opts.Box != nil {
		fields["box"] = *opts.Box
	}
	if opts.Position != nil {
		fields["position"] = *opts.Position
	}
	if opts.ExpiresAt != nil {
		fields["expires_at"] = *opts.ExpiresAt
	}
	if opts.Status != nil {
		if !slices.Contains(models.StorageStatuses, *opts.Status) {
			return nil, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown storage status %q", *opts.Status)}
		}
		fields["status"] = *opts.Status
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Load(tx, workflow.Storage, id, &models.Storage{}); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&models.Storage{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return fmt.Errorf("storage: update %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// RequestDeletion flags a record for disposal.
func (s *Service) RequestDeletion(ctx context.Context, id, by string) (*models.Storage, error) {
	err := s.flip(ctx, id, "request deletion",
		"deletion_requested = ?", []interface{}{false},
		map[string]interface{}{"deletion_requested": true, "deletion_requested_by": nullable(by)},
		func(st models.Storage) string {
			if st.DeletionRequested {
				return "deletion already requested"
			}
			return ""
		})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ApproveDeletion approves a requested disposal and frees the position.
func (s *Service) ApproveDeletion(ctx context.Context, id, by string) (*models.Storage, error) {
	err := s.flip(ctx, id, "approve deletion",
		"deletion_requested = ? AND deletion_approved = ?", []interface{}{true, false},
		map[string]interface{}{
			"deletion_approved":    true,
			"deletion_approved_by": nullable(by),
			"status":               models.StorageAvailable,
		},
		func(st models.Storage) string {
			switch {
			case !st.DeletionRequested:
				return "deletion not requested"
			case st.DeletionApproved:
				return "deletion already approved"
			}
			return ""
		})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// flip applies a guarded flag update. When the guard does not hold, reason
// explains why from the row as it is now.
func (s *Service) flip(ctx context.Context, id, op, guard string, args []interface{}, updates map[string]interface{}, reason func(models.Storage) string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.Storage
		if err := workflow.Load(tx, workflow.Storage, id, &st); err != nil {
			return err
		}
		if r := reason(st); r != "" {
			metrics.ObserveTransition(string(workflow.Storage), op, errors.New(r))
			return &workflow.ConflictError{Entity: workflow.Storage, ID: id, Reason: r}
		}

		res := tx.Model(&models.Storage{}).Where("id = ?", id).Where(guard, args...).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("storage: %s %s: %w", op, id, res.Error)
		}
		if res.RowsAffected != 1 {
			if err := workflow.Load(tx, workflow.Storage, id, &st); err != nil {
				return err
			}
			r := reason(st)
			if r == "" {
				r = "changed concurrently"
			}
			metrics.ObserveTransition(string(workflow.Storage), op, errors.New(r))
			return &workflow.ConflictError{Entity: workflow.Storage, ID: id, Reason: r}
		}
		metrics.ObserveTransition(string(workflow.Storage), op, nil)
		return nil
	})
}

// Remove physically deletes a record whose disposal was approved.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.Storage
		if err := workflow.Load(tx, workflow.Storage, id, &st); err != nil {
			return err
		}
		if !st.DeletionApproved {
			return &workflow.ConflictError{Entity: workflow.Storage, ID: id, Reason: "deletion not approved"}
		}
		res := tx.Where("id = ? AND deletion_approved = ?", id, true).Delete(&models.Storage{})
		if res.Error != nil {
			return fmt.Errorf("storage: remove %s: %w", id, res.Error)
		}
		if res.RowsAffected != 1 {
			return &workflow.ConflictError{Entity: workflow.Storage, ID: id, Reason: "changed concurrently"}
		}
		return nil
	})
}

// ExpiringSoon returns OCCUPIED records whose expiry falls within the next
// days days, soonest first, with the sample's requirement and requester.
func (s *Service) ExpiringSoon(ctx context.Context, days int) ([]models.Storage, error) {
	if days <= 0 {
		days = DefaultExpiringDays
	}
	now := s.now()
	return Expiring(s.db.WithContext(ctx), now, now.AddDate(0, 0, days))
}

// Expiring returns OCCUPIED records with an expiry in [from, to], soonest first.
func Expiring(db *gorm.DB, from, to time.Time) ([]models.Storage, error) {
	var out []models.Storage
	err := db.Preload("Sample.Requirement.Requester").
		Where("status = ? AND expires_at >= ? AND expires_at <= ?", models.StorageOccupied, from, to).
		Order("expires_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("storage: expiring: %w", err)
	}
	return out, nil
}

// Locations describes the positions on one shelf.
func (s *Service) Locations(ctx context.Context, shelf string) (*ShelfLayout, error) {
	var rows []models.Storage
	if err := s.db.WithContext(ctx).Where("shelf = ?", shelf).
		Order("location, box, position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: locations of %s: %w", shelf, err)
	}

	layout := &ShelfLayout{Shelf: shelf, Total: len(rows), Slots: make([]Slot, 0, len(rows))}
	for _, r := range rows {
		switch r.Status {
		case models.StorageAvailable:
			layout.Available++
		case models.StorageOccupied:
			layout.Occupied++
		}
		layout.Slots = append(layout.Slots, Slot{Location: r.Location, Box: r.Box, Position: r.Position, Status: r.Status})
	}
	return layout, nil
}

// Statistics counts records by status and location.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	st := &Statistics{ByStatus: map[string]int64{}}

	if err := db.Model(&models.Storage{}).Count(&st.Total).Error; err != nil {
		return nil, fmt.Errorf("storage: count: %w", err)
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Storage{}).Select("status, count(*) as count").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("storage: count by status: %w", err)
	}
	for _, r := range byStatus {
		st.ByStatus[r.Status] = r.Count
	}

	if err := db.Model(&models.Storage{}).
		Where("deletion_requested = ? AND deletion_approved = ?", true, false).
		Count(&st.PendingDeletion).Error; err != nil {
		return nil, fmt.Errorf("storage: count pending deletion: %w", err)
	}

	if err := db.Model(&models.Storage{}).Select("location, count(*) as count").
		Group("location").Order("count(*) DESC").Scan(&st.ByLocation).Error; err != nil {
		return nil, fmt.Errorf("storage: count by location: %w", err)
	}
	return st, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

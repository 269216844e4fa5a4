// Package sample provides the sample custody workflow.
package sample

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/labyard/internal/codegen"
	"github.com/zulandar/labyard/internal/metrics"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/notify"
	"github.com/zulandar/labyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Opts holds the collaborators of a Service.
type Opts struct {
	DB       *gorm.DB
	Codes    *codegen.Generator
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service runs sample operations.
type Service struct {
	db       *gorm.DB
	codes    *codegen.Generator
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("sample: db is required")
	}
	s := &Service{db: opts.DB, codes: opts.Codes, notifier: opts.Notifier, log: opts.Logger, now: opts.Now}
	if s.codes == nil {
		s.codes = codegen.NewGenerator(codegen.TableSequence{})
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// CreateOpts holds parameters for registering a sample.
type CreateOpts struct {
	RequirementID   string
	ParentSampleID  string
	Type            string
	Format          string
	Quantity        string
	Notes           string
	IsCounterSample bool
}

// DerivativeOpts overrides what a derived sample inherits from its parent.
type DerivativeOpts struct {
	Type            string
	Format          string
	Quantity        string
	Notes           string
	IsCounterSample bool
}

// UpdateOpts holds descriptive fields to change; nil fields are left alone.
type UpdateOpts struct {
	Type            *string
	Format          *string
	Quantity        *string
	Notes           *string
	IsCounterSample *bool
}

// ReceiveOpts holds the optional parts of a reception.
type ReceiveOpts struct {
	Note string
	// At overrides the reception time.
	At *time.Time
}

// Filters holds optional filters for listing samples.
type Filters struct {
	RequirementID string
	Status        string
	// QRCode matches any sample whose code contains the value.
	QRCode string
}

// History is a sample with its audit trail and analyses in time order.
type History struct {
	Sample   models.Sample
	Events   []models.QREvent
	Analyses []models.Analysis
}

// Create registers an EXPECTED sample under an existing requirement.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Sample, error) {
	if strings.TrimSpace(opts.Type) == "" {
		return nil, &workflow.ValidationError{Field: "type", Reason: "is required"}
	}

	var smp models.Sample
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Requirement
		if err := workflow.Load(tx, workflow.Requirement, opts.RequirementID, &req); err != nil {
			return err
		}
		if opts.ParentSampleID != "" {
			var parent models.Sample
			if err := workflow.Load(tx, workflow.Sample, opts.ParentSampleID, &parent); err != nil {
				return err
			}
			if parent.RequirementID != req.ID {
				return &workflow.ValidationError{Field: "parent_sample_id", Reason: "belongs to another requirement"}
			}
		}

		var err error
		smp, err = s.insert(ctx, tx, models.Sample{
			RequirementID:   req.ID,
			ParentSampleID:  nullable(opts.ParentSampleID),
			Type:            opts.Type,
			Format:          opts.Format,
			Quantity:        opts.Quantity,
			Notes:           opts.Notes,
			IsCounterSample: opts.IsCounterSample,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &smp, nil
}

// CreateDerivative registers a sample derived from parentID. It inherits the
// parent's requirement, and its type and format unless overridden, then
// follows its own lifecycle from EXPECTED.
func (s *Service) CreateDerivative(ctx context.Context, parentID string, opts DerivativeOpts) (*models.Sample, error) {
	var smp models.Sample
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Sample
		if err := workflow.Load(tx, workflow.Sample, parentID, &parent); err != nil {
			return err
		}
		if parent.Status == models.SampleDeleted {
			return &workflow.ForbiddenError{Entity: workflow.Sample, ID: parentID, Status: parent.Status, Action: "derive from"}
		}

		child := models.Sample{
			RequirementID:   parent.RequirementID,
			ParentSampleID:  &parent.ID,
			Type:            firstNonEmpty(opts.Type, parent.Type),
			Format:          firstNonEmpty(opts.Format, parent.Format),
			Quantity:        opts.Quantity,
			Notes:           opts.Notes,
			IsCounterSample: opts.IsCounterSample,
		}
		var err error
		smp, err = s.insert(ctx, tx, child)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &smp, nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, smp models.Sample) (models.Sample, error) {
	code, err := s.codes.Next(ctx, tx, codegen.PrefixSample)
	if err != nil {
		return smp, err
	}
	smp.QRCode = code
	smp.Status = models.SampleExpected
	if err := tx.Omit(clause.Associations).Create(&smp).Error; err != nil {
		return smp, fmt.Errorf("sample: create: %w", err)
	}
	return smp, nil
}

// Get retrieves a sample by ID with its requirement, parent, children,
// analyses and storage record.
func (s *Service) Get(ctx context.Context, id string) (*models.Sample, error) {
	var smp models.Sample
	q := s.db.WithContext(ctx).
		Preload("Requirement").
		Preload("Parent").
		Preload("Children").
		Preload("Analyses").
		Preload("Analyses.AnalysisType").
		Preload("Storage")
	if err := workflow.Load(q, workflow.Sample, id, &smp); err != nil {
		return nil, err
	}
	return &smp, nil
}

// GetByQRCode retrieves a sample by its scan code.
func (s *Service) GetByQRCode(ctx context.Context, code string) (*models.Sample, error) {
	var smp models.Sample
	err := s.db.WithContext(ctx).Preload("Requirement").Preload("Storage").
		Where("qr_code = ?", code).First(&smp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.NotFoundError{Entity: workflow.Sample, ID: code}
		}
		return nil, fmt.Errorf("sample: get by qr %s: %w", code, err)
	}
	return &smp, nil
}

// List returns samples matching filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.Sample, error) {
	q := s.db.WithContext(ctx).Model(&models.Sample{}).Preload("Requirement")

	if filters.RequirementID != "" {
		q = q.Where("requirement_id = ?", filters.RequirementID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.QRCode != "" {
		q = q.Where("qr_code LIKE ?", "%"+filters.QRCode+"%")
	}

	var samples []models.Sample
	if err := q.Order("created_at DESC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("sample: list: %w", err)
	}
	return samples, nil
}

// History returns the sample's QR events (oldest first) and analyses by start time.
func (s *Service) History(ctx context.Context, id string) (*History, error) {
	db := s.db.WithContext(ctx)
	var h History
	if err := workflow.Load(db.Preload("Requirement"), workflow.Sample, id, &h.Sample); err != nil {
		return nil, err
	}
	if err := db.Preload("User").Where("sample_id = ?", id).Order("created_at ASC").Find(&h.Events).Error; err != nil {
		return nil, fmt.Errorf("sample: events of %s: %w", id, err)
	}
	if err := db.Preload("AnalysisType").Preload("Analyst").Where("sample_id = ?", id).
		Order("started_at ASC, created_at ASC").Find(&h.Analyses).Error; err != nil {
		return nil, fmt.Errorf("sample: analyses of %s: %w", id, err)
	}
	return &h, nil
}

// Update edits descriptive fields. DELETED samples are frozen.
func (s *Service) Update(ctx context.Context, id string, opts UpdateOpts) (*models.Sample, error) {
	fields := map[string]interface{}{}
	if opts.Type != nil {
		fields["type"] = *opts.Type
	}
	if opts.Format != nil {
		fields["format"] = *opts.Format
	}
	if opts.Quantity != nil {
		fields["quantity"] = *opts.Quantity
	}
	if opts.Notes != nil {
		fields["notes"] = *opts.Notes
	}
	if opts.IsCounterSample != nil {
		fields["is_counter_sample"] = *opts.IsCounterSample
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var smp models.Sample
		if err := workflow.Load(tx, workflow.Sample, id, &smp); err != nil {
			return err
		}
		if smp.Status == models.SampleDeleted {
			return &workflow.ForbiddenError{Entity: workflow.Sample, ID: id, Status: smp.Status, Action: "edit"}
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&models.Sample{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return fmt.Errorf("sample: update %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ChangeStatus moves a sample along its custody graph, stamping the
// reception and analysis timestamps on first entry. at, when given,
// overrides the stamp for the target state.
func (s *Service) ChangeStatus(ctx context.Context, id, status string, at *time.Time) (*models.Sample, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.transition(tx, &hooks, id, status, at, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// Receive marks a sample RECEIVED, appends the reception note and tells the
// requirement's requester.
func (s *Service) Receive(ctx context.Context, id string, opts ReceiveOpts) (*models.Sample, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.transition(tx, &hooks, id, models.SampleReceived, opts.At, opts.Note)
		return err
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// transition applies one status change inside tx and queues its
// notifications on hooks.
func (s *Service) transition(tx *gorm.DB, hooks *workflow.Hooks, id, status string, at *time.Time, note string) (*models.Sample, error) {
	var smp models.Sample
	if err := workflow.Load(tx, workflow.Sample, id, &smp); err != nil {
		return nil, err
	}

	now := s.now()
	updates := map[string]interface{}{}
	switch status {
	case models.SampleReceived:
		smp.ReceivedAt = workflow.Stamp(smp.ReceivedAt, at, now)
		updates["received_at"] = smp.ReceivedAt
	case models.SampleInAnalysis:
		smp.AnalysisStartedAt = workflow.Stamp(smp.AnalysisStartedAt, at, now)
		updates["analysis_started_at"] = smp.AnalysisStartedAt
	case models.SampleAnalysisComplete:
		smp.AnalysisEndedAt = workflow.Stamp(smp.AnalysisEndedAt, at, now)
		updates["analysis_ended_at"] = smp.AnalysisEndedAt
	}
	if note != "" {
		smp.Notes = appendLine(smp.Notes, note)
		updates["notes"] = smp.Notes
	}

	err := workflow.Apply(tx, &models.Sample{}, workflow.Sample, id, smp.Status, status, updates)
	metrics.ObserveTransition(string(workflow.Sample), status, err)
	if err != nil {
		return nil, err
	}
	smp.Status = status

	if status == models.SampleReceived {
		var req models.Requirement
		if err := tx.Preload("Requester").Where("id = ?", smp.RequirementID).First(&req).Error; err != nil {
			return nil, fmt.Errorf("sample: requirement of %s: %w", id, err)
		}
		receivedAt := *smp.ReceivedAt
		hooks.Add(func(ctx context.Context) {
			notify.Deliver(ctx, s.notifier, s.log, notify.SampleReceived, req.Requester.Email, notify.Data{
				"name":             req.Requester.Name,
				"qr_code":          smp.QRCode,
				"requirement_code": req.Code,
				"received_at":      receivedAt,
			})
		})
	}
	return &smp, nil
}

// Remove marks a sample DELETED once every analysis on it is COMPLETED.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var smp models.Sample
		if err := workflow.Load(tx, workflow.Sample, id, &smp); err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&models.Analysis{}).
			Where("sample_id = ? AND status <> ?", id, models.AnalysisCompleted).
			Count(&open).Error; err != nil {
			return fmt.Errorf("sample: count analyses of %s: %w", id, err)
		}
		if open > 0 {
			return &workflow.ConflictError{
				Entity: workflow.Sample,
				ID:     id,
				Reason: fmt.Sprintf("has %d analysis(es) not completed", open),
			}
		}

		err := workflow.Apply(tx, &models.Sample{}, workflow.Sample, id, smp.Status, models.SampleDeleted, nil)
		metrics.ObserveTransition(string(workflow.Sample), models.SampleDeleted, err)
		return err
	})
}

func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

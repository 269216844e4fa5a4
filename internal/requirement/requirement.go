// Package requirement provides the intake-request workflow.
package requirement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zulandar/labyard/internal/attachment"
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
	DB          *gorm.DB
	Codes       *codegen.Generator
	Notifier    notify.Notifier
	Attachments attachment.Store
	Logger      *zap.Logger
	Now         func() time.Time
}

// Service runs requirement operations.
type Service struct {
	db          *gorm.DB
	codes       *codegen.Generator
	notifier    notify.Notifier
	attachments attachment.Store
	log         *zap.Logger
	now         func() time.Time
}

// New creates a Service. Codes default to the table-backed sequence.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("requirement: db is required")
	}
	s := &Service{
		db:          opts.DB,
		codes:       opts.Codes,
		notifier:    opts.Notifier,
		attachments: opts.Attachments,
		log:         opts.Logger,
		now:         opts.Now,
	}
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

// CreateOpts holds parameters for creating a requirement.
type CreateOpts struct {
	RequesterID      string
	PlantID          string
	AssignedLabID    string
	SampleType       string
	ExpectedQuantity int
	Description      string
	Attachments      []string
}

// Filters holds optional filters for listing requirements.
type Filters struct {
	RequesterID string
	Status      string
	PlantID     string
}

// UpdateOpts holds the fields to change; nil fields are left alone.
type UpdateOpts struct {
	PlantID          *string
	AssignedLabID    *string
	SampleType       *string
	ExpectedQuantity *int
	Description      *string
	Status           *string
}

func (u UpdateOpts) fields() map[string]interface{} {
	f := map[string]interface{}{}
	if u.PlantID != nil {
		f["plant_id"] = nullable(*u.PlantID)
	}
	if u.AssignedLabID != nil {
		f["assigned_lab_id"] = nullable(*u.AssignedLabID)
	}
	if u.SampleType != nil {
		f["sample_type"] = *u.SampleType
	}
	if u.ExpectedQuantity != nil {
		f["expected_quantity"] = *u.ExpectedQuantity
	}
	if u.Description != nil {
		f["description"] = *u.Description
	}
	return f
}

// Create registers a requirement in DRAFT with a fresh REQ code and tells the
// requester about it once committed.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Requirement, error) {
	if opts.RequesterID == "" {
		return nil, &workflow.ValidationError{Field: "requester_id", Reason: "is required"}
	}
	if opts.ExpectedQuantity < 0 {
		return nil, &workflow.ValidationError{Field: "expected_quantity", Reason: "must not be negative"}
	}

	var req models.Requirement
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requester models.User
		if err := workflow.Load(tx, workflow.User, opts.RequesterID, &requester); err != nil {
			return err
		}
		if opts.PlantID != "" {
			var plant models.Plant
			if err := workflow.Load(tx, workflow.Plant, opts.PlantID, &plant); err != nil {
				return err
			}
		}

		code, err := s.codes.Next(ctx, tx, codegen.PrefixRequirement)
		if err != nil {
			return err
		}

		req = models.Requirement{
			Code:             code,
			RequesterID:      requester.ID,
			PlantID:          nullable(opts.PlantID),
			AssignedLabID:    nullable(opts.AssignedLabID),
			SampleType:       opts.SampleType,
			ExpectedQuantity: opts.ExpectedQuantity,
			Description:      opts.Description,
			Attachments:      opts.Attachments,
			Status:           models.RequirementDraft,
		}
		if err := tx.Omit(clause.Associations).Create(&req).Error; err != nil {
			return fmt.Errorf("requirement: create: %w", err)
		}

		hooks.Add(func(ctx context.Context) {
			notify.Deliver(ctx, s.notifier, s.log, notify.RequirementCreated, requester.Email, notify.Data{
				"name":              requester.Name,
				"code":              req.Code,
				"expected_quantity": req.ExpectedQuantity,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	hooks.Run(ctx)
	return &req, nil
}

// Get retrieves a requirement by ID with its requester, plant and samples.
func (s *Service) Get(ctx context.Context, id string) (*models.Requirement, error) {
	var req models.Requirement
	q := s.db.WithContext(ctx).Preload("Requester").Preload("Plant").Preload("Samples")
	if err := workflow.Load(q, workflow.Requirement, id, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByCode retrieves a requirement by its REQ code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Requirement, error) {
	var req models.Requirement
	err := s.db.WithContext(ctx).Preload("Requester").Preload("Plant").Preload("Samples").
		Where("code = ?", code).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.NotFoundError{Entity: workflow.Requirement, ID: code}
		}
		return nil, fmt.Errorf("requirement: get by code %s: %w", code, err)
	}
	return &req, nil
}

// List returns requirements matching filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.Requirement, error) {
	q := s.db.WithContext(ctx).Model(&models.Requirement{}).Preload("Requester").Preload("Plant")

	if filters.RequesterID != "" {
		q = q.Where("requester_id = ?", filters.RequesterID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.PlantID != "" {
		q = q.Where("plant_id = ?", filters.PlantID)
	}

	var reqs []models.Requirement
	if err := q.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("requirement: list: %w", err)
	}
	return reqs, nil
}

// History returns every requirement of a requester with its samples.
func (s *Service) History(ctx context.Context, requesterID string) ([]models.Requirement, error) {
	var reqs []models.Requirement
	err := s.db.WithContext(ctx).Preload("Plant").Preload("Samples").
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("requirement: history of %s: %w", requesterID, err)
	}
	return reqs, nil
}

// Update edits a DRAFT requirement. Outside DRAFT only a bare status change
// is accepted; it is validated like ChangeStatus.
func (s *Service) Update(ctx context.Context, id string, opts UpdateOpts) (*models.Requirement, error) {
	fields := opts.fields()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Requirement
		if err := workflow.Load(tx, workflow.Requirement, id, &req); err != nil {
			return err
		}
		if len(fields) > 0 && req.Status != models.RequirementDraft {
			return &workflow.ForbiddenError{Entity: workflow.Requirement, ID: id, Status: req.Status, Action: "edit"}
		}
		if pid, ok := fields["plant_id"].(*string); ok && pid != nil {
			var plant models.Plant
			if err := workflow.Load(tx, workflow.Plant, *pid, &plant); err != nil {
				return err
			}
		}

		if opts.Status != nil {
			err := workflow.Apply(tx, &models.Requirement{}, workflow.Requirement, id, req.Status, *opts.Status, fields)
			metrics.ObserveTransition(string(workflow.Requirement), *opts.Status, err)
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&models.Requirement{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return fmt.Errorf("requirement: update %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ChangeStatus moves a requirement along its status graph.
func (s *Service) ChangeStatus(ctx context.Context, id, status string) (*models.Requirement, error) {
	return s.Update(ctx, id, UpdateOpts{Status: &status})
}

// Remove cancels a requirement that owns no samples. Requirements are never
// physically deleted.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Requirement
		if err := workflow.Load(tx, workflow.Requirement, id, &req); err != nil {
			return err
		}

		var samples int64
		if err := tx.Model(&models.Sample{}).Where("requirement_id = ?", id).Count(&samples).Error; err != nil {
			return fmt.Errorf("requirement: count samples of %s: %w", id, err)
		}
		if samples > 0 {
			return &workflow.ConflictError{
				Entity: workflow.Requirement,
				ID:     id,
				Reason: fmt.Sprintf("has %d associated sample(s)", samples),
			}
		}

		if err := tx.Model(&models.Requirement{}).Where("id = ?", id).
			Update("status", models.RequirementCancelled).Error; err != nil {
			return fmt.Errorf("requirement: cancel %s: %w", id, err)
		}
		metrics.ObserveTransition(string(workflow.Requirement), models.RequirementCancelled, nil)
		return nil
	})
}

// Attach uploads a document and appends its key to a DRAFT requirement.
func (s *Service) Attach(ctx context.Context, id, filename, contentType string, r io.Reader, size int64) (string, error) {
	if s.attachments == nil {
		return "", fmt.Errorf("requirement: no attachment store configured")
	}

	var req models.Requirement
	if err := workflow.Load(s.db.WithContext(ctx), workflow.Requirement, id, &req); err != nil {
		return "", err
	}
	if req.Status != models.RequirementDraft {
		return "", &workflow.ForbiddenError{Entity: workflow.Requirement, ID: id, Status: req.Status, Action: "attach documents"}
	}

	key := attachment.Key(id, filename)
	if err := s.attachments.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fresh models.Requirement
		if err := workflow.Load(tx, workflow.Requirement, id, &fresh); err != nil {
			return err
		}
		if fresh.Status != models.RequirementDraft {
			return &workflow.ForbiddenError{Entity: workflow.Requirement, ID: id, Status: fresh.Status, Action: "attach documents"}
		}
		list := append(fresh.Attachments, key)
		if err := tx.Model(&models.Requirement{}).Where("id = ?", id).Update("attachments", list).Error; err != nil {
			return fmt.Errorf("requirement: record attachment on %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		if delErr := s.attachments.Delete(ctx, key); delErr != nil {
			s.log.Warn("orphaned attachment", zap.String("key", key), zap.Error(delErr))
		}
		return "", err
	}
	return key, nil
}

// AttachmentURL returns a download link for one of the requirement's documents.
func (s *Service) AttachmentURL(ctx context.Context, id, key string, expiry time.Duration) (string, error) {
	if s.attachments == nil {
		return "", fmt.Errorf("requirement: no attachment store configured")
	}
	var req models.Requirement
	if err := workflow.Load(s.db.WithContext(ctx), workflow.Requirement, id, &req); err != nil {
		return "", err
	}
	for _, k := range req.Attachments {
		if k == key {
			return s.attachments.URL(ctx, key, expiry)
		}
	}
	return "", &workflow.NotFoundError{Entity: workflow.Attachment, ID: key}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

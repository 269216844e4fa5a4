// Package analysis runs lab tests against samples.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/labyard/internal/metrics"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/notify"
	"github.com/zulandar/labyard/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Opts holds the collaborators of a Service.
type Opts struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service runs analysis operations.
type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("analysis: db is required")
	}
	s := &Service{db: opts.DB, notifier: opts.Notifier, log: opts.Logger, now: opts.Now}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// CreateOpts holds parameters for scheduling an analysis.
type CreateOpts struct {
	SampleID       string
	AnalysisTypeID string
	AnalystID      string
	Notes          string
}

// Filters holds optional filters for listing analyses.
type Filters struct {
	SampleID       string
	AnalysisTypeID string
	AnalystID      string
	Status         string
}

// UpdateOpts holds fields to change; nil fields are left alone. A Status goes
// through the transition table; StartedAt and EndedAt override the stamps.
type UpdateOpts struct {
	AnalystID *string
	Notes     *string
	Results   map[string]interface{}
	ReportURL *string
	Status    string
	StartedAt *time.Time
	EndedAt   *time.Time
}

// CompleteOpts holds the optional outcome recorded on completion.
type CompleteOpts struct {
	Results   map[string]interface{}
	ReportURL string
	Notes     string
	At        *time.Time
}

// ResultsOpts holds a results upload.
type ResultsOpts struct {
	Results   map[string]interface{}
	ReportURL string
	Notes     string
}

// TypeCount is the number of analyses of one type.
type TypeCount struct {
	AnalysisTypeID string `json:"analysis_type_id"`
	Name           string `json:"name"`
	Count          int64  `json:"count"`
}

// Statistics summarises analyses.
type Statistics struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByType         []TypeCount      `json:"by_type"`
	InProgress     int64            `json:"in_progress"`
	Pending        int64            `json:"pending"`
	CompletedToday int64            `json:"completed_today"`
}

// Create schedules a PENDING analysis of an active type on an existing sample.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Analysis, error) {
	var a models.Analysis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var smp models.Sample
		if err := workflow.Load(tx, workflow.Sample, opts.SampleID, &smp); err != nil {
			return err
		}
		var at models.AnalysisType
		if err := workflow.Load(tx, workflow.AnalysisType, opts.AnalysisTypeID, &at); err != nil {
			return err
		}
		if !at.Active {
			return &workflow.ValidationError{Field: "analysis_type_id", Reason: fmt.Sprintf("analysis type %q is inactive", at.Name)}
		}
		if opts.AnalystID != "" {
			if err := workflow.Load(tx, workflow.User, opts.AnalystID, &models.User{}); err != nil {
				return err
			}
		}

		a = models.Analysis{
			SampleID:       smp.ID,
			AnalysisTypeID: at.ID,
			AnalystID:      nullable(opts.AnalystID),
			Status:         models.AnalysisPending,
			Notes:          opts.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&a).Error; err != nil {
			return fmt.Errorf("analysis: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get retrieves an analysis by ID with its sample, type and analyst.
func (s *Service) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var a models.Analysis
	q := s.db.WithContext(ctx).Preload("Sample").Preload("AnalysisType").Preload("Analyst")
	if err := workflow.Load(q, workflow.Analysis, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns analyses matching filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]models.Analysis, error) {
	q := s.db.WithContext(ctx).Model(&models.Analysis{}).
		Preload("Sample").Preload("AnalysisType").Preload("Analyst")

	if filters.SampleID != "" {
		q = q.Where("sample_id = ?", filters.SampleID)
	}
	if filters.AnalysisTypeID != "" {
		q = q.Where("analysis_type_id = ?", filters.AnalysisTypeID)
	}
	if filters.AnalystID != "" {
		q = q.Where("analyst_id = ?", filters.AnalystID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}

	var out []models.Analysis
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("analysis: list: %w", err)
	}
	return out, nil
}

// Update edits an analysis. Explicit dates override the stamps a status change
// would otherwise set.
func (s *Service) Update(ctx context.Context, id string, opts UpdateOpts) (*models.Analysis, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		if err := workflow.Load(tx, workflow.Analysis, id, &a); err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if opts.AnalystID != nil {
			if *opts.AnalystID != "" {
				if err := workflow.Load(tx, workflow.User, *opts.AnalystID, &models.User{}); err != nil {
					return err
				}
			}
			fields["analyst_id"] = nullable(*opts.AnalystID)
		}
		if opts.Notes != nil {
			fields["notes"] = *opts.Notes
		}
		if opts.Results != nil {
			fields["results"] = datatypes.JSONMap(opts.Results)
		}
		if opts.ReportURL != nil {
			fields["report_url"] = *opts.ReportURL
		}
		if opts.StartedAt != nil {
			fields["started_at"] = *opts.StartedAt
		}
		if opts.EndedAt != nil {
			fields["ended_at"] = *opts.EndedAt
		}

		if opts.Status != "" {
			return s.transition(tx, &hooks, &a, opts.Status, fields, opts.StartedAt, opts.EndedAt)
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&models.Analysis{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return fmt.Errorf("analysis: update %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// Start moves a PENDING analysis to IN_PROGRESS, optionally reassigning the analyst.
func (s *Service) Start(ctx context.Context, id, analystID string) (*models.Analysis, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		if err := workflow.Load(tx, workflow.Analysis, id, &a); err != nil {
			return err
		}
		if a.Status != models.AnalysisPending {
			return s.reject(a, models.AnalysisInProgress)
		}
		fields := map[string]interface{}{}
		if analystID != "" {
			if err := workflow.Load(tx, workflow.User, analystID, &models.User{}); err != nil {
				return err
			}
			fields["analyst_id"] = analystID
		}
		return s.transition(tx, &hooks, &a, models.AnalysisInProgress, fields, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// Complete moves an IN_PROGRESS analysis to COMPLETED and records its outcome.
// The requirement's requester is told once the change commits.
func (s *Service) Complete(ctx context.Context, id string, opts CompleteOpts) (*models.Analysis, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		if err := workflow.Load(tx, workflow.Analysis, id, &a); err != nil {
			return err
		}
		if a.Status != models.AnalysisInProgress {
			return s.reject(a, models.AnalysisCompleted)
		}
		fields := map[string]interface{}{}
		if opts.Results != nil {
			fields["results"] = datatypes.JSONMap(opts.Results)
		}
		if opts.ReportURL != "" {
			fields["report_url"] = opts.ReportURL
		}
		if opts.Notes != "" {
			fields["notes"] = opts.Notes
		}
		return s.transition(tx, &hooks, &a, models.AnalysisCompleted, fields, nil, opts.At)
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// Cancel moves an open analysis to CANCELLED, appending the reason to its notes.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*models.Analysis, error) {
	var hooks workflow.Hooks
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		if err := workflow.Load(tx, workflow.Analysis, id, &a); err != nil {
			return err
		}
		fields := map[string]interface{}{}
		if reason != "" {
			fields["notes"] = appendLine(a.Notes, "Cancellation reason: "+reason)
		}
		return s.transition(tx, &hooks, &a, models.AnalysisCancelled, fields, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	hooks.Run(ctx)
	return s.Get(ctx, id)
}

// UploadResults merges results into an analysis without changing its status.
// Cancelled analyses are rejected.
func (s *Service) UploadResults(ctx context.Context, id string, opts ResultsOpts) (*models.Analysis, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		if err := workflow.Load(tx, workflow.Analysis, id, &a); err != nil {
			return err
		}
		if a.Status == models.AnalysisCancelled {
			return &workflow.ForbiddenError{Entity: workflow.Analysis, ID: id, Status: a.Status, Action: "upload results"}
		}

		merged := datatypes.JSONMap{}
		for k, v := range a.Results {
			merged[k] = v
		}
		for k, v := range opts.Results {
			merged[k] = v
		}
		fields := map[string]interface{}{"results": merged}
		if opts.ReportURL != "" {
			fields["report_url"] = opts.ReportURL
		}
		if opts.Notes != "" {
			fields["notes"] = opts.Notes
		}
		if err := tx.Model(&models.Analysis{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return fmt.Errorf("analysis: upload results %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Statistics counts analyses by status and by type (top 10).
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	st := &Statistics{ByStatus: map[string]int64{}}

	if err := db.Model(&models.Analysis{}).Count(&st.Total).Error; err != nil {
		return nil, fmt.Errorf("analysis: count: %w", err)
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Analysis{}).Select("status, count(*) as count").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("analysis: count by status: %w", err)
	}
	for _, r := range byStatus {
		st.ByStatus[r.Status] = r.Count
	}
	st.InProgress = st.ByStatus[models.AnalysisInProgress]
	st.Pending = st.ByStatus[models.AnalysisPending]

	if err := db.Model(&models.Analysis{}).
		Select("analyses.analysis_type_id, analysis_types.name, count(*) as count").
		Joins("JOIN analysis_types ON analysis_types.id = analyses.analysis_type_id").
		Group("analyses.analysis_type_id, analysis_types.name").
		Order("count(*) DESC").Limit(10).
		Scan(&st.ByType).Error; err != nil {
		return nil, fmt.Errorf("analysis: count by type: %w", err)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.Analysis{}).
		Where("status = ? AND ended_at >= ?", models.AnalysisCompleted, today).
		Count(&st.CompletedToday).Error; err != nil {
		return nil, fmt.Errorf("analysis: count completed today: %w", err)
	}
	return st, nil
}

// transition applies one status change with its stamps inside tx and queues
// the completion notice on hooks.
func (s *Service) transition(tx *gorm.DB, hooks *workflow.Hooks, a *models.Analysis, to string, fields map[string]interface{}, startedAt, endedAt *time.Time) error {
	now := s.now()
	switch to {
	case models.AnalysisInProgress:
		a.StartedAt = workflow.Stamp(a.StartedAt, startedAt, now)
		fields["started_at"] = a.StartedAt
	case models.AnalysisCompleted:
		a.EndedAt = workflow.Stamp(a.EndedAt, endedAt, now)
		fields["ended_at"] = a.EndedAt
	}

	err := workflow.Apply(tx, &models.Analysis{}, workflow.Analysis, a.ID, a.Status, to, fields)
	metrics.ObserveTransition(string(workflow.Analysis), to, err)
	if err != nil {
		return err
	}
	a.Status = to

	if to != models.AnalysisCompleted {
		return nil
	}
	var full models.Analysis
	if err := tx.Preload("Sample.Requirement.Requester").Preload("AnalysisType").
		Where("id = ?", a.ID).First(&full).Error; err != nil {
		return fmt.Errorf("analysis: load %s for notice: %w", a.ID, err)
	}
	requester := full.Sample.Requirement.Requester
	completedAt := *a.EndedAt
	hooks.Add(func(ctx context.Context) {
		notify.Deliver(ctx, s.notifier, s.log, notify.AnalysisCompleted, requester.Email, notify.Data{
			"name":          requester.Name,
			"qr_code":       full.Sample.QRCode,
			"analysis_type": full.AnalysisType.Name,
			"ended_at":      completedAt,
		})
	})
	return nil
}

func (s *Service) reject(a models.Analysis, to string) error {
	err := &workflow.InvalidTransitionError{
		Entity:  workflow.Analysis,
		From:    a.Status,
		To:      to,
		Allowed: workflow.Successors(workflow.Analysis, a.Status),
	}
	metrics.ObserveTransition(string(workflow.Analysis), to, err)
	return err
}

func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package catalog manages users, plants and analysis types.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
	"gorm.io/gorm"
)

// Service manages catalog entries.
type Service struct {
	db *gorm.DB
}

// New creates a Service.
func New(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog: db is required")
	}
	return &Service{db: db}, nil
}

// UserOpts holds parameters for creating a user.
type UserOpts struct {
	Email string
	Name  string
	Role  string
}

// PlantOpts holds parameters for creating a plant.
type PlantOpts struct {
	Code     string
	Name     string
	Location string
}

// AnalysisTypeOpts holds parameters for creating an analysis type.
type AnalysisTypeOpts struct {
	Name           string
	Description    string
	Method         string
	EstimatedHours int
}

// CreateUser adds an active user. Emails are unique and stored lowercased.
func (s *Service) CreateUser(ctx context.Context, opts UserOpts) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &workflow.ValidationError{Field: "email", Reason: fmt.Sprintf("%q is not an email address", opts.Email)}
	}
	if opts.Name == "" {
		return nil, &workflow.ValidationError{Field: "name", Reason: "is required"}
	}
	role := opts.Role
	if role == "" {
		role = models.RoleResearcher
	}
	if !slices.Contains(models.Roles, role) {
		return nil, &workflow.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}

	u := &models.User{Email: email, Name: opts.Name, Role: role, Active: true}
	if err := s.createUnique(ctx, workflow.User, "email", email, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns users ordered by name, optionally only one role.
func (s *Service) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	q := s.db.WithContext(ctx)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	if err := q.Order("name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("catalog: list users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := workflow.Load(s.db.WithContext(ctx), workflow.User, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserActive enables or disables a user.
func (s *Service) SetUserActive(ctx context.Context, id string, active bool) error {
	return s.setActive(ctx, &models.User{}, workflow.User, id, active)
}

// CreatePlant adds an active plant with a unique code.
func (s *Service) CreatePlant(ctx context.Context, opts PlantOpts) (*models.Plant, error) {
	code := strings.ToUpper(strings.TrimSpace(opts.Code))
	if code == "" || opts.Name == "" {
		return nil, &workflow.ValidationError{Field: "code", Reason: "code and name are required"}
	}
	p := &models.Plant{Code: code, Name: opts.Name, Location: opts.Location, Active: true}
	if err := s.createUnique(ctx, workflow.Plant, "code", code, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPlants returns plants ordered by code.
func (s *Service) ListPlants(ctx context.Context) ([]models.Plant, error) {
	var plants []models.Plant
	if err := s.db.WithContext(ctx).Order("code").Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("catalog: list plants: %w", err)
	}
	return plants, nil
}

// CreateAnalysisType adds an active analysis type with a unique name.
func (s *Service) CreateAnalysisType(ctx context.Context, opts AnalysisTypeOpts) (*models.AnalysisType, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, &workflow.ValidationError{Field: "name", Reason: "is required"}
	}
	if opts.EstimatedHours < 0 {
		return nil, &workflow.ValidationError{Field: "estimated_hours", Reason: "must not be negative"}
	}
	at := &models.AnalysisType{
		Name:           name,
		Description:    opts.Description,
		Method:         opts.Method,
		EstimatedHours: opts.EstimatedHours,
		Active:         true,
	}
	if err := s.createUnique(ctx, workflow.AnalysisType, "name", name, at); err != nil {
		return nil, err
	}
	return at, nil
}

// ListAnalysisTypes returns analysis types ordered by name.
func (s *Service) ListAnalysisTypes(ctx context.Context, activeOnly bool) ([]models.AnalysisType, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var types []models.AnalysisType
	if err := q.Order("name").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("catalog: list analysis types: %w", err)
	}
	return types, nil
}

// SetAnalysisTypeActive enables or disables an analysis type. Inactive types
// cannot be used for new analyses.
func (s *Service) SetAnalysisTypeActive(ctx context.Context, id string, active bool) error {
	return s.setActive(ctx, &models.AnalysisType{}, workflow.AnalysisType, id, active)
}

// RemoveAnalysisType deletes an analysis type, or only deactivates it when
// analyses reference it. It reports whether the row was deleted.
func (s *Service) RemoveAnalysisType(ctx context.Context, id string) (deleted bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.Load(tx, workflow.AnalysisType, id, &models.AnalysisType{}); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Analysis{}).Where("analysis_type_id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("catalog: count analyses of type %s: %w", id, err)
		}
		if n > 0 {
			return tx.Model(&models.AnalysisType{}).Where("id = ?", id).Update("active", false).Error
		}
		if err := tx.Where("id = ?", id).Delete(&models.AnalysisType{}).Error; err != nil {
			return fmt.Errorf("catalog: delete analysis type %s: %w", id, err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (s *Service) createUnique(ctx context.Context, entity workflow.Entity, column, value string, row interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(row).Where(column+" = ?", value).Count(&n).Error; err != nil {
			return fmt.Errorf("catalog: check %s %s: %w", entity, column, err)
		}
		if n > 0 {
			return &workflow.ConflictError{Entity: entity, Reason: fmt.Sprintf("%s %q already exists", column, value)}
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("catalog: create %s: %w", entity, err)
		}
		return nil
	})
}

func (s *Service) setActive(ctx context.Context, model interface{}, entity workflow.Entity, id string, active bool) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("catalog: set %s %s active: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &workflow.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

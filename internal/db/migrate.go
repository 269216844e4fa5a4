package db

import (
	"fmt"
	"strings"

	"github.com/zulandar/labyard/internal/config"
	"github.com/zulandar/labyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model, parents before children.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Plant{},
		&models.AnalysisType{},
		&models.Requirement{},
		&models.Sample{},
		&models.Analysis{},
		&models.Storage{},
		&models.QREvent{},
		&models.CodeSequence{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAnalysisTypes upserts AnalysisType rows from configuration, keyed by name.
func SeedAnalysisTypes(db *gorm.DB, types []config.SeedAnalysisType) error {
	for _, st := range types {
		at := models.AnalysisType{
			Name:           st.Name,
			Description:    st.Description,
			Method:         st.Method,
			EstimatedHours: st.EstimatedHours,
			Active:         true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "method", "estimated_hours", "active"}),
		}).Create(&at)
		if result.Error != nil {
			return fmt.Errorf("db: seed analysis type %q: %w", st.Name, result.Error)
		}
	}
	return nil
}

// SeedPlants upserts Plant rows from configuration, keyed by the uppercased code.
func SeedPlants(db *gorm.DB, plants []config.SeedPlant) error {
	for _, sp := range plants {
		p := models.Plant{
			Code:     strings.ToUpper(strings.TrimSpace(sp.Code)),
			Name:     sp.Name,
			Location: sp.Location,
			Active:   true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "location", "active"}),
		}).Create(&p)
		if result.Error != nil {
			return fmt.Errorf("db: seed plant %q: %w", sp.Code, result.Error)
		}
	}
	return nil
}

// Seed upserts every catalog row listed in cfg.
func Seed(db *gorm.DB, cfg config.SeedConfig) error {
	if err := SeedAnalysisTypes(db, cfg.AnalysisTypes); err != nil {
		return err
	}
	return SeedPlants(db, cfg.Plants)
}

// Package stats provides the dashboard aggregate queries.
package stats

import (
	"context"
	"fmt"

	"github.com/zulandar/labyard/internal/models"
	"gorm.io/gorm"
)

// RecentLimit is how many rows of each entity Recent returns.
const RecentLimit = 10

// Totals counts every row of each entity.
type Totals struct {
	Requirements int64 `json:"requirements"`
	Samples      int64 `json:"samples"`
	Analyses     int64 `json:"analyses"`
	Storage      int64 `json:"storage"`
	ActiveUsers  int64 `json:"active_users"`
}

// PendingCounts counts rows waiting at the first step of their workflow.
type PendingCounts struct {
	Requirements int64 `json:"requirements"`
	Samples      int64 `json:"samples"`
	Analyses     int64 `json:"analyses"`
}

// Overview is the dashboard headline.
type Overview struct {
	Totals  Totals        `json:"totals"`
	Pending PendingCounts `json:"pending"`
}

// PendingItems lists DRAFT requirements, EXPECTED samples and PENDING
// analyses, oldest first.
type PendingItems struct {
	Requirements []models.Requirement `json:"requirements"`
	Samples      []models.Sample      `json:"samples"`
	Analyses     []models.Analysis    `json:"analyses"`
}

// Activity holds the latest rows of each entity.
type Activity struct {
	Requirements []models.Requirement `json:"requirements"`
	Samples      []models.Sample      `json:"samples"`
	Analyses     []models.Analysis    `json:"analyses"`
	QREvents     []models.QREvent     `json:"qr_events"`
}

// GetOverview returns entity totals and pending counts.
func GetOverview(ctx context.Context, db *gorm.DB) (*Overview, error) {
	db = db.WithContext(ctx)
	var o Overview

	counts := []struct {
		model interface{}
		where []interface{}
		dst   *int64
	}{
		{&models.Requirement{}, nil, &o.Totals.Requirements},
		{&models.Sample{}, nil, &o.Totals.Samples},
		{&models.Analysis{}, nil, &o.Totals.Analyses},
		{&models.Storage{}, nil, &o.Totals.Storage},
		{&models.User{}, []interface{}{"active = ?", true}, &o.Totals.ActiveUsers},
		{&models.Requirement{}, []interface{}{"status = ?", models.RequirementDraft}, &o.Pending.Requirements},
		{&models.Sample{}, []interface{}{"status = ?", models.SampleExpected}, &o.Pending.Samples},
		{&models.Analysis{}, []interface{}{"status = ?", models.AnalysisPending}, &o.Pending.Analyses},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("stats: overview: %w", err)
		}
	}
	return &o, nil
}

// GetPending returns the items waiting on someone, oldest first.
func GetPending(ctx context.Context, db *gorm.DB) (*PendingItems, error) {
	db = db.WithContext(ctx)
	var p PendingItems

	if err := db.Preload("Requester").Where("status = ?", models.RequirementDraft).
		Order("created_at ASC").Find(&p.Requirements).Error; err != nil {
		return nil, fmt.Errorf("stats: pending requirements: %w", err)
	}
	if err := db.Where("status = ?", models.SampleExpected).
		Order("created_at ASC").Find(&p.Samples).Error; err != nil {
		return nil, fmt.Errorf("stats: pending samples: %w", err)
	}
	if err := db.Preload("Sample").Preload("AnalysisType").Where("status = ?", models.AnalysisPending).
		Order("created_at ASC").Find(&p.Analyses).Error; err != nil {
		return nil, fmt.Errorf("stats: pending analyses: %w", err)
	}
	return &p, nil
}

// GetRecent returns the latest RecentLimit rows of each entity.
func GetRecent(ctx context.Context, db *gorm.DB) (*Activity, error) {
	db = db.WithContext(ctx)
	var a Activity

	if err := db.Preload("Requester").Order("created_at DESC").Limit(RecentLimit).
		Find(&a.Requirements).Error; err != nil {
		return nil, fmt.Errorf("stats: recent requirements: %w", err)
	}
	if err := db.Preload("Requirement").Order("created_at DESC").Limit(RecentLimit).
		Find(&a.Samples).Error; err != nil {
		return nil, fmt.Errorf("stats: recent samples: %w", err)
	}
	if err := db.Preload("Sample").Preload("AnalysisType").Order("created_at DESC").Limit(RecentLimit).
		Find(&a.Analyses).Error; err != nil {
		return nil, fmt.Errorf("stats: recent analyses: %w", err)
	}
	if err := db.Preload("Sample").Preload("User").Order("created_at DESC").Limit(RecentLimit).
		Find(&a.QREvents).Error; err != nil {
		return nil, fmt.Errorf("stats: recent qr events: %w", err)
	}
	return &a, nil
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis statuses.
const (
	AnalysisPending    = "PENDING"
	AnalysisInProgress = "IN_PROGRESS"
	AnalysisCompleted  = "COMPLETED"
	AnalysisCancelled  = "CANCELLED"
)

// Analysis is one lab test run against one sample.
type Analysis struct {
	ID             string            `gorm:"primaryKey;size:36"`
	SampleID       string            `gorm:"size:36;not null;index"`
	AnalysisTypeID string            `gorm:"size:36;not null;index"`
	AnalystID      *string           `gorm:"size:36;index"`
	Status         string            `gorm:"size:16;default:PENDING;index"`
	StartedAt      *time.Time
	EndedAt        *time.Time
	Results        datatypes.JSONMap `gorm:"type:json"`
	ReportURL      string            `gorm:"size:512"`
	Notes          string            `gorm:"type:text"`
	CreatedAt      time.Time         `gorm:"index"`
	UpdatedAt      time.Time

	Sample       Sample       `gorm:"foreignKey:SampleID"`
	AnalysisType AnalysisType `gorm:"foreignKey:AnalysisTypeID"`
	Analyst      *User        `gorm:"foreignKey:AnalystID"`
}

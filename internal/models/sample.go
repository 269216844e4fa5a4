package models

import "time"

// Sample statuses.
const (
	SampleExpected         = "EXPECTED"
	SampleReceived         = "RECEIVED"
	SampleInAnalysis       = "IN_ANALYSIS"
	SampleAnalysisComplete = "ANALYSIS_COMPLETE"
	SampleStored           = "STORED"
	SampleDeleted          = "DELETED"
)

// Sample is a physical specimen tied to exactly one requirement.
type Sample struct {
	ID                string  `gorm:"primaryKey;size:36"`
	QRCode            string  `gorm:"column:qr_code;size:32;not null;uniqueIndex"`
	RequirementID     string  `gorm:"size:36;not null;index"`
	ParentSampleID    *string `gorm:"size:36;index"`
	Type              string  `gorm:"size:128;not null"`
	Format            string  `gorm:"size:64"`
	Quantity          string  `gorm:"size:64"`
	Status            string  `gorm:"size:20;default:EXPECTED;index"`
	Notes             string  `gorm:"type:text"`
	IsCounterSample   bool
	ReceivedAt        *time.Time
	AnalysisStartedAt *time.Time
	AnalysisEndedAt   *time.Time
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time

	Requirement Requirement `gorm:"foreignKey:RequirementID"`
	Parent      *Sample     `gorm:"foreignKey:ParentSampleID"`
	Children    []Sample    `gorm:"foreignKey:ParentSampleID"`
	Analyses    []Analysis  `gorm:"foreignKey:SampleID"`
	Storage     *Storage    `gorm:"foreignKey:SampleID"`
	QREvents    []QREvent   `gorm:"foreignKey:SampleID"`
}

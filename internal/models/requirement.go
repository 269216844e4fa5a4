package models

import (
	"time"

	"gorm.io/datatypes"
)

// Requirement statuses.
const (
	RequirementDraft      = "DRAFT"
	RequirementSubmitted  = "SUBMITTED"
	RequirementInProgress = "IN_PROGRESS"
	RequirementCompleted  = "COMPLETED"
	RequirementCancelled  = "CANCELLED"
)

// Requirement is an intake request for a batch of samples.
type Requirement struct {
	ID               string                      `gorm:"primaryKey;size:36"`
	Code             string                      `gorm:"size:32;not null;uniqueIndex"`
	RequesterID      string                      `gorm:"size:36;not null;index"`
	PlantID          *string                     `gorm:"size:36;index"`
	AssignedLabID    *string                     `gorm:"size:36"`
	SampleType       string                      `gorm:"size:128"`
	ExpectedQuantity int
	Description      string                      `gorm:"type:text"`
	Attachments      datatypes.JSONSlice[string] `gorm:"type:json"`
	Status           string                      `gorm:"size:16;default:DRAFT;index"`
	CreatedAt        time.Time                   `gorm:"index"`
	UpdatedAt        time.Time

	Requester User     `gorm:"foreignKey:RequesterID"`
	Plant     *Plant   `gorm:"foreignKey:PlantID"`
	Samples   []Sample `gorm:"foreignKey:RequirementID"`
}

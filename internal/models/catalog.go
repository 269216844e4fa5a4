package models

import "time"

// User roles.
const (
	RoleAdmin      = "ADMIN"
	RoleLabHead    = "LAB_HEAD"
	RoleLabTech    = "LAB_TECH"
	RoleWarehouse  = "WAREHOUSE"
	RoleResearcher = "RESEARCHER"
)

// Roles lists every valid user role.
var Roles = []string{RoleAdmin, RoleLabHead, RoleLabTech, RoleWarehouse, RoleResearcher}

// User is a person who requests, handles or analyses samples.
type User struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	Name      string `gorm:"size:128;not null"`
	Role      string `gorm:"size:16;not null;default:RESEARCHER"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plant is a production site that originates requirements.
type Plant struct {
	ID        string `gorm:"primaryKey;size:36"`
	Code      string `gorm:"size:32;not null;uniqueIndex"`
	Name      string `gorm:"size:128;not null"`
	Location  string `gorm:"size:255"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnalysisType is a catalog entry describing a kind of lab test.
type AnalysisType struct {
	ID             string `gorm:"primaryKey;size:36"`
	Name           string `gorm:"size:128;not null;uniqueIndex"`
	Description    string `gorm:"type:text"`
	Method         string `gorm:"size:255"`
	EstimatedHours int
	Active         bool `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

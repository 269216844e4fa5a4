package models

import "time"

// Storage statuses.
const (
	StorageAvailable = "AVAILABLE"
	StorageOccupied  = "OCCUPIED"
	StorageReserved  = "RESERVED"
	StorageExpired   = "EXPIRED"
)

// StorageStatuses lists every valid storage status.
var StorageStatuses = []string{StorageAvailable, StorageOccupied, StorageReserved, StorageExpired}

// Storage is the warehouse placement record for one sample.
type Storage struct {
	ID                  string     `gorm:"primaryKey;size:36"`
	SampleID            string     `gorm:"size:36;not null;uniqueIndex"`
	Location            string     `gorm:"size:128;not null;index"`
	Shelf               string     `gorm:"size:64;not null;index"`
	Box                 string     `gorm:"size:64"`
	Position            string     `gorm:"size:32"`
	ExpiresAt           *time.Time `gorm:"index"`
	Status              string     `gorm:"size:16;default:OCCUPIED;index"`
	DeletionRequested   bool       `gorm:"default:false;index"`
	DeletionApproved    bool       `gorm:"default:false"`
	DeletionRequestedBy *string    `gorm:"size:36"`
	DeletionApprovedBy  *string    `gorm:"size:36"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Sample Sample `gorm:"foreignKey:SampleID"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// QR event types.
const (
	EventScanned  = "SCANNED"
	EventReceived = "RECEIVED"
	EventMoved    = "MOVED"
	EventStored   = "STORED"
	EventAnalyzed = "ANALYZED"
	EventDisposed = "DISPOSED"
)

// EventTypes lists every valid QR event type.
var EventTypes = []string{EventScanned, EventReceived, EventMoved, EventStored, EventAnalyzed, EventDisposed}

// QREvent is an immutable audit entry recording something that happened to a sample.
// Rows are only ever inserted.
type QREvent struct {
	ID        string            `gorm:"primaryKey;size:36"`
	SampleID  string            `gorm:"size:36;not null;index"`
	Type      string            `gorm:"size:16;not null;index"`
	UserID    string            `gorm:"size:36;not null;index"`
	Location  string            `gorm:"size:255;index"`
	Metadata  datatypes.JSONMap `gorm:"type:json"`
	CreatedAt time.Time         `gorm:"index"`

	Sample Sample `gorm:"foreignKey:SampleID"`
	User   User   `gorm:"foreignKey:UserID"`
}

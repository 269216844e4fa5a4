package models

import "time"

// CodeSequence holds the last counter issued for a code prefix within a year.
type CodeSequence struct {
	Prefix    string `gorm:"primaryKey;size:8"`
	Year      int    `gorm:"primaryKey;autoIncrement:false"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

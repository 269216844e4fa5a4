package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewID returns a fresh primary key for any labyard entity.
func NewID() string {
	return uuid.NewString()
}

// assignID fills an empty primary key before insert.
func assignID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error         { assignID(&u.ID); return nil }
func (p *Plant) BeforeCreate(tx *gorm.DB) error        { assignID(&p.ID); return nil }
func (a *AnalysisType) BeforeCreate(tx *gorm.DB) error { assignID(&a.ID); return nil }
func (r *Requirement) BeforeCreate(tx *gorm.DB) error  { assignID(&r.ID); return nil }
func (s *Sample) BeforeCreate(tx *gorm.DB) error       { assignID(&s.ID); return nil }
func (a *Analysis) BeforeCreate(tx *gorm.DB) error     { assignID(&a.ID); return nil }
func (s *Storage) BeforeCreate(tx *gorm.DB) error      { assignID(&s.ID); return nil }
func (e *QREvent) BeforeCreate(tx *gorm.DB) error      { assignID(&e.ID); return nil }

package models

import (
	"time"

	"github.com/google/uuid"
)

// Teacher is the instructor profile. Currency is mirrored onto every fee plan
// for courses the teacher owns and is used for display only.
type Teacher struct {
	UserID    uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	Headline  *string   `gorm:"size:255" json:"headline"`
	Bio       *string   `gorm:"type:text" json:"bio"`
	Currency  string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	User      User      `gorm:"foreignkey:UserID" json:"user"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

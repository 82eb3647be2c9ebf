package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EnrollmentStatusActive = "active"
	EnrollmentStatusEnded  = "ended"
)

type Enrollment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	StudentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_student_course,priority:1" json:"student_id"`
	CourseID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_student_course,priority:2" json:"course_id"`
	Status     string    `gorm:"size:20;not null;default:'active'" json:"status"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`

	Student User   `gorm:"foreignkey:StudentID" json:"student"`
	Course  Course `gorm:"foreignkey:CourseID" json:"course"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = NewID()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	return nil
}

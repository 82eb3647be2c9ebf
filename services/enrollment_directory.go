package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentInfo is what the fee engine needs to know about an enrollment.
type EnrollmentInfo struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	StudentID    uuid.UUID `json:"student_id"`
	CourseID     uuid.UUID `json:"course_id"`
	TeacherID    uuid.UUID `json:"teacher_id"`
	CourseTitle  string    `json:"course_title"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
}

// EnrollmentDirectory resolves enrollments and their owning instructor.
type EnrollmentDirectory interface {
	Resolve(ctx context.Context, enrollmentID uuid.UUID) (EnrollmentInfo, error)
	Lookup(ctx context.Context, studentID, courseID uuid.UUID) (EnrollmentInfo, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]EnrollmentInfo, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]EnrollmentInfo, error)
}

const defaultCurrency = "USD"

type GormEnrollmentDirectory struct {
	db *gorm.DB
}

func NewGormEnrollmentDirectory(db *gorm.DB) *GormEnrollmentDirectory {
	return &GormEnrollmentDirectory{db: db}
}

type enrollmentRow struct {
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	TeacherID    uuid.UUID
	CourseTitle  string
	Currency     *string
	Status       string
}

func (r enrollmentRow) info() EnrollmentInfo {
	currency := defaultCurrency
	if r.Currency != nil && *r.Currency != "" {
		currency = *r.Currency
	}
	return EnrollmentInfo{
		EnrollmentID: r.EnrollmentID,
		StudentID:    r.StudentID,
		CourseID:     r.CourseID,
		TeacherID:    r.TeacherID,
		CourseTitle:  r.CourseTitle,
		Currency:     currency,
		Status:       r.Status,
	}
}

func (d *GormEnrollmentDirectory) query(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Select("enrollments.id AS enrollment_id, enrollments.student_id, enrollments.course_id, " +
			"courses.teacher_id, courses.title AS course_title, teachers.currency, enrollments.status").
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Joins("LEFT JOIN teachers ON teachers.user_id = courses.teacher_id")
}

func (d *GormEnrollmentDirectory) first(q *gorm.DB) (EnrollmentInfo, error) {
	var row enrollmentRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EnrollmentInfo{}, notFound("enrollment")
		}
		return EnrollmentInfo{}, err
	}
	return row.info(), nil
}

func (d *GormEnrollmentDirectory) Resolve(ctx context.Context, enrollmentID uuid.UUID) (EnrollmentInfo, error) {
	return d.first(d.query(ctx).Where("enrollments.id = ?", enrollmentID))
}

// resolveActive is Resolve for write paths: an ended enrollment no longer
// accepts plans or payments.
func resolveActive(ctx context.Context, dir EnrollmentDirectory, enrollmentID uuid.UUID) (EnrollmentInfo, error) {
	info, err := dir.Resolve(ctx, enrollmentID)
	if err != nil {
		return EnrollmentInfo{}, err
	}
	if info.Status == models.EnrollmentStatusEnded {
		return EnrollmentInfo{}, fmt.Errorf("%w: enrollment has ended", ErrNotFound)
	}
	return info, nil
}

func (d *GormEnrollmentDirectory) Lookup(ctx context.Context, studentID, courseID uuid.UUID) (EnrollmentInfo, error) {
	return d.first(d.query(ctx).Where("enrollments.student_id = ? AND enrollments.course_id = ?", studentID, courseID))
}

func (d *GormEnrollmentDirectory) list(q *gorm.DB) ([]EnrollmentInfo, error) {
	var rows []enrollmentRow
	if err := q.Order("enrollments.enrolled_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EnrollmentInfo, len(rows))
	for i, r := range rows {
		out[i] = r.info()
	}
	return out, nil
}

func (d *GormEnrollmentDirectory) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]EnrollmentInfo, error) {
	return d.list(d.query(ctx).Where("enrollments.student_id = ?", studentID))
}

func (d *GormEnrollmentDirectory) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]EnrollmentInfo, error) {
	return d.list(d.query(ctx).Where("courses.teacher_id = ?", teacherID))
}

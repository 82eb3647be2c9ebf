package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Teacher{},
		&models.Course{},
		&models.Enrollment{},
		&models.FeePlan{},
		&models.Installment{},
		&models.MonthlyFee{},
		&models.FeePayment{},
	))
	return db
}

type fixture struct {
	db         *gorm.DB
	dir        *GormEnrollmentDirectory
	notifier   *recordingNotifier
	plans      *FeePlanService
	ledger     *PaymentLedger
	teacher    models.User
	student    models.User
	course     models.Course
	enrollment models.Enrollment
}

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, notifier: &recordingNotifier{}}

	f.teacher = models.User{FullName: "Grace Teacher", Email: "grace@example.com", Password: "x", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&f.teacher).Error)
	require.NoError(t, db.Create(&models.Teacher{UserID: f.teacher.ID, Currency: "KES"}).Error)
	f.student = models.User{FullName: "Sam Student", Email: "sam@example.com", Password: "x", Role: models.RoleStudent}
	require.NoError(t, db.Create(&f.student).Error)
	f.course = models.Course{TeacherID: f.teacher.ID, Title: "Piano Basics"}
	require.NoError(t, db.Create(&f.course).Error)
	f.enrollment = models.Enrollment{StudentID: f.student.ID, CourseID: f.course.ID, Status: models.EnrollmentStatusActive}
	require.NoError(t, db.Create(&f.enrollment).Error)

	clock := WithClock(func() time.Time { return testNow })
	f.dir = NewGormEnrollmentDirectory(db)
	f.plans = NewFeePlanService(db, f.dir, f.notifier, clock)
	f.ledger = NewPaymentLedger(db, f.dir, f.notifier, clock)
	return f
}

func (f *fixture) setComplete(t *testing.T, total string, count int, due time.Time) *PlanSummary {
	t.Helper()
	amount := dec(total)
	summary, err := f.plans.SetPlan(context.Background(), f.enrollment.ID, SetPlanInput{
		FeeType:           models.FeeTypeComplete,
		TotalAmount:       &amount,
		InstallmentsCount: count,
		DueDate:           &due,
	}, f.teacher.ID)
	require.NoError(t, err)
	return summary
}

func (f *fixture) setMonthly(t *testing.T, monthly string) *PlanSummary {
	t.Helper()
	amount := dec(monthly)
	summary, err := f.plans.SetPlan(context.Background(), f.enrollment.ID, SetPlanInput{
		FeeType:       models.FeeTypeMonthly,
		MonthlyAmount: &amount,
	}, f.teacher.ID)
	require.NoError(t, err)
	return summary
}

func (f *fixture) pay(t *testing.T, amount string) *models.FeePayment {
	t.Helper()
	p, err := f.ledger.RecordPayment(context.Background(), f.enrollment.ID, RecordPaymentInput{
		Amount: dec(amount),
		Method: models.PaymentMethodCash,
	}, f.teacher.ID)
	require.NoError(t, err)
	return p
}

func (f *fixture) plan(t *testing.T) models.FeePlan {
	t.Helper()
	var plan models.FeePlan
	require.NoError(t, f.db.Where("enrollment_id = ?", f.enrollment.ID).Take(&plan).Error)
	return plan
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) ofType(kind string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/anjiri1684/tutor_fees/database"
	"github.com/anjiri1684/tutor_fees/middleware"
	"github.com/anjiri1684/tutor_fees/models"
	"github.com/anjiri1684/tutor_fees/services"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	admin      models.User
	teacher    models.User
	other      models.User
	student    models.User
	course     models.Course
	enrollment models.Enrollment
}

func setupTestDB(t *testing.T) *gorm.DB {
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
	require.NoError(t, db.AutoMigrate(database.Models()...))

	previous := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = previous })
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, email, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{FullName: name, Email: email, Password: string(hash), Role: role, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	if role == models.RoleTeacher {
		require.NoError(t, db.Create(&models.Teacher{UserID: user.ID, Currency: "KES"}).Error)
	}
	return user
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	db := setupTestDB(t)

	env := &testEnv{db: db}
	env.admin = createUser(t, db, "Ada Admin", "admin@example.com", models.RoleAdmin)
	env.teacher = createUser(t, db, "Grace Teacher", "grace@example.com", models.RoleTeacher)
	env.other = createUser(t, db, "Otto Teacher", "otto@example.com", models.RoleTeacher)
	env.student = createUser(t, db, "Sam Student", "sam@example.com", models.RoleStudent)

	env.course = models.Course{TeacherID: env.teacher.ID, Title: "Piano Basics", IsActive: true}
	require.NoError(t, db.Create(&env.course).Error)
	env.enrollment = models.Enrollment{StudentID: env.student.ID, CourseID: env.course.ID, Status: models.EnrollmentStatusActive}
	require.NoError(t, db.Create(&env.enrollment).Error)

	dir := services.NewGormEnrollmentDirectory(db)
	plans := services.NewFeePlanService(db, dir, services.NopNotifier{})
	ledger := services.NewPaymentLedger(db, dir, services.NopNotifier{})
	fees := &FeeHandler{Plans: plans, Ledger: ledger, Directory: dir}

	app := fiber.New()
	api := app.Group("/api/v1")
	auth := api.Group("/auth")
	auth.Post("/register", RegisterUser)
	auth.Post("/login", LoginUser)

	api.Get("/profile/me", middleware.Protected(), GetProfile)

	teacher := api.Group("/teacher", middleware.Protected(), middleware.TeacherRequired())
	teacher.Post("/courses", CreateCourse)
	teacher.Post("/courses/:courseId/enrollments", EnrollStudent)
	teacher.Get("/fees", fees.GetTeacherFees)

	student := api.Group("/student", middleware.Protected(), middleware.StudentRequired())
	student.Get("/fees", fees.GetStudentFees)

	api.Put("/admin/users/:userId/status", middleware.Protected(), middleware.AdminRequired(), ToggleUserStatus)

	f := api.Group("/fees", middleware.Protected())
	f.Get("/lookup", middleware.TeacherOrAdmin(), fees.LookupEnrollment)
	f.Get("/enrollments/:enrollmentId/plan", fees.GetFeePlan)
	f.Get("/enrollments/:enrollmentId/payments", fees.ListPayments)
	f.Get("/enrollments/:enrollmentId/statement", fees.GetStatement)
	f.Put("/enrollments/:enrollmentId/plan", middleware.TeacherOrAdmin(), fees.SetFeePlan)
	f.Delete("/enrollments/:enrollmentId/plan", middleware.TeacherOrAdmin(), fees.DeleteFeePlan)
	f.Post("/enrollments/:enrollmentId/monthly-fees", middleware.TeacherOrAdmin(), fees.AddMonthlyFee)
	f.Post("/enrollments/:enrollmentId/payments", middleware.TeacherOrAdmin(), fees.RecordPayment)
	f.Put("/enrollments/:enrollmentId/end", middleware.TeacherOrAdmin(), fees.EndEnrollment)
	f.Put("/installments/:installmentId/status", middleware.TeacherOrAdmin(), fees.MarkInstallment)
	f.Put("/monthly-fees/:monthlyFeeId/status", middleware.TeacherOrAdmin(), fees.MarkMonthlyFee)
	f.Put("/payments/:paymentId", middleware.TeacherOrAdmin(), fees.UpdatePayment)
	f.Delete("/payments/:paymentId", middleware.TeacherOrAdmin(), fees.DeletePayment)
	f.Put("/payments/:paymentId/receipt", middleware.TeacherOrAdmin(), fees.AttachReceipt)

	env.app = app
	return env
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := issueToken(user)
	require.NoError(t, err)
	return token
}

// call performs a request and decodes the JSON response into out when out is
// not nil. It returns the status code.
func (e *testEnv) call(t *testing.T, method, path string, as *models.User, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *as))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

func (e *testEnv) planPath() string {
	return "/api/v1/fees/enrollments/" + e.enrollment.ID.String() + "/plan"
}

func (e *testEnv) paymentsPath() string {
	return "/api/v1/fees/enrollments/" + e.enrollment.ID.String() + "/payments"
}

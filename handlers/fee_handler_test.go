package handlers

import (
	"net/http"
	"testing"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryBody struct {
	Status       models.PaymentStatus `json:"status"`
	TotalDue     decimal.Decimal      `json:"total_due"`
	Balance      decimal.Decimal      `json:"balance"`
	Plan         models.FeePlan       `json:"plan"`
	Installments []struct {
		ID     uuid.UUID               `json:"id"`
		Amount decimal.Decimal         `json:"amount"`
		Status models.ObligationStatus `json:"status"`
	} `json:"installments"`
	MonthlyFees []struct {
		ID uuid.UUID `json:"id"`
	} `json:"monthly_fees"`
}

func completePlan(total string, count int) fiber.Map {
	return fiber.Map{
		"fee_type":           "complete",
		"total_amount":       total,
		"installments_count": count,
		"due_date":           "2024-01-01",
	}
}

func TestSetAndGetFeePlan(t *testing.T) {
	env := newTestEnv(t)

	var summary summaryBody
	code := env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), &summary)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, summary.Installments, 3)
	assert.True(t, summary.TotalDue.Equal(decimal.NewFromInt(1200)))
	for _, inst := range summary.Installments {
		assert.True(t, inst.Amount.Equal(decimal.NewFromInt(400)))
	}
	assert.Equal(t, "KES", summary.Plan.Currency)

	var read summaryBody
	code = env.call(t, http.MethodGet, env.planPath(), &env.student, nil, &read)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, summary.Plan.ID, read.Plan.ID)

	code = env.call(t, http.MethodGet, env.planPath(), &env.admin, nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestFeePlanAuthorization(t *testing.T) {
	env := newTestEnv(t)

	code := env.call(t, http.MethodPut, env.planPath(), &env.other, completePlan("1200", 3), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code = env.call(t, http.MethodPut, env.planPath(), &env.student, completePlan("1200", 3), nil)
	assert.Equal(t, http.StatusForbidden, code)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	code = env.call(t, http.MethodGet, env.planPath(), &env.other, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	outsider := createUser(t, env.db, "Olive Student", "olive@example.com", models.RoleStudent)
	code = env.call(t, http.MethodGet, env.planPath(), &outsider, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code = env.call(t, http.MethodPost, env.paymentsPath(), &env.student, fiber.Map{"amount": "100", "method": "cash"}, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestFeeErrorStatusCodes(t *testing.T) {
	env := newTestEnv(t)

	code := env.call(t, http.MethodGet, "/api/v1/fees/enrollments/not-a-uuid/plan", &env.teacher, nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = env.call(t, http.MethodGet, "/api/v1/fees/enrollments/"+uuid.NewString()+"/plan", &env.admin, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = env.call(t, http.MethodGet, env.planPath(), &env.teacher, nil, nil)
	assert.Equal(t, http.StatusNotFound, code, "no plan set yet")

	code = env.call(t, http.MethodPut, env.planPath(), &env.teacher, fiber.Map{"fee_type": "weekly"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = env.call(t, http.MethodPut, env.planPath(), &env.teacher, fiber.Map{"fee_type": "complete", "total_amount": "0", "installments_count": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = env.call(t, http.MethodPut, env.planPath(), &env.teacher, fiber.Map{
		"fee_type":     "complete",
		"total_amount": "1000",
		"custom_schedule": []fiber.Map{
			{"sequence_number": 1, "amount": "300", "due_date": "2024-01-01"},
			{"sequence_number": 2, "amount": "300", "due_date": "2024-02-01"},
		},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code = env.call(t, http.MethodPut, env.planPath(), &env.teacher, fiber.Map{
		"fee_type": "complete", "total_amount": "100", "installments_count": 1, "due_date": "01/02/2024",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	code = env.call(t, http.MethodPost, env.paymentsPath(), &env.teacher, fiber.Map{"amount": "1500", "method": "cash"}, nil)
	assert.Equal(t, http.StatusBadRequest, code, "overpayment")

	code = env.call(t, http.MethodPost, env.paymentsPath(), &env.teacher, fiber.Map{"amount": "-5", "method": "cash"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = env.call(t, http.MethodPost, "/api/v1/fees/enrollments/"+env.enrollment.ID.String()+"/monthly-fees", &env.teacher, fiber.Map{"month": 1, "year": 2024}, nil)
	assert.Equal(t, http.StatusBadRequest, code, "monthly fee on a complete plan")
}

func TestRecordPaymentsSettlePlan(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	var payment models.FeePayment
	code := env.call(t, http.MethodPost, env.paymentsPath(), &env.teacher, fiber.Map{"amount": "500", "method": "cash"}, &payment)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, payment.ReceiptNumber)

	var summary summaryBody
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.planPath(), &env.teacher, nil, &summary))
	assert.Equal(t, models.PaymentStatusPartial, summary.Plan.Status)
	assert.True(t, summary.Balance.Equal(decimal.NewFromInt(700)))

	code = env.call(t, http.MethodPost, env.paymentsPath(), &env.admin, fiber.Map{"amount": "700", "method": "bank_transfer", "reference": "TX-1"}, nil)
	require.Equal(t, http.StatusCreated, code)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.planPath(), &env.student, nil, &summary))
	assert.Equal(t, models.PaymentStatusPaid, summary.Status)
	assert.True(t, summary.Balance.IsZero())

	var payments []models.FeePayment
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.paymentsPath(), &env.student, nil, &payments))
	assert.Len(t, payments, 2)
}

func TestUpdateAndDeletePayment(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	var payment models.FeePayment
	require.Equal(t, http.StatusCreated, env.call(t, http.MethodPost, env.paymentsPath(), &env.teacher, fiber.Map{"amount": "500", "method": "cash"}, &payment))
	path := "/api/v1/fees/payments/" + payment.ID.String()

	var updated models.FeePayment
	code := env.call(t, http.MethodPut, path, &env.teacher, fiber.Map{"amount": "300", "notes": "corrected"}, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(300)))

	var plan models.FeePlan
	require.NoError(t, env.db.First(&plan, "enrollment_id = ?", env.enrollment.ID).Error)
	assert.True(t, plan.PaidToDate.Equal(decimal.NewFromInt(300)))

	code = env.call(t, http.MethodPut, path, &env.other, fiber.Map{"amount": "100"}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code = env.call(t, http.MethodPut, path+"/receipt", &env.teacher, fiber.Map{"receipt_url": "https://res.cloudinary.com/demo/image/upload/receipt.jpg"}, nil)
	assert.Equal(t, http.StatusOK, code)

	code = env.call(t, http.MethodPut, path+"/receipt", &env.teacher, fiber.Map{"receipt_url": "not a url"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodDelete, path, &env.teacher, nil, nil))
	require.NoError(t, env.db.First(&plan, "enrollment_id = ?", env.enrollment.ID).Error)
	assert.True(t, plan.PaidToDate.IsZero())
	assert.Equal(t, models.PaymentStatusUnpaid, plan.Status)

	code = env.call(t, http.MethodDelete, path, &env.teacher, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMarkInstallmentThroughAPI(t *testing.T) {
	env := newTestEnv(t)
	var summary summaryBody
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), &summary))
	path := "/api/v1/fees/installments/" + summary.Installments[0].ID.String() + "/status"

	var inst models.Installment
	code := env.call(t, http.MethodPut, path, &env.teacher, fiber.Map{"status": "paid", "paid_date": "2024-01-03"}, &inst)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ObligationPaid, inst.Status)
	require.NotNil(t, inst.PaymentID)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.planPath(), &env.teacher, nil, &summary))
	assert.True(t, summary.Balance.Equal(decimal.NewFromInt(800)))

	code = env.call(t, http.MethodPut, path, &env.teacher, fiber.Map{"status": "overdue"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = env.call(t, http.MethodPut, path, &env.teacher, fiber.Map{"status": "pending"}, &inst)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ObligationPending, inst.Status)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.planPath(), &env.teacher, nil, &summary))
	assert.True(t, summary.Balance.Equal(decimal.NewFromInt(1200)))

	code = env.call(t, http.MethodPut, "/api/v1/fees/installments/"+uuid.NewString()+"/status", &env.teacher, fiber.Map{"status": "paid"}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMonthlyFeesThroughAPI(t *testing.T) {
	env := newTestEnv(t)
	code := env.call(t, http.MethodPut, env.planPath(), &env.teacher, fiber.Map{"fee_type": "monthly", "monthly_amount": "100"}, nil)
	require.Equal(t, http.StatusOK, code)

	path := "/api/v1/fees/enrollments/" + env.enrollment.ID.String() + "/monthly-fees"
	var fee models.MonthlyFee
	code = env.call(t, http.MethodPost, path, &env.teacher, fiber.Map{"month": 2, "year": 2024}, &fee)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, fee.Amount.Equal(decimal.NewFromInt(100)))

	code = env.call(t, http.MethodPost, path, &env.teacher, fiber.Map{"month": 2, "year": 2024}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = env.call(t, http.MethodPost, path, &env.teacher, fiber.Map{"month": 13, "year": 2024}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var marked models.MonthlyFee
	code = env.call(t, http.MethodPut, "/api/v1/fees/monthly-fees/"+fee.ID.String()+"/status", &env.teacher, fiber.Map{"status": "paid"}, &marked)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ObligationPaid, marked.Status)

	var summary summaryBody
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, env.planPath(), &env.student, nil, &summary))
	assert.Equal(t, models.PaymentStatusPaid, summary.Status)
	assert.Len(t, summary.MonthlyFees, 1)
}

func TestLookupAndOverviews(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("900", 3), nil))

	lookup := "/api/v1/fees/lookup?student_id=" + env.student.ID.String() + "&course_id=" + env.course.ID.String()
	var info struct {
		EnrollmentID uuid.UUID `json:"enrollment_id"`
	}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, lookup, &env.teacher, nil, &info))
	assert.Equal(t, env.enrollment.ID, info.EnrollmentID)

	assert.Equal(t, http.StatusForbidden, env.call(t, http.MethodGet, lookup, &env.other, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.call(t, http.MethodGet, "/api/v1/fees/lookup?student_id=x", &env.teacher, nil, nil))

	var rows []struct {
		HasPlan  bool            `json:"has_plan"`
		TotalDue decimal.Decimal `json:"total_due"`
		Currency string          `json:"currency"`
	}
	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/v1/student/fees", &env.student, nil, &rows))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].HasPlan)
	assert.True(t, rows[0].TotalDue.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, "KES", rows[0].Currency)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/v1/teacher/fees", &env.teacher, nil, &rows))
	assert.Len(t, rows, 1)

	require.Equal(t, http.StatusOK, env.call(t, http.MethodGet, "/api/v1/teacher/fees", &env.other, nil, &rows))
	assert.Empty(t, rows)
}

func TestEndEnrollmentRemovesPlan(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	path := "/api/v1/fees/enrollments/" + env.enrollment.ID.String() + "/end"
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, path, &env.teacher, nil, nil))

	var enrollment models.Enrollment
	require.NoError(t, env.db.First(&enrollment, "id = ?", env.enrollment.ID).Error)
	assert.Equal(t, models.EnrollmentStatusEnded, enrollment.Status)

	var plans int64
	env.db.Model(&models.FeePlan{}).Count(&plans)
	assert.Zero(t, plans)

	assert.Equal(t, http.StatusOK, env.call(t, http.MethodPut, path, &env.teacher, nil, nil))
}

func TestEndedEnrollmentRejectsFeeWrites(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/fees/enrollments/" + env.enrollment.ID.String() + "/end"
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, path, &env.admin, nil, nil))

	code := env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = env.call(t, http.MethodPost, env.paymentsPath(), &env.teacher, fiber.Map{"amount": "100", "method": "cash"}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = env.call(t, http.MethodPost, "/api/v1/fees/enrollments/"+env.enrollment.ID.String()+"/monthly-fees", &env.teacher, fiber.Map{"month": 1, "year": 2024}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = env.call(t, http.MethodGet, env.planPath(), &env.student, nil, nil)
	assert.Equal(t, http.StatusNotFound, code, "no plan to read")
}

func TestStatementUnavailableWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(t, http.MethodPut, env.planPath(), &env.teacher, completePlan("1200", 3), nil))

	code := env.call(t, http.MethodGet, "/api/v1/fees/enrollments/"+env.enrollment.ID.String()+"/statement", &env.student, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

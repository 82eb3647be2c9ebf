package handlers

import (
	"github.com/anjiri1684/tutor_fees/models"
	"github.com/anjiri1684/tutor_fees/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeHandler exposes the fee plan engine over HTTP. Role and ownership checks
// happen here, before any engine call.
type FeeHandler struct {
	Plans      *services.FeePlanService
	Ledger     *services.PaymentLedger
	Directory  services.EnrollmentDirectory
	Statements *services.StatementService
}

type CustomInstallmentRequest struct {
	SequenceNumber int             `json:"sequence_number" validate:"required,gt=0"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        string          `json:"due_date" validate:"required"`
}

type SetFeePlanRequest struct {
	FeeType           string                     `json:"fee_type" validate:"required,oneof=monthly complete"`
	TotalAmount       *decimal.Decimal           `json:"total_amount"`
	MonthlyAmount     *decimal.Decimal           `json:"monthly_amount"`
	InstallmentsCount int                        `json:"installments_count" validate:"gte=0,lte=120"`
	DueDate           *string                    `json:"due_date"`
	CustomSchedule    []CustomInstallmentRequest `json:"custom_schedule" validate:"omitempty,max=120,dive"`
}

type AddMonthlyFeeRequest struct {
	Month   int              `json:"month" validate:"required,min=1,max=12"`
	Year    int              `json:"year" validate:"required,min=2000,max=2100"`
	Amount  *decimal.Decimal `json:"amount"`
	DueDate *string          `json:"due_date"`
}

type MarkObligationRequest struct {
	Status   string  `json:"status" validate:"required,oneof=pending paid"`
	PaidDate *string `json:"paid_date"`
}

type RecordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"required,oneof=cash bank_transfer mobile_money card other"`
	Reference     *string         `json:"reference" validate:"omitempty,max=255"`
	Notes         *string         `json:"notes" validate:"omitempty,max=2000"`
	RecordedAt    *string         `json:"recorded_at"`
	InstallmentID *string         `json:"installment_id" validate:"omitempty,uuid"`
	MonthlyFeeID  *string         `json:"monthly_fee_id" validate:"omitempty,uuid"`
}

type UpdatePaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Method    *string          `json:"method" validate:"omitempty,oneof=cash bank_transfer mobile_money card other"`
	Reference *string          `json:"reference" validate:"omitempty,max=255"`
	Notes     *string          `json:"notes" validate:"omitempty,max=2000"`
}

type AttachReceiptRequest struct {
	ReceiptURL string `json:"receipt_url" validate:"required,url"`
}

func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// authorize resolves the enrollment and checks the caller may act on it:
// admins always, teachers for their own courses, students only for reads of
// their own enrollment.
func (h *FeeHandler) authorize(c *fiber.Ctx, enrollmentID uuid.UUID, studentMayRead bool) (services.EnrollmentInfo, error) {
	info, err := h.Directory.Resolve(c.UserContext(), enrollmentID)
	if err != nil {
		return services.EnrollmentInfo{}, err
	}
	userID, role := currentUser(c)
	switch role {
	case models.RoleAdmin:
		return info, nil
	case models.RoleTeacher:
		if info.TeacherID == userID {
			return info, nil
		}
	case models.RoleStudent:
		if studentMayRead && info.StudentID == userID {
			return info, nil
		}
	}
	return services.EnrollmentInfo{}, errForbidden
}

func (h *FeeHandler) enrollmentParam(c *fiber.Ctx, studentMayRead bool) (uuid.UUID, error) {
	enrollmentID, err := uuidParam(c, "enrollmentId")
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.authorize(c, enrollmentID, studentMayRead); err != nil {
		return uuid.Nil, err
	}
	return enrollmentID, nil
}

func (h *FeeHandler) LookupEnrollment(c *fiber.Ctx) error {
	studentID, err := uuid.Parse(c.Query("student_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "student_id must be a valid UUID"})
	}
	courseID, err := uuid.Parse(c.Query("course_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "course_id must be a valid UUID"})
	}

	info, err := h.Directory.Lookup(c.UserContext(), studentID, courseID)
	if err != nil {
		return feeError(c, err)
	}
	if _, err := h.authorize(c, info.EnrollmentID, false); err != nil {
		return feeError(c, err)
	}
	return c.JSON(info)
}

func (h *FeeHandler) SetFeePlan(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, false)
	if err != nil {
		return feeError(c, err)
	}
	var req SetFeePlanRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}

	in := services.SetPlanInput{
		FeeType:           models.FeeType(req.FeeType),
		TotalAmount:       req.TotalAmount,
		MonthlyAmount:     req.MonthlyAmount,
		InstallmentsCount: req.InstallmentsCount,
	}
	if in.DueDate, err = optionalDate(req.DueDate); err != nil {
		return feeError(c, err)
	}
	for _, entry := range req.CustomSchedule {
		due, err := parseDate(entry.DueDate)
		if err != nil {
			return feeError(c, err)
		}
		in.CustomSchedule = append(in.CustomSchedule, services.ScheduleEntry{
			SequenceNumber: entry.SequenceNumber,
			Amount:         entry.Amount,
			DueDate:        due,
		})
	}

	actor, _ := currentUser(c)
	summary, err := h.Plans.SetPlan(c.UserContext(), enrollmentID, in, actor)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(summary)
}

func (h *FeeHandler) GetFeePlan(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, true)
	if err != nil {
		return feeError(c, err)
	}
	summary, err := h.Plans.GetPlan(c.UserContext(), enrollmentID)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(summary)
}

func (h *FeeHandler) DeleteFeePlan(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, false)
	if err != nil {
		return feeError(c, err)
	}
	if err := h.Plans.DeletePlan(c.UserContext(), enrollmentID); err != nil {
		return feeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Fee plan deleted."})
}

func (h *FeeHandler) AddMonthlyFee(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, false)
	if err != nil {
		return feeError(c, err)
	}
	var req AddMonthlyFeeRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}
	due, err := optionalDate(req.DueDate)
	if err != nil {
		return feeError(c, err)
	}

	fee, err := h.Plans.AddMonthlyFee(c.UserContext(), enrollmentID, services.AddMonthlyFeeInput{
		Month:   req.Month,
		Year:    req.Year,
		Amount:  req.Amount,
		DueDate: due,
	})
	if err != nil {
		return feeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fee)
}

func (h *FeeHandler) MarkInstallment(c *fiber.Ctx) error {
	installmentID, err := uuidParam(c, "installmentId")
	if err != nil {
		return feeError(c, err)
	}
	enrollmentID, err := h.Ledger.EnrollmentOfInstallment(c.UserContext(), installmentID)
	if err != nil {
		return feeError(c, err)
	}
	if _, err := h.authorize(c, enrollmentID, false); err != nil {
		return feeError(c, err)
	}
	var req MarkObligationRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}
	paidDate, err := optionalDate(req.PaidDate)
	if err != nil {
		return feeError(c, err)
	}

	actor, _ := currentUser(c)
	inst, err := h.Ledger.MarkInstallment(c.UserContext(), installmentID, models.ObligationStatus(req.Status), paidDate, actor)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(inst)
}

func (h *FeeHandler) MarkMonthlyFee(c *fiber.Ctx) error {
	monthlyFeeID, err := uuidParam(c, "monthlyFeeId")
	if err != nil {
		return feeError(c, err)
	}
	enrollmentID, err := h.Ledger.EnrollmentOfMonthlyFee(c.UserContext(), monthlyFeeID)
	if err != nil {
		return feeError(c, err)
	}
	if _, err := h.authorize(c, enrollmentID, false); err != nil {
		return feeError(c, err)
	}
	var req MarkObligationRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}
	paidDate, err := optionalDate(req.PaidDate)
	if err != nil {
		return feeError(c, err)
	}

	actor, _ := currentUser(c)
	fee, err := h.Ledger.MarkMonthlyFee(c.UserContext(), monthlyFeeID, models.ObligationStatus(req.Status), paidDate, actor)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(fee)
}

func (h *FeeHandler) RecordPayment(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, false)
	if err != nil {
		return feeError(c, err)
	}
	var req RecordPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}

	in := services.RecordPaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	if in.RecordedAt, err = optionalDate(req.RecordedAt); err != nil {
		return feeError(c, err)
	}
	if req.InstallmentID != nil && *req.InstallmentID != "" {
		id, _ := uuid.Parse(*req.InstallmentID)
		in.InstallmentID = &id
	}
	if req.MonthlyFeeID != nil && *req.MonthlyFeeID != "" {
		id, _ := uuid.Parse(*req.MonthlyFeeID)
		in.MonthlyFeeID = &id
	}

	actor, _ := currentUser(c)
	payment, err := h.Ledger.RecordPayment(c.UserContext(), enrollmentID, in, actor)
	if err != nil {
		return feeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

func (h *FeeHandler) ListPayments(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, true)
	if err != nil {
		return feeError(c, err)
	}
	payments, err := h.Ledger.ListPayments(c.UserContext(), enrollmentID)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(payments)
}

func (h *FeeHandler) paymentParam(c *fiber.Ctx) (uuid.UUID, error) {
	paymentID, err := uuidParam(c, "paymentId")
	if err != nil {
		return uuid.Nil, err
	}
	enrollmentID, err := h.Ledger.EnrollmentOfPayment(c.UserContext(), paymentID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := h.authorize(c, enrollmentID, false); err != nil {
		return uuid.Nil, err
	}
	return paymentID, nil
}

func (h *FeeHandler) UpdatePayment(c *fiber.Ctx) error {
	paymentID, err := h.paymentParam(c)
	if err != nil {
		return feeError(c, err)
	}
	var req UpdatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}
	payment, err := h.Ledger.UpdatePayment(c.UserContext(), paymentID, services.UpdatePaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(payment)
}

func (h *FeeHandler) DeletePayment(c *fiber.Ctx) error {
	paymentID, err := h.paymentParam(c)
	if err != nil {
		return feeError(c, err)
	}
	if err := h.Ledger.DeletePayment(c.UserContext(), paymentID); err != nil {
		return feeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment deleted."})
}

func (h *FeeHandler) AttachReceipt(c *fiber.Ctx) error {
	paymentID, err := h.paymentParam(c)
	if err != nil {
		return feeError(c, err)
	}
	var req AttachReceiptRequest
	if err := parseBody(c, &req); err != nil {
		return feeError(c, err)
	}
	payment, err := h.Ledger.AttachReceipt(c.UserContext(), paymentID, req.ReceiptURL)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(payment)
}

func (h *FeeHandler) GetStatement(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, true)
	if err != nil {
		return feeError(c, err)
	}
	if h.Statements == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Statements are not configured"})
	}
	url, err := h.Statements.Generate(c.UserContext(), enrollmentID)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(fiber.Map{"statement_url": url})
}

func (h *FeeHandler) GetStudentFees(c *fiber.Ctx) error {
	studentID, _ := currentUser(c)
	rows, err := h.Plans.StudentOverview(c.UserContext(), studentID)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(rows)
}

func (h *FeeHandler) GetTeacherFees(c *fiber.Ctx) error {
	teacherID, _ := currentUser(c)
	rows, err := h.Plans.TeacherOverview(c.UserContext(), teacherID)
	if err != nil {
		return feeError(c, err)
	}
	return c.JSON(rows)
}

// EndEnrollment closes an enrollment and removes its fee plan.
func (h *FeeHandler) EndEnrollment(c *fiber.Ctx) error {
	enrollmentID, err := h.enrollmentParam(c, false)
	if err != nil {
		return feeError(c, err)
	}
	if err := h.Plans.EndEnrollment(c.UserContext(), enrollmentID); err != nil {
		return feeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Enrollment ended."})
}

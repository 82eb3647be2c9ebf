package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SetPlanInput carries the parameters of a new or replacement fee plan.
type SetPlanInput struct {
	FeeType           models.FeeType   `json:"fee_type"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
	MonthlyAmount     *decimal.Decimal `json:"monthly_amount"`
	InstallmentsCount int              `json:"installments_count"`
	DueDate           *time.Time       `json:"due_date"`
	CustomSchedule    []ScheduleEntry  `json:"custom_schedule"`
}

// AddMonthlyFeeInput issues one monthly obligation. Amount defaults to the
// plan's monthly_amount and DueDate to the first day of the month.
type AddMonthlyFeeInput struct {
	Month   int              `json:"month"`
	Year    int              `json:"year"`
	Amount  *decimal.Decimal `json:"amount"`
	DueDate *time.Time       `json:"due_date"`
}

type InstallmentView struct {
	models.Installment
	Overdue bool `json:"overdue"`
}

type MonthlyFeeView struct {
	models.MonthlyFee
	Overdue bool `json:"overdue"`
}

// PlanSummary is the read model of one enrollment's fee plan.
type PlanSummary struct {
	Enrollment   EnrollmentInfo       `json:"enrollment"`
	Plan         models.FeePlan       `json:"plan"`
	Status       models.PaymentStatus `json:"status"`
	TotalDue     decimal.Decimal      `json:"total_due"`
	Balance      decimal.Decimal      `json:"balance"`
	NextDueDate  *time.Time           `json:"next_due_date"`
	Installments []InstallmentView    `json:"installments"`
	MonthlyFees  []MonthlyFeeView     `json:"monthly_fees"`
	Payments     []models.FeePayment  `json:"payments"`
}

// PlanOverview is one row of a student's or teacher's fee dashboard.
type PlanOverview struct {
	Enrollment  EnrollmentInfo       `json:"enrollment"`
	HasPlan     bool                 `json:"has_plan"`
	FeeType     models.FeeType       `json:"fee_type,omitempty"`
	TotalDue    decimal.Decimal      `json:"total_due"`
	PaidToDate  decimal.Decimal      `json:"paid_to_date"`
	Balance     decimal.Decimal      `json:"balance"`
	Status      models.PaymentStatus `json:"status,omitempty"`
	NextDueDate *time.Time           `json:"next_due_date"`
	Currency    string               `json:"currency"`
}

type FeePlanService struct {
	db       *gorm.DB
	dir      EnrollmentDirectory
	notifier Notifier
	cfg      engineConfig
}

func NewFeePlanService(db *gorm.DB, dir EnrollmentDirectory, notifier Notifier, opts ...Option) *FeePlanService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &FeePlanService{db: db, dir: dir, notifier: notifier, cfg: newEngineConfig(opts)}
}

// SetPlan creates or replaces the fee plan of an enrollment. Replacing a plan
// deletes every installment, monthly fee and payment of the previous one and
// resets paid_to_date; either all of that happens or none of it does.
func (s *FeePlanService) SetPlan(ctx context.Context, enrollmentID uuid.UUID, in SetPlanInput, actor uuid.UUID) (*PlanSummary, error) {
	info, err := resolveActive(ctx, s.dir, enrollmentID)
	if err != nil {
		return nil, err
	}
	header, entries, err := buildPlan(in)
	if err != nil {
		return nil, err
	}
	header.EnrollmentID = enrollmentID
	header.Currency = info.Currency
	header.SetBy = actor

	err = s.cfg.runInTx(ctx, s.db, func(tx *gorm.DB) error {
		plan, err := lockPlanByEnrollment(tx, enrollmentID)
		switch {
		case err == nil:
			header.ID = plan.ID
			header.CreatedAt = plan.CreatedAt
			if err := wipeObligations(tx, plan.ID); err != nil {
				return err
			}
			if err := tx.Save(header).Error; err != nil {
				return err
			}
		case isNotFound(err):
			if err := tx.Create(header).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if len(entries) == 0 {
			return nil
		}
		installments := make([]models.Installment, len(entries))
		for i, e := range entries {
			installments[i] = models.Installment{
				FeePlanID:      header.ID,
				SequenceNumber: e.SequenceNumber,
				Amount:         e.Amount,
				DueDate:        e.DueDate,
				Status:         models.ObligationPending,
			}
		}
		return tx.Create(&installments).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, Notification{
		UserID:  info.StudentID,
		Type:    NotificationFeePlanSet,
		Subject: "Your fee plan was updated",
		Body:    fmt.Sprintf("The fee plan for %s is now a %s plan.", info.CourseTitle, header.FeeType),
		Data: map[string]any{
			"enrollment_id": enrollmentID,
			"fee_plan_id":   header.ID,
		},
	})
	return s.GetPlan(ctx, enrollmentID)
}

// buildPlan validates the input and returns a fresh header plus the
// installments a complete plan starts with.
func buildPlan(in SetPlanInput) (*models.FeePlan, []ScheduleEntry, error) {
	header := &models.FeePlan{
		FeeType:       in.FeeType,
		TotalAmount:   decimal.Zero,
		MonthlyAmount: decimal.Zero,
		PaidToDate:    decimal.Zero,
		Status:        models.PaymentStatusUnpaid,
		DueDate:       in.DueDate,
	}

	switch in.FeeType {
	case models.FeeTypeMonthly:
		if in.MonthlyAmount == nil || !in.MonthlyAmount.IsPositive() {
			return nil, nil, invalidPlan("monthly_amount must be greater than 0 for monthly plans")
		}
		header.MonthlyAmount = in.MonthlyAmount.Round(centPlaces)
		return header, nil, nil

	case models.FeeTypeComplete:
		if in.TotalAmount == nil {
			return nil, nil, invalidPlan("total_amount is required for complete plans")
		}
		if len(in.CustomSchedule) == 0 && in.InstallmentsCount < 1 {
			return nil, nil, invalidPlan("installments_count must be at least 1")
		}
		var anchor time.Time
		if in.DueDate != nil {
			anchor = *in.DueDate
		}
		total := in.TotalAmount.Round(centPlaces)
		entries, err := GenerateSchedule(in.FeeType, total, in.InstallmentsCount, anchor, in.CustomSchedule)
		if err != nil {
			return nil, nil, err
		}
		header.TotalAmount = total
		header.InstallmentsCount = len(entries)
		if header.DueDate == nil {
			first := entries[0].DueDate
			header.DueDate = &first
		}
		return header, entries, nil
	}
	return nil, nil, invalidPlan("fee_type must be monthly or complete")
}

func wipeObligations(tx *gorm.DB, planID uuid.UUID) error {
	if err := tx.Where("fee_plan_id = ?", planID).Delete(&models.FeePayment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("fee_plan_id = ?", planID).Delete(&models.Installment{}).Error; err != nil {
		return err
	}
	return tx.Where("fee_plan_id = ?", planID).Delete(&models.MonthlyFee{}).Error
}

// DeletePlan removes an enrollment's plan with all its obligations and
// payments. Used when an enrollment ends.
func (s *FeePlanService) DeletePlan(ctx context.Context, enrollmentID uuid.UUID) error {
	return s.cfg.runInTx(ctx, s.db, func(tx *gorm.DB) error {
		plan, err := lockPlanByEnrollment(tx, enrollmentID)
		if err != nil {
			return err
		}
		if err := wipeObligations(tx, plan.ID); err != nil {
			return err
		}
		return tx.Delete(plan).Error
	})
}

// EndEnrollment marks an enrollment ended and deletes its fee plan, if any, in
// one transaction. Ending an already ended enrollment is a no-op for the plan.
func (s *FeePlanService) EndEnrollment(ctx context.Context, enrollmentID uuid.UUID) error {
	return s.cfg.runInTx(ctx, s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Enrollment{}).Where("id = ?", enrollmentID).
			Update("status", models.EnrollmentStatusEnded)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("enrollment")
		}
		plan, err := lockPlanByEnrollment(tx, enrollmentID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := wipeObligations(tx, plan.ID); err != nil {
			return err
		}
		return tx.Delete(plan).Error
	})
}

// AddMonthlyFee issues the obligation for one calendar month of a monthly plan.
func (s *FeePlanService) AddMonthlyFee(ctx context.Context, enrollmentID uuid.UUID, in AddMonthlyFeeInput) (*models.MonthlyFee, error) {
	if in.Month < 1 || in.Month > 12 {
		return nil, invalidPlan("month must be between 1 and 12")
	}
	if in.Year < 1 {
		return nil, invalidPlan("year is required")
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalidPlan("amount must be greater than 0")
	}
	if _, err := resolveActive(ctx, s.dir, enrollmentID); err != nil {
		return nil, err
	}

	var fee models.MonthlyFee
	err := s.cfg.runInTx(ctx, s.db, func(tx *gorm.DB) error {
		plan, err := lockPlanByEnrollment(tx, enrollmentID)
		if err != nil {
			return err
		}
		if plan.FeeType != models.FeeTypeMonthly {
			return invalidPlan("monthly fees can only be added to monthly plans")
		}

		var existing int64
		if err := tx.Model(&models.MonthlyFee{}).
			Where("fee_plan_id = ? AND month = ? AND year = ?", plan.ID, in.Month, in.Year).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %04d-%02d", ErrDuplicateObligation, in.Year, in.Month)
		}

		amount := plan.MonthlyAmount
		if in.Amount != nil {
			amount = in.Amount.Round(centPlaces)
		}
		due := time.Date(in.Year, time.Month(in.Month), 1, 0, 0, 0, 0, time.UTC)
		if in.DueDate != nil {
			due = *in.DueDate
		}
		fee = models.MonthlyFee{
			FeePlanID: plan.ID,
			Month:     in.Month,
			Year:      in.Year,
			Amount:    amount,
			DueDate:   due,
			Status:    models.ObligationPending,
		}
		if err := tx.Create(&fee).Error; err != nil {
			return duplicatePeriod(err, in.Year, in.Month)
		}
		return applySettlement(tx, plan, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// GetPlan loads the plan of an enrollment together with its obligations and
// payments, and derives status, balance and overdue flags as of now.
func (s *FeePlanService) GetPlan(ctx context.Context, enrollmentID uuid.UUID) (*PlanSummary, error) {
	info, err := s.dir.Resolve(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var plan models.FeePlan
	if err := takeOrNotFound(db, &plan, "fee plan", "enrollment_id = ?", enrollmentID); err != nil {
		return nil, err
	}
	var installments []models.Installment
	if err := db.Where("fee_plan_id = ?", plan.ID).Order("sequence_number ASC").Find(&installments).Error; err != nil {
		return nil, err
	}
	var monthly []models.MonthlyFee
	if err := db.Where("fee_plan_id = ?", plan.ID).Order("year ASC, month ASC").Find(&monthly).Error; err != nil {
		return nil, err
	}
	var payments []models.FeePayment
	if err := db.Where("fee_plan_id = ?", plan.ID).Order("recorded_at ASC").Find(&payments).Error; err != nil {
		return nil, err
	}

	ev := evaluate(&plan, obligationsOf(installments, monthly), s.cfg.now())
	summary := &PlanSummary{
		Enrollment:   info,
		Plan:         plan,
		Status:       ev.status,
		TotalDue:     ev.total,
		Balance:      ev.balance,
		NextDueDate:  ev.nextDue,
		Installments: make([]InstallmentView, len(installments)),
		MonthlyFees:  make([]MonthlyFeeView, len(monthly)),
		Payments:     payments,
	}
	for i, inst := range installments {
		summary.Installments[i] = InstallmentView{Installment: inst, Overdue: ev.overdue[inst.ID]}
	}
	for i, fee := range monthly {
		summary.MonthlyFees[i] = MonthlyFeeView{MonthlyFee: fee, Overdue: ev.overdue[fee.ID]}
	}
	return summary, nil
}

func obligationsOf(installments []models.Installment, monthly []models.MonthlyFee) []obligation {
	out := make([]obligation, 0, len(installments)+len(monthly))
	for _, inst := range installments {
		out = append(out, obligation{id: inst.ID, amount: inst.Amount, due: inst.DueDate, settled: inst.Status == models.ObligationPaid})
	}
	for _, fee := range monthly {
		out = append(out, obligation{id: fee.ID, amount: fee.Amount, due: fee.DueDate, settled: fee.Status == models.ObligationPaid})
	}
	return out
}

// StudentOverview lists every enrollment of a student with its fee figures.
func (s *FeePlanService) StudentOverview(ctx context.Context, studentID uuid.UUID) ([]PlanOverview, error) {
	enrollments, err := s.dir.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, enrollments)
}

// TeacherOverview lists every enrollment in a teacher's courses with its fee figures.
func (s *FeePlanService) TeacherOverview(ctx context.Context, teacherID uuid.UUID) ([]PlanOverview, error) {
	enrollments, err := s.dir.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, enrollments)
}

func (s *FeePlanService) overview(ctx context.Context, enrollments []EnrollmentInfo) ([]PlanOverview, error) {
	out := make([]PlanOverview, len(enrollments))
	if len(enrollments) == 0 {
		return out, nil
	}
	db := s.db.WithContext(ctx)

	ids := make([]uuid.UUID, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.EnrollmentID
	}
	var plans []models.FeePlan
	if err := db.Where("enrollment_id IN ?", ids).Find(&plans).Error; err != nil {
		return nil, err
	}
	byEnrollment := make(map[uuid.UUID]*models.FeePlan, len(plans))
	planIDs := make([]uuid.UUID, 0, len(plans))
	for i := range plans {
		byEnrollment[plans[i].EnrollmentID] = &plans[i]
		planIDs = append(planIDs, plans[i].ID)
	}

	obligations := make(map[uuid.UUID][]obligation)
	if len(planIDs) > 0 {
		var installments []models.Installment
		if err := db.Where("fee_plan_id IN ?", planIDs).Find(&installments).Error; err != nil {
			return nil, err
		}
		var monthly []models.MonthlyFee
		if err := db.Where("fee_plan_id IN ?", planIDs).Find(&monthly).Error; err != nil {
			return nil, err
		}
		for _, inst := range installments {
			obligations[inst.FeePlanID] = append(obligations[inst.FeePlanID], obligationsOf([]models.Installment{inst}, nil)...)
		}
		for _, fee := range monthly {
			obligations[fee.FeePlanID] = append(obligations[fee.FeePlanID], obligationsOf(nil, []models.MonthlyFee{fee})...)
		}
	}

	now := s.cfg.now()
	for i, e := range enrollments {
		row := PlanOverview{Enrollment: e, Currency: e.Currency}
		if plan, ok := byEnrollment[e.EnrollmentID]; ok {
			ev := evaluate(plan, obligations[plan.ID], now)
			row.HasPlan = true
			row.FeeType = plan.FeeType
			row.TotalDue = ev.total
			row.PaidToDate = plan.PaidToDate
			row.Balance = ev.balance
			row.Status = ev.status
			row.NextDueDate = ev.nextDue
		}
		out[i] = row
	}
	return out, nil
}

// OverdueObligation is an unsettled installment or monthly fee past its due
// date. Amount is what is still owed on it after free-form payments.
type OverdueObligation struct {
	Enrollment   EnrollmentInfo  `json:"enrollment"`
	FeePlanID    uuid.UUID       `json:"fee_plan_id"`
	ObligationID uuid.UUID       `json:"obligation_id"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
}

// OverdueObligations scans every plan with unsettled obligations and returns
// those past due as of now. The reminder job calls it once a day.
func (s *FeePlanService) OverdueObligations(ctx context.Context) ([]OverdueObligation, error) {
	db := s.db.WithContext(ctx)

	var planIDs []uuid.UUID
	if err := db.Model(&models.Installment{}).Distinct("fee_plan_id").
		Where("status = ?", models.ObligationPending).
		Pluck("fee_plan_id", &planIDs).Error; err != nil {
		return nil, err
	}
	var monthlyPlanIDs []uuid.UUID
	if err := db.Model(&models.MonthlyFee{}).Distinct("fee_plan_id").
		Where("status = ?", models.ObligationPending).
		Pluck("fee_plan_id", &monthlyPlanIDs).Error; err != nil {
		return nil, err
	}
	planIDs = append(planIDs, monthlyPlanIDs...)
	if len(planIDs) == 0 {
		return nil, nil
	}

	var plans []models.FeePlan
	if err := db.Where("id IN ?", planIDs).Find(&plans).Error; err != nil {
		return nil, err
	}
	var out []OverdueObligation
	for i := range plans {
		plan := &plans[i]
		var installments []models.Installment
		if err := db.Where("fee_plan_id = ?", plan.ID).Find(&installments).Error; err != nil {
			return nil, err
		}
		var monthly []models.MonthlyFee
		if err := db.Where("fee_plan_id = ?", plan.ID).Find(&monthly).Error; err != nil {
			return nil, err
		}
		obligations := obligationsOf(installments, monthly)
		ev := evaluate(plan, obligations, s.cfg.now())
		if len(ev.overdue) == 0 {
			continue
		}
		info, err := s.dir.Resolve(ctx, plan.EnrollmentID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, o := range obligations {
			if ev.overdue[o.id] {
				out = append(out, OverdueObligation{
					Enrollment:   info,
					FeePlanID:    plan.ID,
					ObligationID: o.id,
					Amount:       ev.owed[o.id],
					DueDate:      o.due,
				})
			}
		}
	}
	return out, nil
}

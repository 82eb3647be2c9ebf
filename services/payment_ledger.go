package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/anjiri1684/tutor_fees/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RecordPaymentInput struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Reference     *string         `json:"reference"`
	Notes         *string         `json:"notes"`
	RecordedAt    *time.Time      `json:"recorded_at"`
	InstallmentID *uuid.UUID      `json:"installment_id"`
	MonthlyFeeID  *uuid.UUID      `json:"monthly_fee_id"`
}

type UpdatePaymentInput struct {
	Amount    *decimal.Decimal `json:"amount"`
	Method    *string          `json:"method"`
	Reference *string          `json:"reference"`
	Notes     *string          `json:"notes"`
}

// PaymentLedger records payments against fee plans and settles obligations.
// Every write locks the plan header for the whole transaction and goes through
// applySettlement to move paid_to_date.
type PaymentLedger struct {
	db       *gorm.DB
	dir      EnrollmentDirectory
	notifier Notifier
	cfg      engineConfig
}

func NewPaymentLedger(db *gorm.DB, dir EnrollmentDirectory, notifier Notifier, opts ...Option) *PaymentLedger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentLedger{db: db, dir: dir, notifier: notifier, cfg: newEngineConfig(opts)}
}

// obligationKind abstracts over installments and monthly fees, which settle
// the same way but live in different tables.
type obligationKind struct {
	what   string
	method string
	model  func() any
	link   func(p *models.FeePayment, id uuid.UUID)
}

var (
	installmentKind = obligationKind{
		what:   "installment",
		method: models.PaymentMethodInstallment,
		model:  func() any { return &models.Installment{} },
		link:   func(p *models.FeePayment, id uuid.UUID) { p.InstallmentID = &id },
	}
	monthlyFeeKind = obligationKind{
		what:   "monthly fee",
		method: models.PaymentMethodMonthlyFee,
		model:  func() any { return &models.MonthlyFee{} },
		link:   func(p *models.FeePayment, id uuid.UUID) { p.MonthlyFeeID = &id },
	}
)

type obligationRecord struct {
	ID        uuid.UUID
	FeePlanID uuid.UUID
	Amount    decimal.Decimal
	Status    models.ObligationStatus
	PaymentID *uuid.UUID
}

func loadObligation(tx *gorm.DB, kind obligationKind, id uuid.UUID) (*obligationRecord, error) {
	var rec obligationRecord
	res := tx.Model(kind.model()).Where("id = ?", id).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, notFound(kind.what)
	}
	return &rec, nil
}

func settleObligation(tx *gorm.DB, kind obligationKind, id, paymentID uuid.UUID, paidAt time.Time) error {
	return tx.Model(kind.model()).Where("id = ?", id).Updates(map[string]any{
		"status":     models.ObligationPaid,
		"paid_date":  paidAt,
		"payment_id": paymentID,
	}).Error
}

func releaseObligation(tx *gorm.DB, kind obligationKind, id uuid.UUID) error {
	return tx.Model(kind.model()).Where("id = ?", id).Updates(map[string]any{
		"status":     models.ObligationPending,
		"paid_date":  nil,
		"payment_id": nil,
	}).Error
}

func (l *PaymentLedger) newPayment(tx *gorm.DB, plan *models.FeePlan, amount decimal.Decimal, method string, at time.Time, actor uuid.UUID) (*models.FeePayment, error) {
	receipt, err := utils.GenerateUniqueReceiptNumber(tx)
	if err != nil {
		return nil, err
	}
	return &models.FeePayment{
		FeePlanID:     plan.ID,
		EnrollmentID:  plan.EnrollmentID,
		Amount:        amount,
		Method:        method,
		ReceiptNumber: receipt,
		RecordedAt:    at,
		RecordedBy:    actor,
	}, nil
}

// RecordPayment appends a payment to an enrollment's plan. When the input
// names an installment or monthly fee, that obligation is settled by the same
// payment, so the amount is counted once.
func (l *PaymentLedger) RecordPayment(ctx context.Context, enrollmentID uuid.UUID, in RecordPaymentInput, actor uuid.UUID) (*models.FeePayment, error) {
	if !in.Amount.IsPositive() {
		return nil, invalidPayment("amount must be greater than 0")
	}
	if strings.TrimSpace(in.Method) == "" {
		return nil, invalidPayment("method is required")
	}
	if in.InstallmentID != nil && in.MonthlyFeeID != nil {
		return nil, invalidPayment("a payment settles at most one obligation")
	}
	info, err := resolveActive(ctx, l.dir, enrollmentID)
	if err != nil {
		return nil, err
	}
	amount := in.Amount.Round(centPlaces)
	at := l.cfg.now()
	if in.RecordedAt != nil {
		at = *in.RecordedAt
	}

	var payment *models.FeePayment
	err = l.cfg.runInTx(ctx, l.db, func(tx *gorm.DB) error {
		plan, err := lockPlanByEnrollment(tx, enrollmentID)
		if err != nil {
			return err
		}
		if err := ensureWithinBalance(plan, amount); err != nil {
			return err
		}

		var kind *obligationKind
		var target *obligationRecord
		switch {
		case in.InstallmentID != nil:
			kind = &installmentKind
			target, err = loadObligation(tx, installmentKind, *in.InstallmentID)
		case in.MonthlyFeeID != nil:
			kind = &monthlyFeeKind
			target, err = loadObligation(tx, monthlyFeeKind, *in.MonthlyFeeID)
		}
		if err != nil {
			return err
		}
		if target != nil {
			if target.FeePlanID != plan.ID {
				return notFound(kind.what)
			}
			if target.Status == models.ObligationPaid {
				return invalidPayment("%s is already paid", kind.what)
			}
			if !target.Amount.Equal(amount) {
				return invalidPayment("amount %s does not match %s amount %s", amount.StringFixed(centPlaces), kind.what, target.Amount.StringFixed(centPlaces))
			}
		}

		payment, err = l.newPayment(tx, plan, amount, in.Method, at, actor)
		if err != nil {
			return err
		}
		payment.Reference = in.Reference
		payment.Notes = in.Notes
		if target != nil {
			kind.link(payment, target.ID)
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		if target != nil {
			if err := settleObligation(tx, *kind, target.ID, payment.ID, at); err != nil {
				return err
			}
		}
		return applySettlement(tx, plan, amount)
	})
	if err != nil {
		return nil, err
	}
	l.notifyPayment(ctx, info, payment)
	return payment, nil
}

// UpdatePayment edits a payment and moves paid_to_date by the amount delta.
// Payments that settle an obligation keep their amount.
func (l *PaymentLedger) UpdatePayment(ctx context.Context, paymentID uuid.UUID, in UpdatePaymentInput) (*models.FeePayment, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalidPayment("amount must be greater than 0")
	}

	var payment models.FeePayment
	err := l.cfg.runInTx(ctx, l.db, func(tx *gorm.DB) error {
		plan, err := l.lockPaymentPlan(tx, paymentID, &payment)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		var delta decimal.Decimal
		if in.Amount != nil {
			amount := in.Amount.Round(centPlaces)
			if !amount.Equal(payment.Amount) {
				if payment.SettlesObligation() {
					return invalidPayment("the amount of a payment that settles an obligation cannot change; unmark the obligation instead")
				}
				delta = amount.Sub(payment.Amount)
				if delta.IsPositive() {
					if err := ensureWithinBalance(plan, delta); err != nil {
						return err
					}
				}
				changes["amount"] = amount
			}
		}
		if in.Method != nil {
			changes["method"] = *in.Method
		}
		if in.Reference != nil {
			changes["reference"] = *in.Reference
		}
		if in.Notes != nil {
			changes["notes"] = *in.Notes
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&payment).Updates(changes).Error; err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		return applySettlement(tx, plan, delta)
	})
	if err != nil {
		return nil, err
	}
	var updated models.FeePayment
	if err := takeOrNotFound(l.db.WithContext(ctx), &updated, "payment", "id = ?", paymentID); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePayment removes a payment, subtracting its amount from paid_to_date
// (floored at zero). An obligation the payment settled goes back to pending.
func (l *PaymentLedger) DeletePayment(ctx context.Context, paymentID uuid.UUID) error {
	return l.cfg.runInTx(ctx, l.db, func(tx *gorm.DB) error {
		var payment models.FeePayment
		plan, err := l.lockPaymentPlan(tx, paymentID, &payment)
		if err != nil {
			return err
		}
		if err := tx.Delete(&payment).Error; err != nil {
			return err
		}
		if payment.InstallmentID != nil {
			if err := releaseObligation(tx, installmentKind, *payment.InstallmentID); err != nil {
				return err
			}
		}
		if payment.MonthlyFeeID != nil {
			if err := releaseObligation(tx, monthlyFeeKind, *payment.MonthlyFeeID); err != nil {
				return err
			}
		}
		return applySettlement(tx, plan, payment.Amount.Neg())
	})
}

// lockPaymentPlan locks the plan a payment belongs to and loads the payment
// again under that lock.
func (l *PaymentLedger) lockPaymentPlan(tx *gorm.DB, paymentID uuid.UUID, payment *models.FeePayment) (*models.FeePlan, error) {
	if err := takeOrNotFound(tx, payment, "payment", "id = ?", paymentID); err != nil {
		return nil, err
	}
	plan, err := lockPlanByID(tx, payment.FeePlanID)
	if err != nil {
		return nil, err
	}
	*payment = models.FeePayment{}
	if err := takeOrNotFound(tx, payment, "payment", "id = ?", paymentID); err != nil {
		return nil, err
	}
	return plan, nil
}

// MarkInstallment flips an installment between pending and paid. Marking it
// paid records an implicit payment for its amount; marking it pending again
// removes that payment. Setting the current status is a no-op.
func (l *PaymentLedger) MarkInstallment(ctx context.Context, installmentID uuid.UUID, status models.ObligationStatus, paidDate *time.Time, actor uuid.UUID) (*models.Installment, error) {
	if err := l.markObligation(ctx, installmentKind, installmentID, status, paidDate, actor); err != nil {
		return nil, err
	}
	var inst models.Installment
	if err := takeOrNotFound(l.db.WithContext(ctx), &inst, "installment", "id = ?", installmentID); err != nil {
		return nil, err
	}
	return &inst, nil
}

// MarkMonthlyFee is MarkInstallment for monthly fees.
func (l *PaymentLedger) MarkMonthlyFee(ctx context.Context, monthlyFeeID uuid.UUID, status models.ObligationStatus, paidDate *time.Time, actor uuid.UUID) (*models.MonthlyFee, error) {
	if err := l.markObligation(ctx, monthlyFeeKind, monthlyFeeID, status, paidDate, actor); err != nil {
		return nil, err
	}
	var fee models.MonthlyFee
	if err := takeOrNotFound(l.db.WithContext(ctx), &fee, "monthly fee", "id = ?", monthlyFeeID); err != nil {
		return nil, err
	}
	return &fee, nil
}

func (l *PaymentLedger) markObligation(ctx context.Context, kind obligationKind, id uuid.UUID, status models.ObligationStatus, paidDate *time.Time, actor uuid.UUID) error {
	if status != models.ObligationPaid && status != models.ObligationPending {
		return invalidPayment("status must be %q or %q", models.ObligationPending, models.ObligationPaid)
	}

	var created *models.FeePayment
	var enrollmentID uuid.UUID
	err := l.cfg.runInTx(ctx, l.db, func(tx *gorm.DB) error {
		rec, err := loadObligation(tx, kind, id)
		if err != nil {
			return err
		}
		plan, err := lockPlanByID(tx, rec.FeePlanID)
		if err != nil {
			return err
		}
		if rec, err = loadObligation(tx, kind, id); err != nil {
			return err
		}
		enrollmentID = plan.EnrollmentID
		if rec.Status == status {
			return nil
		}

		if status == models.ObligationPaid {
			if err := ensureWithinBalance(plan, rec.Amount); err != nil {
				return err
			}
			at := l.cfg.now()
			if paidDate != nil {
				at = *paidDate
			}
			payment, err := l.newPayment(tx, plan, rec.Amount, kind.method, at, actor)
			if err != nil {
				return err
			}
			kind.link(payment, rec.ID)
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
			if err := settleObligation(tx, kind, rec.ID, payment.ID, at); err != nil {
				return err
			}
			created = payment
			return applySettlement(tx, plan, rec.Amount)
		}

		amount := rec.Amount
		if rec.PaymentID != nil {
			var linked models.FeePayment
			res := tx.Where("id = ?", *rec.PaymentID).Limit(1).Find(&linked)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				amount = linked.Amount
				if err := tx.Delete(&linked).Error; err != nil {
					return err
				}
			}
		}
		if err := releaseObligation(tx, kind, rec.ID); err != nil {
			return err
		}
		return applySettlement(tx, plan, amount.Neg())
	})
	if err != nil {
		return err
	}
	if created != nil {
		if info, err := l.dir.Resolve(ctx, enrollmentID); err == nil {
			l.notifyPayment(ctx, info, created)
		}
	}
	return nil
}

// AttachReceipt stores the URL of an uploaded receipt image on a payment.
func (l *PaymentLedger) AttachReceipt(ctx context.Context, paymentID uuid.UUID, url string) (*models.FeePayment, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidPayment("receipt_url is required")
	}
	db := l.db.WithContext(ctx)
	var payment models.FeePayment
	if err := takeOrNotFound(db, &payment, "payment", "id = ?", paymentID); err != nil {
		return nil, err
	}
	if err := db.Model(&payment).Update("receipt_url", url).Error; err != nil {
		return nil, err
	}
	payment.ReceiptURL = &url
	return &payment, nil
}

// ListPayments returns the payments of an enrollment's plan, oldest first.
func (l *PaymentLedger) ListPayments(ctx context.Context, enrollmentID uuid.UUID) ([]models.FeePayment, error) {
	db := l.db.WithContext(ctx)
	var plan models.FeePlan
	if err := takeOrNotFound(db, &plan, "fee plan", "enrollment_id = ?", enrollmentID); err != nil {
		return nil, err
	}
	var payments []models.FeePayment
	if err := db.Where("fee_plan_id = ?", plan.ID).Order("recorded_at ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// EnrollmentOfPayment, EnrollmentOfInstallment and EnrollmentOfMonthlyFee let
// the HTTP layer check ownership before calling a ledger operation.
func (l *PaymentLedger) EnrollmentOfPayment(ctx context.Context, paymentID uuid.UUID) (uuid.UUID, error) {
	return l.enrollmentOf(ctx, "fee_payments", "payment", paymentID)
}

func (l *PaymentLedger) EnrollmentOfInstallment(ctx context.Context, installmentID uuid.UUID) (uuid.UUID, error) {
	return l.enrollmentOf(ctx, "installments", "installment", installmentID)
}

func (l *PaymentLedger) EnrollmentOfMonthlyFee(ctx context.Context, monthlyFeeID uuid.UUID) (uuid.UUID, error) {
	return l.enrollmentOf(ctx, "monthly_fees", "monthly fee", monthlyFeeID)
}

func (l *PaymentLedger) enrollmentOf(ctx context.Context, table, what string, id uuid.UUID) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.db.WithContext(ctx).Table(table).
		Joins(fmt.Sprintf("JOIN fee_plans ON fee_plans.id = %s.fee_plan_id", table)).
		Where(table+".id = ?", id).
		Limit(1).
		Pluck("fee_plans.enrollment_id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, notFound(what)
	}
	return ids[0], nil
}

func (l *PaymentLedger) notifyPayment(ctx context.Context, info EnrollmentInfo, p *models.FeePayment) {
	l.notifier.Notify(ctx, Notification{
		UserID:  info.StudentID,
		Type:    NotificationPaymentRecorded,
		Subject: "Payment received",
		Body: fmt.Sprintf("We recorded a payment of %s %s for %s. Receipt %s.",
			p.Amount.StringFixed(centPlaces), info.Currency, info.CourseTitle, p.ReceiptNumber),
		Data: map[string]any{
			"enrollment_id":  info.EnrollmentID,
			"payment_id":     p.ID,
			"receipt_number": p.ReceiptNumber,
		},
	})
}

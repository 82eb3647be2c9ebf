package services

import (
	"sort"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// planTotal is what the plan expects to collect: the header total for complete
// plans, the sum of issued monthly fees for monthly plans.
func planTotal(tx *gorm.DB, plan *models.FeePlan) (decimal.Decimal, error) {
	if plan.FeeType == models.FeeTypeComplete {
		return plan.TotalAmount, nil
	}
	var fees []models.MonthlyFee
	if err := tx.Select("amount").Where("fee_plan_id = ?", plan.ID).Find(&fees).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, f := range fees {
		total = total.Add(f.Amount)
	}
	return total, nil
}

// applySettlement is the only writer of paid_to_date. It moves the running
// total by delta, floors it at zero and stores the re-derived status. The
// caller must hold the plan row lock.
func applySettlement(tx *gorm.DB, plan *models.FeePlan, delta decimal.Decimal) error {
	paid := plan.PaidToDate.Add(delta)
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	total, err := planTotal(tx, plan)
	if err != nil {
		return err
	}
	plan.PaidToDate = paid
	plan.Status = DeriveStatus(total, paid)
	return tx.Model(plan).Updates(map[string]any{
		"paid_to_date": plan.PaidToDate,
		"status":       plan.Status,
	}).Error
}

func ensureWithinBalance(plan *models.FeePlan, amount decimal.Decimal) error {
	if plan.FeeType != models.FeeTypeComplete {
		return nil
	}
	outstanding := plan.TotalAmount.Sub(plan.PaidToDate)
	if amount.GreaterThan(outstanding) {
		return invalidPayment("amount %s exceeds outstanding balance %s", amount.StringFixed(centPlaces), outstanding.StringFixed(centPlaces))
	}
	return nil
}

type obligation struct {
	id      uuid.UUID
	amount  decimal.Decimal
	due     time.Time
	settled bool
}

type evaluation struct {
	total   decimal.Decimal
	balance decimal.Decimal
	status  models.PaymentStatus
	nextDue *time.Time
	overdue map[uuid.UUID]bool
	owed    map[uuid.UUID]decimal.Decimal
}

// evaluate derives the read-side figures of a plan. Payments not tied to an
// obligation are allocated to the unsettled obligations in due-date order, so a
// free-form payment covering the first installment keeps it from showing as
// overdue.
func evaluate(plan *models.FeePlan, obligations []obligation, now time.Time) evaluation {
	sorted := make([]obligation, len(obligations))
	copy(sorted, obligations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].due.Before(sorted[j].due) })

	ev := evaluation{overdue: make(map[uuid.UUID]bool), owed: make(map[uuid.UUID]decimal.Decimal)}
	settled := decimal.Zero
	if plan.FeeType == models.FeeTypeComplete {
		ev.total = plan.TotalAmount
	} else {
		ev.total = decimal.Zero
		for _, o := range sorted {
			ev.total = ev.total.Add(o.amount)
		}
	}
	for _, o := range sorted {
		if o.settled {
			settled = settled.Add(o.amount)
		}
	}

	free := plan.PaidToDate.Sub(settled)
	if free.IsNegative() {
		free = decimal.Zero
	}
	today := dateOnly(now)
	for _, o := range sorted {
		if o.settled {
			continue
		}
		if free.GreaterThanOrEqual(o.amount) {
			free = free.Sub(o.amount)
			continue
		}
		ev.owed[o.id] = o.amount.Sub(free)
		free = decimal.Zero
		if ev.nextDue == nil {
			due := o.due
			ev.nextDue = &due
		}
		if dateOnly(o.due.In(now.Location())).Before(today) {
			ev.overdue[o.id] = true
		}
	}

	ev.balance = ev.total.Sub(plan.PaidToDate)
	if ev.balance.IsNegative() {
		ev.balance = decimal.Zero
	}
	due := ev.nextDue
	if len(sorted) == 0 {
		due = plan.DueDate
	}
	ev.status = OverlayOverdue(DeriveStatus(ev.total, plan.PaidToDate), due, now)
	return ev
}

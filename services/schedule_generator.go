package services

import (
	"fmt"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/shopspring/decimal"
)

// ScheduleEntry is one generated obligation of a complete fee plan.
type ScheduleEntry struct {
	SequenceNumber int             `json:"sequence_number"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        time.Time       `json:"due_date"`
}

const centPlaces = 2

// GenerateSchedule produces the ordered installments of a plan. Monthly plans
// get no up-front schedule. Complete plans are split into count equal shares
// truncated to the cent, with the remainder carried by the last installment,
// unless custom is given, in which case custom is validated and returned.
func GenerateSchedule(feeType models.FeeType, total decimal.Decimal, count int, dueDate time.Time, custom []ScheduleEntry) ([]ScheduleEntry, error) {
	switch feeType {
	case models.FeeTypeMonthly:
		return nil, nil
	case models.FeeTypeComplete:
	default:
		return nil, invalidPlan("unknown fee_type %q", feeType)
	}

	if !total.IsPositive() {
		return nil, invalidPlan("total_amount must be greater than 0")
	}
	if len(custom) > 0 {
		return validateCustomSchedule(total, custom)
	}
	if count < 1 {
		return nil, invalidPlan("installments_count must be at least 1")
	}
	if dueDate.IsZero() {
		return nil, invalidPlan("due_date is required for complete plans")
	}

	share := total.Div(decimal.NewFromInt(int64(count))).Truncate(centPlaces)
	if !share.IsPositive() {
		return nil, invalidPlan("installments_count too large for total_amount")
	}
	entries := make([]ScheduleEntry, count)
	allocated := decimal.Zero
	for i := 0; i < count; i++ {
		amount := share
		if i == count-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		entries[i] = ScheduleEntry{
			SequenceNumber: i + 1,
			Amount:         amount,
			DueDate:        addMonthsClamped(dueDate, i),
		}
	}
	return entries, nil
}

func validateCustomSchedule(total decimal.Decimal, custom []ScheduleEntry) ([]ScheduleEntry, error) {
	sum := decimal.Zero
	out := make([]ScheduleEntry, len(custom))
	for i, e := range custom {
		if e.SequenceNumber != i+1 {
			return nil, invalidPlan("custom schedule sequence numbers must run 1..%d in order, got %d at position %d", len(custom), e.SequenceNumber, i+1)
		}
		if !e.Amount.IsPositive() {
			return nil, invalidPlan("installment %d amount must be greater than 0", e.SequenceNumber)
		}
		if e.DueDate.IsZero() {
			return nil, invalidPlan("installment %d is missing due_date", e.SequenceNumber)
		}
		sum = sum.Add(e.Amount)
		out[i] = e
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("%w (schedule sums to %s, total is %s)", ErrScheduleMismatch, sum.StringFixed(centPlaces), total.StringFixed(centPlaces))
	}
	return out, nil
}

// addMonthsClamped moves t forward by n calendar months, keeping the day of
// month but clamping it to the last day of shorter months (Jan 31 -> Feb 28).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

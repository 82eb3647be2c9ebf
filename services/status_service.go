package services

import (
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/shopspring/decimal"
)

// DeriveStatus maps a plan total and the amount paid so far onto
// unpaid < partial < paid. It never returns overdue; see OverlayOverdue.
func DeriveStatus(total, paid decimal.Decimal) models.PaymentStatus {
	switch {
	case paid.Sign() <= 0:
		return models.PaymentStatusUnpaid
	case paid.LessThan(total):
		return models.PaymentStatusPartial
	default:
		return models.PaymentStatusPaid
	}
}

// OverlayOverdue turns a not-yet-paid status into overdue once due has passed.
// Comparison is by calendar day in now's location.
func OverlayOverdue(status models.PaymentStatus, due *time.Time, now time.Time) models.PaymentStatus {
	if status == models.PaymentStatusPaid || due == nil || due.IsZero() {
		return status
	}
	if dateOnly(due.In(now.Location())).Before(dateOnly(now)) {
		return models.PaymentStatusOverdue
	}
	return status
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

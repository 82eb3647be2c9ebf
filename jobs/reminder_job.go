package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/tutor_fees/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverdueSource lists unsettled obligations past their due date.
type OverdueSource interface {
	OverdueObligations(ctx context.Context) ([]services.OverdueObligation, error)
}

// FeeReminder sends one overdue notice per enrollment with overdue
// installments or monthly fees.
type FeeReminder struct {
	Source   OverdueSource
	Notifier services.Notifier
	Timeout  time.Duration
}

func (r *FeeReminder) SendOverdueReminders() {
	log.Println("Running job: SendOverdueReminders...")

	timeout := r.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sent, err := r.run(ctx)
	if err != nil {
		log.Printf("Error checking for overdue fees: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("Sent %d overdue fee reminder(s)", sent)
	}
}

type overdueGroup struct {
	info     services.EnrollmentInfo
	total    decimal.Decimal
	count    int
	earliest time.Time
}

func (r *FeeReminder) run(ctx context.Context) (int, error) {
	overdue, err := r.Source.OverdueObligations(ctx)
	if err != nil {
		return 0, err
	}

	var order []uuid.UUID
	groups := make(map[uuid.UUID]*overdueGroup)
	for _, o := range overdue {
		g, ok := groups[o.Enrollment.EnrollmentID]
		if !ok {
			g = &overdueGroup{info: o.Enrollment, earliest: o.DueDate}
			groups[o.Enrollment.EnrollmentID] = g
			order = append(order, o.Enrollment.EnrollmentID)
		}
		g.total = g.total.Add(o.Amount)
		g.count++
		if o.DueDate.Before(g.earliest) {
			g.earliest = o.DueDate
		}
	}

	for _, id := range order {
		g := groups[id]
		r.Notifier.Notify(ctx, services.Notification{
			UserID:  g.info.StudentID,
			Type:    services.NotificationFeeOverdue,
			Subject: "Fee payment overdue: " + g.info.CourseTitle,
			Body: fmt.Sprintf("You have %d overdue payment(s) for %s totalling %s %s, the earliest due on %s.",
				g.count, g.info.CourseTitle, g.total.StringFixed(2), g.info.Currency, g.earliest.Format("January 2, 2006")),
			Data: map[string]any{
				"enrollment_id": g.info.EnrollmentID,
				"overdue_count": g.count,
				"overdue_total": g.total.StringFixed(2),
			},
		})
	}
	return len(order), nil
}

package services

import (
	"context"

	"github.com/google/uuid"
)

// Notification is a fire-and-forget message for one user.
type Notification struct {
	UserID  uuid.UUID      `json:"user_id"`
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
}

const (
	NotificationFeePlanSet      = "fee_plan_set"
	NotificationPaymentRecorded = "payment_recorded"
	NotificationFeeOverdue      = "fee_overdue"
)

// Notifier delivers notifications. Implementations must not block the caller
// on delivery and must not report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}

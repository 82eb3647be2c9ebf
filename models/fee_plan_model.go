package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FeeType string

const (
	FeeTypeMonthly  FeeType = "monthly"
	FeeTypeComplete FeeType = "complete"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// FeePlan is the billing header of an enrollment. There is at most one per
// enrollment; obligations and payments hang off it by FeePlanID.
type FeePlan struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	EnrollmentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"enrollment_id"`
	FeeType           FeeType         `gorm:"size:20;not null" json:"fee_type"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	MonthlyAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"monthly_amount"`
	InstallmentsCount int             `gorm:"not null;default:0" json:"installments_count"`
	DueDate           *time.Time      `json:"due_date"`
	PaidToDate        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_to_date"`
	Currency          string          `gorm:"size:3" json:"currency"`
	Status            PaymentStatus   `gorm:"size:20;not null;default:'unpaid'" json:"status"`
	SetBy             uuid.UUID       `gorm:"type:uuid" json:"set_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *FeePlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = NewID()
	}
	return nil
}

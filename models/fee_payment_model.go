package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodCard         = "card"
	PaymentMethodOther        = "other"

	// Recorded when an obligation is marked paid without an explicit payment.
	PaymentMethodInstallment = "installment"
	PaymentMethodMonthlyFee  = "monthly_fee"
)

// FeePayment is a receipt recorded against an enrollment's fee plan. A payment
// that settles a specific obligation carries its InstallmentID or MonthlyFeeID.
type FeePayment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	FeePlanID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"fee_plan_id"`
	EnrollmentID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method        string          `gorm:"size:30;not null" json:"method"`
	Reference     *string         `gorm:"size:255" json:"reference"`
	Notes         *string         `gorm:"type:text" json:"notes"`
	ReceiptNumber string          `gorm:"size:20;not null;uniqueIndex" json:"receipt_number"`
	ReceiptURL    *string         `gorm:"size:255" json:"receipt_url"`
	InstallmentID *uuid.UUID      `gorm:"type:uuid;index" json:"installment_id"`
	MonthlyFeeID  *uuid.UUID      `gorm:"type:uuid;index" json:"monthly_fee_id"`
	RecordedAt    time.Time       `gorm:"not null" json:"recorded_at"`
	RecordedBy    uuid.UUID       `gorm:"type:uuid" json:"recorded_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FeePayment) TableName() string {
	return "fee_payments"
}

func (p *FeePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = NewID()
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now()
	}
	return nil
}

// SettlesObligation reports whether the payment was recorded for a specific
// installment or monthly fee.
func (p *FeePayment) SettlesObligation() bool {
	return p.InstallmentID != nil || p.MonthlyFeeID != nil
}

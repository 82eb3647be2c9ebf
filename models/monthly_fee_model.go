package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MonthlyFee struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	FeePlanID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_monthly_fee_period,priority:1" json:"fee_plan_id"`
	Month     int              `gorm:"not null;uniqueIndex:idx_monthly_fee_period,priority:2" json:"month"`
	Year      int              `gorm:"not null;uniqueIndex:idx_monthly_fee_period,priority:3" json:"year"`
	Amount    decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	DueDate   time.Time        `gorm:"not null" json:"due_date"`
	Status    ObligationStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	PaidDate  *time.Time       `json:"paid_date"`
	PaymentID *uuid.UUID       `gorm:"type:uuid" json:"payment_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *MonthlyFee) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = NewID()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ObligationStatus string

const (
	ObligationPending ObligationStatus = "pending"
	ObligationPaid    ObligationStatus = "paid"
)

type Installment struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	FeePlanID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_installment_sequence,priority:1" json:"fee_plan_id"`
	SequenceNumber int              `gorm:"not null;uniqueIndex:idx_installment_sequence,priority:2" json:"sequence_number"`
	Amount         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	DueDate        time.Time        `gorm:"not null" json:"due_date"`
	Status         ObligationStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	PaidDate       *time.Time       `json:"paid_date"`
	PaymentID      *uuid.UUID       `gorm:"type:uuid" json:"payment_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = NewID()
	}
	return nil
}

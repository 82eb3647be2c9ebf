package utils

import (
	"math/rand"
	"time"

	"gorm.io/gorm"
)

const receiptCodeLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateUniqueReceiptNumber returns an RC-XXXXXXXX code that is not yet used
// by any fee payment. Pass the transaction the payment will be created in.
func GenerateUniqueReceiptNumber(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		b := make([]byte, receiptCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := "RC-" + string(b)

		var count int64
		if err := tx.Table("fee_payments").Where("receipt_number = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
}

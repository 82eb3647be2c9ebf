package utils

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGenerateUniqueReceiptNumber(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE fee_payments (id TEXT, receipt_number TEXT)").Error)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateUniqueReceiptNumber(db)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "RC-"))
		assert.Len(t, code, 3+receiptCodeLength)
		assert.False(t, seen[code], "duplicate receipt number %s", code)
		seen[code] = true
		require.NoError(t, db.Exec("INSERT INTO fee_payments (id, receipt_number) VALUES (?, ?)", code, code).Error)
	}
}

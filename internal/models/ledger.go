package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a finalized transaction. Positive amounts are expenses,
// negative amounts are income; the sign always agrees with the category's type.
type LedgerEntry struct {
	ID              int64           `json:"id" db:"id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Description     string          `json:"description" db:"description"`
	Notes           string          `json:"notes" db:"notes"`
	CategoryID      int64           `json:"categoryId" db:"category_id"`
	TransactionDate time.Time       `json:"transactionDate" db:"transaction_date"`
	CreatedBy       int64           `json:"createdBy" db:"created_by"`
	AccountID       int64           `json:"accountId" db:"account_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

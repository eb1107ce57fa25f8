package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingStatus is the review state of a staged transaction.
type PendingStatus string

const (
	PendingReview      PendingStatus = "pending"
	PotentialDuplicate PendingStatus = "potential_duplicate"
	PendingApproved    PendingStatus = "approved"
	PendingRejected    PendingStatus = "rejected"
)

func (s PendingStatus) Valid() bool {
	switch s {
	case PendingReview, PotentialDuplicate, PendingApproved, PendingRejected:
		return true
	}
	return false
}

// Reviewable reports whether a row in this status may still be approved or
// rejected. Approved and rejected are terminal.
func (s PendingStatus) Reviewable() bool {
	return s == PendingReview || s == PotentialDuplicate
}

// PendingTransaction is one staged CSV row awaiting review. Amount uses the
// canonical sign convention: positive = expense, negative = income.
type PendingTransaction struct {
	ID               string              `json:"id" db:"id"`
	ExternalID       string              `json:"externalId" db:"external_id"`
	Amount           decimal.Decimal     `json:"amount" db:"amount"`
	Description      string              `json:"description" db:"description"`
	CounterParty     string              `json:"counterParty" db:"counter_party"`
	Reference        string              `json:"reference" db:"reference"`
	TransactionType  string              `json:"transactionType" db:"txn_type"`
	Balance          decimal.NullDecimal `json:"balance" db:"balance"`
	SpendingCategory string              `json:"spendingCategory" db:"spending_category"`
	Notes            string              `json:"notes" db:"notes"`
	TransactionDate  time.Time           `json:"transactionDate" db:"transaction_date"`
	Status           PendingStatus       `json:"status" db:"status"`
	CategoryID       *int64              `json:"categoryId,omitempty" db:"category_id"`
	RawLine          string              `json:"-" db:"raw_line"`
	BatchID          string              `json:"batchId" db:"batch_id"`
	AccountID        int64               `json:"accountId" db:"account_id"`
	UserID           int64               `json:"userId" db:"user_id"`
	CreatedAt        time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time           `json:"updatedAt" db:"updated_at"`
}

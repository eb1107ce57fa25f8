package models

import (
	"time"
)

// BatchStatus is the lifecycle state of a CSV import batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

func (s BatchStatus) Valid() bool {
	switch s {
	case BatchProcessing, BatchCompleted, BatchFailed:
		return true
	}
	return false
}

// ImportBatch tracks one CSV upload and its aggregate counts. The approved and
// rejected counters are a derived view over the batch's pending transactions and
// are recomputed from the rows after every review operation, never incremented
// in place.
type ImportBatch struct {
	ID                    string      `json:"id" db:"id"`
	FileName              string      `json:"fileName" db:"file_name"`
	TotalTransactions     int         `json:"totalTransactions" db:"total_transactions"`
	ProcessedTransactions int         `json:"processedTransactions" db:"processed_transactions"`
	ApprovedTransactions  int         `json:"approvedTransactions" db:"approved_transactions"`
	RejectedTransactions  int         `json:"rejectedTransactions" db:"rejected_transactions"`
	DuplicateTransactions int         `json:"duplicateTransactions" db:"duplicate_transactions"`
	Status                BatchStatus `json:"status" db:"status"`
	AccountID             int64       `json:"accountId" db:"account_id"`
	UserID                int64       `json:"userId" db:"user_id"`
	CreatedAt             time.Time   `json:"createdAt" db:"created_at"`
	CompletedAt           *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pocketledger/backend/internal/models"
)

// BatchTracker owns the lifecycle of import batch records. Approved and
// rejected counters are always re-derived from the batch's pending rows rather
// than incremented in place, so partial failures cannot leave them drifted.
type BatchTracker struct {
	db *sql.DB
}

func NewBatchTracker(db *sql.DB) *BatchTracker {
	return &BatchTracker{db: db}
}

// Begin creates a batch in processing status and returns it.
func (bt *BatchTracker) Begin(ctx context.Context, fileName string, accountID, userID int64) (*models.ImportBatch, error) {
	batch := &models.ImportBatch{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Status:    models.BatchProcessing,
		AccountID: accountID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := bt.db.ExecContext(ctx, `
		INSERT INTO import_batches
		(id, file_name, total_transactions, processed_transactions, approved_transactions, rejected_transactions, duplicate_transactions, status, account_id, user_id, created_at)
		VALUES ($1, $2, 0, 0, 0, 0, 0, $3, $4, $5, $6)
	`, batch.ID, batch.FileName, batch.Status, batch.AccountID, batch.UserID, batch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating import batch: %w", err)
	}
	return batch, nil
}

// RecordParsed finishes the parse phase: total, processed and duplicate counts
// are set and the batch flips to completed.
func (bt *BatchTracker) RecordParsed(ctx context.Context, batchID string, totalRows, duplicateRows int) error {
	_, err := bt.db.ExecContext(ctx, `
		UPDATE import_batches
		SET total_transactions = $1, processed_transactions = $1, duplicate_transactions = $2, status = $3, completed_at = NOW()
		WHERE id = $4
	`, totalRows, duplicateRows, models.BatchCompleted, batchID)
	if err != nil {
		return fmt.Errorf("recording parse results: %w", err)
	}
	return nil
}

// MarkFailed flags a batch whose import aborted. The record is kept.
func (bt *BatchTracker) MarkFailed(ctx context.Context, batchID string) error {
	_, err := bt.db.ExecContext(ctx, `
		UPDATE import_batches SET status = $1, completed_at = NOW() WHERE id = $2
	`, models.BatchFailed, batchID)
	return err
}

// RecomputeApprovalCounts overwrites a batch's approved and rejected counters
// with counts derived from its pending rows' current statuses.
func (bt *BatchTracker) RecomputeApprovalCounts(ctx context.Context, batchID string) error {
	_, err := bt.db.ExecContext(ctx, `
		UPDATE import_batches SET
			approved_transactions = (SELECT COUNT(*) FROM pending_transactions WHERE batch_id = $1 AND status = $2),
			rejected_transactions = (SELECT COUNT(*) FROM pending_transactions WHERE batch_id = $1 AND status = $3)
		WHERE id = $1
	`, batchID, models.PendingApproved, models.PendingRejected)
	if err != nil {
		return fmt.Errorf("recomputing batch counts: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/backend/internal/models"
)

// ErrDefaultCategoryRequired is returned by BulkApprove when no default
// category is supplied. There is deliberately no magic fallback id.
var ErrDefaultCategoryRequired = errors.New("default category is required for bulk approve")

// SplitInput is one leg of a split approval.
type SplitInput struct {
	CategoryID int64           `json:"categoryId" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

// ApprovalService turns staged rows into finalized ledger entries. Rows in
// pending or potential_duplicate status are eligible for every operation;
// approved and rejected are terminal. Each row transition is a conditional
// write, so two concurrent reviews of the same row resolve to exactly one
// winner and one "already processed" signal.
type ApprovalService struct {
	db      *sql.DB
	tracker *BatchTracker
}

func NewApprovalService(db *sql.DB) *ApprovalService {
	return &ApprovalService{
		db:      db,
		tracker: NewBatchTracker(db),
	}
}

// Approve finalizes one staged row into a single ledger entry carrying the
// row's canonical amount. Returns false when the row does not exist, belongs
// to another account, or was already processed.
func (s *ApprovalService) Approve(ctx context.Context, accountID, userID int64, rowID string, categoryID int64, notes, description string) (bool, error) {
	batchID, ok, err := s.approveRow(ctx, accountID, userID, rowID, categoryID, notes, description)
	if err != nil || !ok {
		return false, err
	}
	if err := s.tracker.RecomputeApprovalCounts(ctx, batchID); err != nil {
		return true, err
	}
	return true, nil
}

// approveRow performs the row transition and ledger insert in one transaction
// and reports the owning batch. A zero-row update means not-found or already
// processed, not an error.
func (s *ApprovalService) approveRow(ctx context.Context, accountID, userID int64, rowID string, categoryID int64, notes, description string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("approving row: %w", err)
	}
	defer tx.Rollback()

	var (
		amount   decimal.Decimal
		rowDesc  string
		rowNotes string
		date     time.Time
		batchID  string
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE pending_transactions
		SET status = $1, category_id = $2, updated_at = NOW()
		WHERE id = $3 AND account_id = $4 AND status IN ($5, $6)
		RETURNING amount, description, notes, transaction_date, batch_id
	`, models.PendingApproved, categoryID, rowID, accountID, models.PendingReview, models.PotentialDuplicate).
		Scan(&amount, &rowDesc, &rowNotes, &date, &batchID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("approving row: %w", err)
	}

	if description != "" {
		rowDesc = description
	}
	if notes != "" {
		rowNotes = notes
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (amount, description, notes, category_id, transaction_date, created_by, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, amount, rowDesc, rowNotes, categoryID, date, userID, accountID)
	if err != nil {
		return "", false, fmt.Errorf("creating ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("approving row: %w", err)
	}
	return batchID, true, nil
}

// Reject marks one staged row rejected. No ledger entry is created.
func (s *ApprovalService) Reject(ctx context.Context, accountID int64, rowID string) (bool, error) {
	batchID, ok, err := s.rejectRow(ctx, accountID, rowID)
	if err != nil || !ok {
		return false, err
	}
	if err := s.tracker.RecomputeApprovalCounts(ctx, batchID); err != nil {
		return true, err
	}
	return true, nil
}

func (s *ApprovalService) rejectRow(ctx context.Context, accountID int64, rowID string) (string, bool, error) {
	var batchID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE pending_transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND account_id = $3 AND status IN ($4, $5)
		RETURNING batch_id
	`, models.PendingRejected, rowID, accountID, models.PendingReview, models.PotentialDuplicate).
		Scan(&batchID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rejecting row: %w", err)
	}
	return batchID, true, nil
}

// ApproveSplit finalizes one staged row into several ledger entries, one per
// split, with the sign of each leg resolved against its category's type. The
// row's own category is left unset since no single category applies. If any
// split's category cannot be resolved the whole operation rolls back and no
// ledger entries are committed.
func (s *ApprovalService) ApproveSplit(ctx context.Context, accountID, userID int64, rowID string, splits []SplitInput) (bool, error) {
	if len(splits) < 2 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("approving split: %w", err)
	}
	defer tx.Rollback()

	var (
		amount   decimal.Decimal
		rowDesc  string
		rowNotes string
		date     time.Time
		batchID  string
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE pending_transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND account_id = $3 AND status IN ($4, $5)
		RETURNING amount, description, notes, transaction_date, batch_id
	`, models.PendingApproved, rowID, accountID, models.PendingReview, models.PotentialDuplicate).
		Scan(&amount, &rowDesc, &rowNotes, &date, &batchID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("approving split: %w", err)
	}

	for _, split := range splits {
		var category models.Category
		err := tx.QueryRowContext(ctx, `
			SELECT id, account_id, name, category_type FROM categories WHERE id = $1 AND account_id = $2
		`, split.CategoryID, accountID).
			Scan(&category.ID, &category.AccountID, &category.Name, &category.Type)
		if err == sql.ErrNoRows {
			log.Printf("[APPROVAL] Split aborted: category %d not found in account %d", split.CategoryID, accountID)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolving split category: %w", err)
		}

		entryAmount := resolveSplitAmount(amount, category, split.Amount)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (amount, description, notes, category_id, transaction_date, created_by, account_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, entryAmount, rowDesc, rowNotes, category.ID, date, userID, accountID)
		if err != nil {
			return false, fmt.Errorf("creating split ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("approving split: %w", err)
	}

	if err := s.tracker.RecomputeApprovalCounts(ctx, batchID); err != nil {
		return true, err
	}
	return true, nil
}

// BulkApprove approves each eligible row with the default category, silently
// skipping rows that are missing or already processed, and returns the number
// actually approved. Batch counters are recomputed once per distinct batch
// touched, after the loop, rather than once per row.
func (s *ApprovalService) BulkApprove(ctx context.Context, accountID, userID int64, rowIDs []string, defaultCategoryID int64) (int, error) {
	if defaultCategoryID <= 0 {
		return 0, ErrDefaultCategoryRequired
	}

	approved := 0
	touched := map[string]struct{}{}
	for _, rowID := range rowIDs {
		batchID, ok, err := s.approveRow(ctx, accountID, userID, rowID, defaultCategoryID, "", "")
		if err != nil {
			return approved, err
		}
		if !ok {
			continue
		}
		approved++
		touched[batchID] = struct{}{}
	}

	for batchID := range touched {
		if err := s.tracker.RecomputeApprovalCounts(ctx, batchID); err != nil {
			return approved, err
		}
	}
	return approved, nil
}

// BulkReject rejects each eligible row with the same skip-silently semantics
// as BulkApprove and returns the number actually rejected.
func (s *ApprovalService) BulkReject(ctx context.Context, accountID int64, rowIDs []string) (int, error) {
	rejected := 0
	touched := map[string]struct{}{}
	for _, rowID := range rowIDs {
		batchID, ok, err := s.rejectRow(ctx, accountID, rowID)
		if err != nil {
			return rejected, err
		}
		if !ok {
			continue
		}
		rejected++
		touched[batchID] = struct{}{}
	}

	for batchID := range touched {
		if err := s.tracker.RecomputeApprovalCounts(ctx, batchID); err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}

// ListPending returns one page of rows still awaiting review, newest
// transaction date first, along with the total count of reviewable rows.
func (s *ApprovalService) ListPending(ctx context.Context, accountID int64, page, pageSize int) ([]models.PendingTransaction, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_transactions WHERE account_id = $1 AND status IN ($2, $3)
	`, accountID, models.PendingReview, models.PotentialDuplicate).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting pending rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, amount, description, counter_party, reference, txn_type, balance, spending_category, notes, transaction_date, status, category_id, batch_id, account_id, user_id, created_at, updated_at
		FROM pending_transactions
		WHERE account_id = $1 AND status IN ($2, $3)
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $4 OFFSET $5
	`, accountID, models.PendingReview, models.PotentialDuplicate, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("listing pending rows: %w", err)
	}
	defer rows.Close()

	pending := []models.PendingTransaction{}
	for rows.Next() {
		var p models.PendingTransaction
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Amount, &p.Description, &p.CounterParty,
			&p.Reference, &p.TransactionType, &p.Balance, &p.SpendingCategory, &p.Notes,
			&p.TransactionDate, &p.Status, &p.CategoryID, &p.BatchID, &p.AccountID,
			&p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning pending row: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, total, rows.Err()
}

// GetPending returns one staged row, or nil when it does not exist in the
// account.
func (s *ApprovalService) GetPending(ctx context.Context, rowID string, accountID int64) (*models.PendingTransaction, error) {
	var p models.PendingTransaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, amount, description, counter_party, reference, txn_type, balance, spending_category, notes, transaction_date, status, category_id, batch_id, account_id, user_id, created_at, updated_at
		FROM pending_transactions
		WHERE id = $1 AND account_id = $2
	`, rowID, accountID).
		Scan(&p.ID, &p.ExternalID, &p.Amount, &p.Description, &p.CounterParty,
			&p.Reference, &p.TransactionType, &p.Balance, &p.SpendingCategory, &p.Notes,
			&p.TransactionDate, &p.Status, &p.CategoryID, &p.BatchID, &p.AccountID,
			&p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching pending row: %w", err)
	}
	return &p, nil
}

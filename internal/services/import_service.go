package services

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/backend/internal/models"
)

// Input validation failures that abort the whole import.
var (
	ErrNotCSV          = errors.New("file is not a CSV")
	ErrEmptyFile       = errors.New("file is empty")
	ErrMalformedHeader = errors.New("malformed header row")
)

// ImportService ingests bank-exported CSV files: it stages each parsable row
// as a pending transaction, flags likely duplicates against the finalized
// ledger and tracks the batch record across the upload.
type ImportService struct {
	db      *sql.DB
	tracker *BatchTracker
}

func NewImportService(db *sql.DB) *ImportService {
	return &ImportService{
		db:      db,
		tracker: NewBatchTracker(db),
	}
}

// ImportCSV parses one uploaded bank CSV and stages its rows for review.
// Rows with an unparsable date or amount, or with too few columns, are dropped
// and reported in the returned skip list; they never abort the batch. Input
// validation failures (wrong extension, empty file, malformed header) abort
// the import, and the batch record, if already created, is marked failed.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader, fileName string, accountID, userID int64) (*models.ImportBatch, []SkippedRow, error) {
	if !strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return nil, nil, ErrNotCSV
	}

	batch, err := s.tracker.Begin(ctx, fileName, accountID, userID)
	if err != nil {
		return nil, nil, err
	}

	rows, skipped, duplicates, err := s.parseAndStage(ctx, batch, r, accountID, userID)
	if err != nil {
		s.failBatch(batch)
		return nil, nil, err
	}

	if err := s.tracker.RecordParsed(ctx, batch.ID, len(rows), duplicates); err != nil {
		s.failBatch(batch)
		return nil, nil, err
	}

	now := time.Now().UTC()
	batch.TotalTransactions = len(rows)
	batch.ProcessedTransactions = len(rows)
	batch.DuplicateTransactions = duplicates
	batch.Status = models.BatchCompleted
	batch.CompletedAt = &now

	log.Printf("[IMPORT] Batch %s completed: %d staged, %d duplicates, %d skipped", batch.ID, len(rows), duplicates, len(skipped))
	return batch, skipped, nil
}

// parseAndStage reads the file line by line, converts parsable rows and writes
// them to the staging table in one transaction.
func (s *ImportService) parseAndStage(ctx context.Context, batch *models.ImportBatch, r io.Reader, accountID, userID int64) ([]*models.PendingTransaction, []SkippedRow, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, 0, fmt.Errorf("reading upload: %w", err)
		}
		return nil, nil, 0, ErrEmptyFile
	}
	header := splitCSVLine(scanner.Text())
	if len(header) < minImportColumns {
		return nil, nil, 0, ErrMalformedHeader
	}

	var rows []*models.PendingTransaction
	var skipped []SkippedRow
	duplicates := 0
	lineNo := 1

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields := splitCSVLine(raw)
		if len(fields) < minImportColumns {
			skipped = append(skipped, SkippedRow{Line: lineNo, Reason: fmt.Sprintf("row has %d columns, expected at least %d", len(fields), minImportColumns)})
			continue
		}

		row, err := parsePendingRow(batch.ID, lineNo, fields, raw, accountID, userID)
		if err != nil {
			skipped = append(skipped, SkippedRow{Line: lineNo, Reason: err.Error()})
			continue
		}

		// Duplicates are checked against the finalized ledger only; two
		// identical rows in the same upload do not flag each other.
		dup, err := s.isDuplicate(ctx, accountID, row.Amount, row.TransactionDate, row.CounterParty)
		if err != nil {
			return nil, nil, 0, err
		}
		if dup {
			row.Status = models.PotentialDuplicate
			duplicates++
		}

		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("reading upload: %w", err)
	}

	if err := s.stageRows(ctx, rows); err != nil {
		return nil, nil, 0, err
	}
	return rows, skipped, duplicates, nil
}

// isDuplicate reports whether a finalized ledger entry already exists with the
// exact same amount, date and counterparty in the account.
func (s *ImportService) isDuplicate(ctx context.Context, accountID int64, amount decimal.Decimal, date time.Time, counterParty string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE account_id = $1 AND amount = $2 AND transaction_date = $3 AND description = $4
		)
	`, accountID, amount, date, counterParty).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return exists, nil
}

// stageRows inserts staged rows in one transaction. The natural key
// (account_id, external_id) makes re-importing the same batch id a no-op per
// row instead of silently duplicating the staging area.
func (s *ImportService) stageRows(ctx context.Context, rows []*models.PendingTransaction) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("staging rows: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		row.ID = uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pending_transactions
			(id, external_id, amount, description, counter_party, reference, txn_type, balance, spending_category, notes, transaction_date, status, raw_line, batch_id, account_id, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
			ON CONFLICT (account_id, external_id) DO NOTHING
		`, row.ID, row.ExternalID, row.Amount, row.Description, row.CounterParty, row.Reference,
			row.TransactionType, row.Balance, row.SpendingCategory, row.Notes, row.TransactionDate,
			row.Status, row.RawLine, row.BatchID, row.AccountID, row.UserID)
		if err != nil {
			return fmt.Errorf("staging row %s: %w", row.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("staging rows: %w", err)
	}
	return nil
}

// failBatch marks the batch failed before the import error propagates. It uses
// a fresh context so a caller cancellation cannot leave the batch processing.
func (s *ImportService) failBatch(batch *models.ImportBatch) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracker.MarkFailed(ctx, batch.ID); err != nil {
		log.Printf("[IMPORT] Failed to mark batch %s as failed: %v", batch.ID, err)
	}
	batch.Status = models.BatchFailed
}

// ListImportHistory returns an account's batches, newest first.
func (s *ImportService) ListImportHistory(ctx context.Context, accountID int64) ([]models.ImportBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, total_transactions, processed_transactions, approved_transactions, rejected_transactions, duplicate_transactions, status, account_id, user_id, created_at, completed_at
		FROM import_batches
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing import history: %w", err)
	}
	defer rows.Close()

	batches := []models.ImportBatch{}
	for rows.Next() {
		var b models.ImportBatch
		if err := rows.Scan(&b.ID, &b.FileName, &b.TotalTransactions, &b.ProcessedTransactions,
			&b.ApprovedTransactions, &b.RejectedTransactions, &b.DuplicateTransactions,
			&b.Status, &b.AccountID, &b.UserID, &b.CreatedAt, &b.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning import batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

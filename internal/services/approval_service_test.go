package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pocketledger/backend/internal/models"
)

var approvalRowCols = []string{"amount", "description", "notes", "transaction_date", "batch_id"}

func pendingRowCols() []string {
	return []string{"id", "external_id", "amount", "description", "counter_party", "reference",
		"txn_type", "balance", "spending_category", "notes", "transaction_date", "status",
		"category_id", "batch_id", "account_id", "user_id", "created_at", "updated_at"}
}

func TestApprovalService_Approve(t *testing.T) {
	txnDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("approves row and writes one ledger entry", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WithArgs(models.PendingApproved, int64(4), "row-1", int64(7), models.PendingReview, models.PotentialDuplicate).
			WillReturnRows(sqlmock.NewRows(approvalRowCols).
				AddRow("25.00", "TESCO", "weekly shop", txnDate, "batch-1"))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("25.00", "TESCO", "weekly shop", int64(4), txnDate, int64(3), int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectExec("UPDATE import_batches SET approved_transactions").
			WithArgs("batch-1", models.PendingApproved, models.PendingRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := service.Approve(context.Background(), 7, 3, "row-1", 4, "", "")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("caller description and notes override the row's", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WillReturnRows(sqlmock.NewRows(approvalRowCols).
				AddRow("25.00", "TESCO", "", txnDate, "batch-1"))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("25.00", "Tesco groceries", "split with flatmate", int64(4), txnDate, int64(3), int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectExec("UPDATE import_batches SET approved_transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := service.Approve(context.Background(), 7, 3, "row-1", 4, "split with flatmate", "Tesco groceries")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already-processed row reports false without a ledger write", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		ok, err := service.Approve(context.Background(), 7, 3, "row-gone", 4, "", "")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_Reject(t *testing.T) {
	t.Run("rejects row and recomputes its batch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectQuery("UPDATE pending_transactions").
			WithArgs(models.PendingRejected, "row-1", int64(7), models.PendingReview, models.PotentialDuplicate).
			WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch-1"))
		mock.ExpectExec("UPDATE import_batches SET approved_transactions").
			WithArgs("batch-1", models.PendingApproved, models.PendingRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := service.Reject(context.Background(), 7, "row-1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown row reports false", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectQuery("UPDATE pending_transactions").
			WillReturnError(sql.ErrNoRows)

		ok, err := service.Reject(context.Background(), 7, "row-gone")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_ApproveSplit(t *testing.T) {
	txnDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("writes one entry per split with resolved signs", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WithArgs(models.PendingApproved, "row-1", int64(7), models.PendingReview, models.PotentialDuplicate).
			WillReturnRows(sqlmock.NewRows(approvalRowCols).
				AddRow("100.00", "TESCO", "", txnDate, "batch-1"))

		mock.ExpectQuery("SELECT (.+) FROM categories").
			WithArgs(int64(5), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "category_type"}).
				AddRow(5, 7, "Groceries", "expense"))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("60", "TESCO", "", int64(5), txnDate, int64(3), int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT (.+) FROM categories").
			WithArgs(int64(9), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "category_type"}).
				AddRow(9, 7, "Cashback", "income"))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("-40", "TESCO", "", int64(9), txnDate, int64(3), int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()
		mock.ExpectExec("UPDATE import_batches SET approved_transactions").
			WithArgs("batch-1", models.PendingApproved, models.PendingRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := service.ApproveSplit(context.Background(), 7, 3, "row-1", []SplitInput{
			{CategoryID: 5, Amount: decimal.NewFromInt(60)},
			{CategoryID: 9, Amount: decimal.NewFromInt(40)},
		})
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fewer than two splits never touches the store", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		ok, err := service.ApproveSplit(context.Background(), 7, 3, "row-1", []SplitInput{
			{CategoryID: 5, Amount: decimal.NewFromInt(60)},
		})
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown split category rolls the whole approval back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WillReturnRows(sqlmock.NewRows(approvalRowCols).
				AddRow("100.00", "TESCO", "", txnDate, "batch-1"))
		mock.ExpectQuery("SELECT (.+) FROM categories").
			WithArgs(int64(5), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "category_type"}).
				AddRow(5, 7, "Groceries", "expense"))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT (.+) FROM categories").
			WithArgs(int64(999), int64(7)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		ok, err := service.ApproveSplit(context.Background(), 7, 3, "row-1", []SplitInput{
			{CategoryID: 5, Amount: decimal.NewFromInt(60)},
			{CategoryID: 999, Amount: decimal.NewFromInt(40)},
		})
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_BulkApprove(t *testing.T) {
	txnDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("skips processed rows and recomputes the batch once", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		for _, rowID := range []string{"row-1", "row-2"} {
			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE pending_transactions").
				WithArgs(models.PendingApproved, int64(4), rowID, int64(7), models.PendingReview, models.PotentialDuplicate).
				WillReturnRows(sqlmock.NewRows(approvalRowCols).
					AddRow("10.00", "TESCO", "", txnDate, "batch-1"))
			mock.ExpectExec("INSERT INTO transactions").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()
		}

		// Third row was already rejected by someone else.
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE pending_transactions").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		mock.ExpectExec("UPDATE import_batches SET approved_transactions").
			WithArgs("batch-1", models.PendingApproved, models.PendingRejected).
			WillReturnResult(sqlmock.NewResult(0, 1))

		count, err := service.BulkApprove(context.Background(), 7, 3, []string{"row-1", "row-2", "row-3"}, 4)
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing default category is an error, not a fallback", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		_, err = service.BulkApprove(context.Background(), 7, 3, []string{"row-1"}, 0)
		assert.ErrorIs(t, err, ErrDefaultCategoryRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApprovalService_BulkReject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewApprovalService(db)

	mock.ExpectQuery("UPDATE pending_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch-1"))
	mock.ExpectQuery("UPDATE pending_transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("UPDATE pending_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch-1"))
	mock.ExpectExec("UPDATE import_batches SET approved_transactions").
		WithArgs("batch-1", models.PendingApproved, models.PendingRejected).
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := service.BulkReject(context.Background(), 7, []string{"row-1", "row-2", "row-3"})
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalService_ListPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewApprovalService(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(7), models.PendingReview, models.PotentialDuplicate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM pending_transactions").
		WithArgs(int64(7), models.PendingReview, models.PotentialDuplicate, 50, 0).
		WillReturnRows(sqlmock.NewRows(pendingRowCols()).
			AddRow("row-2", "batch-1-3", "-2000.00", "ACME PAYROLL", "ACME PAYROLL", "REF3", "FPS",
				"2090.00", "Income", "salary", now, "pending", nil, "batch-1", 7, 3, now, now).
			AddRow("row-1", "batch-1-2", "50.00", "TESCO", "TESCO", "REF1", "CARD",
				nil, "Groceries", "", now.Add(-24*time.Hour), "potential_duplicate", nil, "batch-1", 7, 3, now, now))

	pending, total, err := service.ListPending(context.Background(), 7, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, pending, 2)
	assert.Equal(t, "row-2", pending[0].ID)
	assert.True(t, pending[0].Amount.Equal(decimal.NewFromInt(-2000)))
	assert.Equal(t, models.PotentialDuplicate, pending[1].Status)
	assert.False(t, pending[1].Balance.Valid)
	assert.Nil(t, pending[1].CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalService_GetPending(t *testing.T) {
	t.Run("returns the row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT (.+) FROM pending_transactions").
			WithArgs("row-1", int64(7)).
			WillReturnRows(sqlmock.NewRows(pendingRowCols()).
				AddRow("row-1", "batch-1-2", "50.00", "TESCO", "TESCO", "REF1", "CARD",
					"100.00", "Groceries", "", now, "pending", nil, "batch-1", 7, 3, now, now))

		row, err := service.GetPending(context.Background(), "row-1", 7)
		assert.NoError(t, err)
		assert.NotNil(t, row)
		assert.Equal(t, "batch-1-2", row.ExternalID)
		assert.True(t, row.Balance.Valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown row returns nil without an error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewApprovalService(db)

		mock.ExpectQuery("SELECT (.+) FROM pending_transactions").
			WillReturnError(sql.ErrNoRows)

		row, err := service.GetPending(context.Background(), "row-gone", 7)
		assert.NoError(t, err)
		assert.Nil(t, row)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

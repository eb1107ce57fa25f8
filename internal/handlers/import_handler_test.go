package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	mW "github.com/pocketledger/backend/internal/middleware"
	"github.com/pocketledger/backend/internal/models"
	"github.com/pocketledger/backend/internal/services"
)

func newImportRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler := NewImportHandler(services.NewImportService(db))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mW.AccountContext)
		r.Post("/imports", handler.Upload)
		r.Get("/imports", handler.History)
	})
	return r, mock
}

func csvUploadRequest(t *testing.T, fileName, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	assert.NoError(t, err)
	_, err = part.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Account-ID", "7")
	req.Header.Set("X-User-ID", "3")
	return req
}

func TestImportHandler_Upload(t *testing.T) {
	t.Run("stages the upload and reports skipped rows", func(t *testing.T) {
		router, mock := newImportRouter(t)

		csv := "Date,Counter Party,Reference,Type,Amount,Balance,Spending Category,Notes\n" +
			"01/02/2024,TESCO,REF1,CARD,50.00,100.00,Groceries,\n" +
			"notadate,AMAZON,REF2,CARD,10.00,90.00,Shopping,"

		mock.ExpectExec("INSERT INTO import_batches").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO pending_transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectExec("UPDATE import_batches SET total_transactions").
			WithArgs(1, 0, models.BatchCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, csvUploadRequest(t, "statement.csv", csv))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)
		assert.Contains(t, rec.Body.String(), `"skippedRows"`)
		assert.Contains(t, rec.Body.String(), "unparsable date")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong extension maps to 400", func(t *testing.T) {
		router, mock := newImportRouter(t)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, csvUploadRequest(t, "statement.pdf", "x"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing file part maps to 400", func(t *testing.T) {
		router, _ := newImportRouter(t)

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		assert.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/imports", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-Account-ID", "7")
		req.Header.Set("X-User-ID", "3")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing identity headers are rejected", func(t *testing.T) {
		router, _ := newImportRouter(t)

		req := csvUploadRequest(t, "statement.csv", "x")
		req.Header.Del("X-Account-ID")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestImportHandler_History(t *testing.T) {
	router, mock := newImportRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM import_batches").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "total_transactions", "processed_transactions",
			"approved_transactions", "rejected_transactions", "duplicate_transactions", "status",
			"account_id", "user_id", "created_at", "completed_at"}))

	req := httptest.NewRequest(http.MethodGet, "/imports", nil)
	req.Header.Set("X-Account-ID", "7")
	req.Header.Set("X-User-ID", "3")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

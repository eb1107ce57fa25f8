package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pocketledger/backend/internal/middleware"
	"github.com/pocketledger/backend/internal/services"
)

// ImportHandler exposes CSV upload and import history.
type ImportHandler struct {
	imports *services.ImportService
}

func NewImportHandler(imports *services.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Upload ingests a bank CSV export
// @Summary Import bank CSV
// @Description Upload a bank-exported CSV file; rows are staged for review and likely duplicates flagged
// @Tags imports
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV file"
// @Success 201 {object} object{success=bool,batch=models.ImportBatch,skippedRows=[]services.SkippedRow}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /imports [post]
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	userID, _ := middleware.UserID(r)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		services.SendErrorResponse(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		services.SendErrorResponse(w, "CSV file is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	batch, skipped, err := h.imports.ImportCSV(r.Context(), file, header.Filename, accountID, userID)
	if err != nil {
		if errors.Is(err, services.ErrNotCSV) || errors.Is(err, services.ErrEmptyFile) || errors.Is(err, services.ErrMalformedHeader) {
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		log.Printf("[IMPORT] Upload failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to import file", http.StatusInternalServerError, nil)
		return
	}

	if skipped == nil {
		skipped = []services.SkippedRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"batch":       batch,
		"skippedRows": skipped,
	})
}

// History lists an account's import batches
// @Summary List import history
// @Description Get all import batches for the account, newest first
// @Tags imports
// @Produce json
// @Success 200 {object} object{imports=[]models.ImportBatch,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /imports [get]
func (h *ImportHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	batches, err := h.imports.ListImportHistory(r.Context(), accountID)
	if err != nil {
		log.Printf("[IMPORT] History lookup failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to fetch import history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"imports": batches,
		"count":   len(batches),
	})
}

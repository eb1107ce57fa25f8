package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pocketledger/backend/internal/middleware"
	"github.com/pocketledger/backend/internal/services"
)

// PendingHandler exposes the review workflow over staged transactions.
type PendingHandler struct {
	approvals *services.ApprovalService
	validator *services.ValidationHelper
}

func NewPendingHandler(approvals *services.ApprovalService) *PendingHandler {
	return &PendingHandler{
		approvals: approvals,
		validator: services.NewValidationHelper(),
	}
}

// List returns a page of rows awaiting review
// @Summary List pending transactions
// @Description Get staged transactions still awaiting approval or rejection
// @Tags pending
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param pageSize query int false "Page size (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.PendingTransaction,page=int,pageSize=int,totalCount=int,totalPages=int}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /pending [get]
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	pageSize := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 {
		pageSize = v
	}

	transactions, total, err := h.approvals.ListPending(r.Context(), accountID, page, pageSize)
	if err != nil {
		log.Printf("[APPROVAL] List pending failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to fetch pending transactions", http.StatusInternalServerError, nil)
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"page":         page,
		"pageSize":     pageSize,
		"totalCount":   total,
		"totalPages":   totalPages,
	})
}

// Get returns one staged row
// @Summary Get a pending transaction
// @Tags pending
// @Produce json
// @Param rowId path string true "Pending transaction ID"
// @Success 200 {object} models.PendingTransaction
// @Failure 404 {object} services.ErrorResponse
// @Router /pending/{rowId} [get]
func (h *PendingHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	row, err := h.approvals.GetPending(r.Context(), chi.URLParam(r, "rowId"), accountID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to fetch pending transaction", http.StatusInternalServerError, nil)
		return
	}
	if row == nil {
		services.SendErrorResponse(w, "Pending transaction not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(row)
}

// Approve finalizes one staged row into a ledger entry
// @Summary Approve a pending transaction
// @Description Approve a staged row against a category; optional notes and description override the row's values
// @Tags pending
// @Accept json
// @Produce json
// @Param rowId path string true "Pending transaction ID"
// @Param request body object{categoryId=int,notes=string,description=string} true "Approval"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /pending/{rowId}/approve [post]
func (h *PendingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	userID, _ := middleware.UserID(r)

	var req struct {
		CategoryID  int64  `json:"categoryId" validate:"required,gt=0"`
		Notes       string `json:"notes" validate:"max=500"`
		Description string `json:"description" validate:"max=200"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	approved, err := h.approvals.Approve(r.Context(), accountID, userID, chi.URLParam(r, "rowId"), req.CategoryID, req.Notes, req.Description)
	if err != nil {
		log.Printf("[APPROVAL] Approve failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to approve transaction", http.StatusInternalServerError, nil)
		return
	}
	if !approved {
		services.SendErrorResponse(w, "Transaction not found or already processed", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// Reject marks one staged row rejected
// @Summary Reject a pending transaction
// @Tags pending
// @Produce json
// @Param rowId path string true "Pending transaction ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /pending/{rowId}/reject [post]
func (h *PendingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rejected, err := h.approvals.Reject(r.Context(), accountID, chi.URLParam(r, "rowId"))
	if err != nil {
		log.Printf("[APPROVAL] Reject failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to reject transaction", http.StatusInternalServerError, nil)
		return
	}
	if !rejected {
		services.SendErrorResponse(w, "Transaction not found or already processed", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// ApproveSplit finalizes one staged row into several ledger entries
// @Summary Split-approve a pending transaction
// @Description Approve a staged row as two or more ledger entries against different categories; the whole split is rolled back if any category cannot be resolved
// @Tags pending
// @Accept json
// @Produce json
// @Param rowId path string true "Pending transaction ID"
// @Param request body object{splits=[]services.SplitInput} true "Split lines"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /pending/{rowId}/split [post]
func (h *PendingHandler) ApproveSplit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	userID, _ := middleware.UserID(r)

	var req struct {
		Splits []services.SplitInput `json:"splits" validate:"required,min=2,dive"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	applied, err := h.approvals.ApproveSplit(r.Context(), accountID, userID, chi.URLParam(r, "rowId"), req.Splits)
	if err != nil {
		log.Printf("[APPROVAL] Split failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to apply split", http.StatusInternalServerError, nil)
		return
	}
	if !applied {
		services.SendErrorResponse(w, "Transaction not eligible or split category not found", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// BulkApprove approves many staged rows with one default category
// @Summary Bulk approve pending transactions
// @Description Approve each eligible row with the default category, skipping ineligible ids; returns the count actually approved
// @Tags pending
// @Accept json
// @Produce json
// @Param request body object{rowIds=[]string,defaultCategoryId=int} true "Bulk approval"
// @Success 200 {object} object{approvedCount=int}
// @Failure 400 {object} services.ErrorResponse
// @Router /pending/bulk-approve [post]
func (h *PendingHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	userID, _ := middleware.UserID(r)

	var req struct {
		RowIDs            []string `json:"rowIds" validate:"required,min=1"`
		DefaultCategoryID int64    `json:"defaultCategoryId" validate:"required,gt=0"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	count, err := h.approvals.BulkApprove(r.Context(), accountID, userID, req.RowIDs, req.DefaultCategoryID)
	if err != nil {
		if errors.Is(err, services.ErrDefaultCategoryRequired) {
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		log.Printf("[APPROVAL] Bulk approve failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to bulk approve", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"approvedCount": count})
}

// BulkReject rejects many staged rows
// @Summary Bulk reject pending transactions
// @Description Reject each eligible row, skipping ineligible ids; returns the count actually rejected
// @Tags pending
// @Accept json
// @Produce json
// @Param request body object{rowIds=[]string} true "Bulk rejection"
// @Success 200 {object} object{rejectedCount=int}
// @Failure 400 {object} services.ErrorResponse
// @Router /pending/bulk-reject [post]
func (h *PendingHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		RowIDs []string `json:"rowIds" validate:"required,min=1"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	count, err := h.approvals.BulkReject(r.Context(), accountID, req.RowIDs)
	if err != nil {
		log.Printf("[APPROVAL] Bulk reject failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to bulk reject", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"rejectedCount": count})
}

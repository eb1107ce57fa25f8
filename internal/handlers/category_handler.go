package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pocketledger/backend/internal/middleware"
	"github.com/pocketledger/backend/internal/services"
)

// CategoryHandler exposes the read-only category listing used by review UIs.
type CategoryHandler struct {
	categories *services.CategoryService
}

func NewCategoryHandler(categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List returns the account's categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {object} object{categories=[]models.Category,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /categories [get]
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	categories, err := h.categories.GetCategories(r.Context(), accountID)
	if err != nil {
		log.Printf("[CATEGORY] List failed for account %d: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to fetch categories", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"categories": categories,
		"count":      len(categories),
	})
}

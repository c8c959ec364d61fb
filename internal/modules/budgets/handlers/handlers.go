// Package handlers provides HTTP handlers for budget operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/budgets"
)

// Handler handles budget HTTP requests
type Handler struct {
	budgets *budgets.Repository
	service *budgets.Service
	log     zerolog.Logger
}

// NewHandler creates a new budget handler
func NewHandler(budgets *budgets.Repository, service *budgets.Service, log zerolog.Logger) *Handler {
	return &Handler{
		budgets: budgets,
		service: service,
		log:     log.With().Str("handler", "budgets").Logger(),
	}
}

// HandleGetBudgets handles GET /api/budgets
func (h *Handler) HandleGetBudgets(w http.ResponseWriter, r *http.Request) {
	all, err := h.budgets.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query budgets")
		http.Error(w, "Failed to query budgets", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"budgets": all,
		"count":   len(all),
	}))
}

// HandleUpsertBudget handles PUT /api/budgets
func (h *Handler) HandleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"category_id"`
		Limit      string `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}
	limit, err := decimal.NewFromString(req.Limit)
	if err != nil || !limit.IsPositive() {
		http.Error(w, "Budget limit must be a positive amount", http.StatusBadRequest)
		return
	}

	budget := domain.Budget{
		ID:         uuid.New(),
		CategoryID: categoryID,
		Limit:      limit,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.budgets.Upsert(budget); err != nil {
		h.log.Error().Err(err).Msg("Failed to upsert budget")
		http.Error(w, "Failed to store budget", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(budget))
}

// HandleDeleteBudget handles DELETE /api/budgets/{categoryId}
func (h *Handler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request, idStr string) {
	categoryID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	if err := h.budgets.Delete(categoryID); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete budget")
		http.Error(w, "Failed to delete budget", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProgress handles GET /api/budgets/progress?year=&month=
//
// Defaults to the current month when year and month are absent.
func (h *Handler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()

	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}
	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		parsed, err := strconv.Atoi(monthStr)
		if err != nil || parsed < 1 || parsed > 12 {
			http.Error(w, "Invalid month", http.StatusBadRequest)
			return
		}
		month = time.Month(parsed)
	}

	progress, err := h.service.MonthProgress(year, month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute budget progress")
		http.Error(w, "Failed to compute budget progress", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"year":     year,
		"month":    int(month),
		"progress": progress,
	}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Package handlers provides HTTP handlers for report operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/reports"
)

// Handler handles report HTTP requests
type Handler struct {
	reports *reports.Service
	log     zerolog.Logger
}

// NewHandler creates a new report handler
func NewHandler(reports *reports.Service, log zerolog.Logger) *Handler {
	return &Handler{
		reports: reports,
		log:     log.With().Str("handler", "reports").Logger(),
	}
}

// HandleGetSpending handles GET /api/reports/spending?year=&month=&account_id=
func (h *Handler) HandleGetSpending(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "Invalid or missing year", http.StatusBadRequest)
		return
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		http.Error(w, "Invalid or missing month", http.StatusBadRequest)
		return
	}

	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.MonthlySpending(year, time.Month(monthNum), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build spending report")
		http.Error(w, "Failed to build spending report", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleGetCashflow handles GET /api/reports/cashflow?months=&account_id=
func (h *Handler) HandleGetCashflow(w http.ResponseWriter, r *http.Request) {
	months := 6 // default
	if monthsStr := r.URL.Query().Get("months"); monthsStr != "" {
		parsed, err := strconv.Atoi(monthsStr)
		if err != nil {
			http.Error(w, "Invalid months", http.StatusBadRequest)
			return
		}
		months = parsed
	}

	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Cashflow(months, accountID)
	if err != nil {
		if domain.IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to build cashflow report")
		http.Error(w, "Failed to build cashflow report", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

func (h *Handler) parseAccountID(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	idStr := r.URL.Query().Get("account_id")
	if idStr == "" {
		return nil, true
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return nil, false
	}
	return &parsed, true
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

// Package handlers provides HTTP handlers for calendar views.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/calendar"
)

// Handler handles calendar HTTP requests
type Handler struct {
	calendar *calendar.Service
	log      zerolog.Logger
}

// NewHandler creates a new calendar handler
func NewHandler(calendar *calendar.Service, log zerolog.Logger) *Handler {
	return &Handler{
		calendar: calendar,
		log:      log.With().Str("handler", "calendar").Logger(),
	}
}

// HandleGetMonthGrid handles GET /api/calendar/{year}/{month}?account_id=
func (h *Handler) HandleGetMonthGrid(w http.ResponseWriter, r *http.Request, yearStr, monthStr string) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return
	}
	monthNum, err := strconv.Atoi(monthStr)
	if err != nil || monthNum < 1 || monthNum > 12 {
		http.Error(w, "Invalid month", http.StatusBadRequest)
		return
	}

	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	grid, err := h.calendar.MonthGrid(year, time.Month(monthNum), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build month grid")
		http.Error(w, "Failed to build month grid", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(grid))
}

// HandleGetDayDetail handles GET /api/calendar/day/{date}?account_id=
func (h *Handler) HandleGetDayDetail(w http.ResponseWriter, r *http.Request, dateStr string) {
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	detail, err := h.calendar.DayDetail(date, accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build day detail")
		http.Error(w, "Failed to build day detail", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(detail))
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

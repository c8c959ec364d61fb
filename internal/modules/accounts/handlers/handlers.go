// Package handlers provides HTTP handlers for account operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/calendar"
)

// Handler handles account HTTP requests
type Handler struct {
	accounts *accounts.Repository
	calendar *calendar.Service
	log      zerolog.Logger
}

// NewHandler creates a new account handler
func NewHandler(
	accounts *accounts.Repository,
	calendar *calendar.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		accounts: accounts,
		calendar: calendar,
		log:      log.With().Str("handler", "accounts").Logger(),
	}
}

type createAccountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance"`
}

// HandleCreateAccount handles POST /api/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Account name is required", http.StatusBadRequest)
		return
	}

	initialBalance := decimal.Zero
	if req.InitialBalance != "" {
		parsed, err := decimal.NewFromString(req.InitialBalance)
		if err != nil {
			http.Error(w, "Invalid initial balance", http.StatusBadRequest)
			return
		}
		initialBalance = parsed
	}

	accountType := domain.AccountType(req.Type)
	if accountType == "" {
		accountType = domain.AccountTypeChecking
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	account := domain.Account{
		ID:             uuid.New(),
		Name:           req.Name,
		Type:           accountType,
		Currency:       currency,
		InitialBalance: initialBalance,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.accounts.Add(account); err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(account))
}

// HandleGetAccounts handles GET /api/accounts
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	all, err := h.accounts.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query accounts")
		http.Error(w, "Failed to query accounts", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"accounts": all,
		"count":    len(all),
	}))
}

// HandleGetAccountByID handles GET /api/accounts/{id}
func (h *Handler) HandleGetAccountByID(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetByID(id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query account")
		http.Error(w, "Failed to query account", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(account))
}

// HandleDeactivateAccount handles DELETE /api/accounts/{id}
func (h *Handler) HandleDeactivateAccount(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	err = h.accounts.Deactivate(id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to deactivate account")
		http.Error(w, "Failed to deactivate account", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"id":     id.String(),
		"active": false,
	}))
}

// HandleGetAccountTransactions handles GET /api/accounts/{id}/transactions
//
// Query parameters: from and to (YYYY-MM-DD, both required) and
// include_recurring (optional, default false) to merge projected occurrences
// into the list.
func (h *Handler) HandleGetAccountTransactions(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	from, err := domain.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid or missing from date", http.StatusBadRequest)
		return
	}
	to, err := domain.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid or missing to date", http.StatusBadRequest)
		return
	}
	includeRecurring := r.URL.Query().Get("include_recurring") == "true"

	timeline, err := h.calendar.AccountTransactions(id, from, to, includeRecurring)
	if errors.Is(err, domain.ErrAccountNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build account transaction list")
		http.Error(w, "Failed to query account transactions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(timeline))
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

// Package handlers provides HTTP handlers for ledger transaction operations.
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
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
)

// Handler handles transaction HTTP requests
type Handler struct {
	txs      *transactions.Repository
	accounts *accounts.Repository
	bus      *events.Bus
	log      zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(
	txs *transactions.Repository,
	accounts *accounts.Repository,
	bus *events.Bus,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		txs:      txs,
		accounts: accounts,
		bus:      bus,
		log:      log.With().Str("handler", "transactions").Logger(),
	}
}

type createTransactionRequest struct {
	AccountID   string  `json:"account_id"`
	CategoryID  *string `json:"category_id,omitempty"`
	Amount      string  `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

// HandleCreateTransaction handles POST /api/transactions
//
// Adds a one-off ledger transaction outside any recurring rule.
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var categoryID *uuid.UUID
	if req.CategoryID != nil {
		parsed, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			http.Error(w, "Invalid category ID", http.StatusBadRequest)
			return
		}
		categoryID = &parsed
	}

	// The ledger schema enforces the account reference too; checking first
	// gives the caller the domain error instead of a constraint failure.
	if _, err := h.accounts.GetByID(accountID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to check account")
		http.Error(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	t := domain.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		CategoryID:  categoryID,
		Amount:      amount,
		Date:        date,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.txs.Add(t); err != nil {
		h.log.Error().Err(err).Msg("Failed to insert transaction")
		http.Error(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	h.bus.Emit(events.TransactionAdded, "transactions", map[string]interface{}{
		"transaction_id": t.ID.String(),
		"account_id":     t.AccountID.String(),
		"amount":         t.Amount.String(),
		"date":           t.Date.Format(domain.DateFormat),
	})

	h.writeJSON(w, http.StatusCreated, envelope(t))
}

// HandleGetTransactions handles GET /api/transactions?from=&to=&account_id=
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
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

	var accountID *uuid.UUID
	if idStr := r.URL.Query().Get("account_id"); idStr != "" {
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid account ID", http.StatusBadRequest)
			return
		}
		accountID = &parsed
	}

	txs, err := h.txs.GetByDateRange(from, to, accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		http.Error(w, "Failed to query transactions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
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

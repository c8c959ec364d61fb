// Package handlers provides HTTP handlers for recurring rules, exceptions,
// realization, and past-due scans.
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
	"github.com/avelis/coinkeeper/internal/modules/recurring"
)

// Handler handles recurring rule HTTP requests
type Handler struct {
	rules       *recurring.Repository
	realization *recurring.RealizationService
	pastdue     *recurring.PastDueDetector
	bus         *events.Bus
	log         zerolog.Logger
}

// NewHandler creates a new recurring handler
func NewHandler(
	rules *recurring.Repository,
	realization *recurring.RealizationService,
	pastdue *recurring.PastDueDetector,
	bus *events.Bus,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		rules:       rules,
		realization: realization,
		pastdue:     pastdue,
		bus:         bus,
		log:         log.With().Str("handler", "recurring").Logger(),
	}
}

type createRuleRequest struct {
	AccountID            string  `json:"account_id,omitempty"`
	SourceAccountID      string  `json:"source_account_id,omitempty"`
	DestinationAccountID string  `json:"destination_account_id,omitempty"`
	CategoryID           *string `json:"category_id,omitempty"`
	Amount               string  `json:"amount"`
	Description          string  `json:"description"`
	Interval             int     `json:"interval"`
	DayOfMonth           int     `json:"day_of_month"`
	StartDate            string  `json:"start_date"`
	EndDate              *string `json:"end_date,omitempty"`
}

// HandleCreateTransactionRule handles POST /api/recurring/transactions
func (h *Handler) HandleCreateTransactionRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}
	amount, startDate, endDate, ok := h.parseRuleCommon(w, &req)
	if !ok {
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

	pattern, err := domain.NewMonthlyPattern(req.Interval, req.DayOfMonth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule := domain.RecurringTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		CategoryID:  categoryID,
		Amount:      amount,
		Description: req.Description,
		Pattern:     pattern,
		StartDate:   startDate,
		EndDate:     endDate,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.rules.AddTransactionRule(rule); err != nil {
		h.respondError(w, err, "Failed to create recurring transaction")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(rule))
}

// HandleCreateTransferRule handles POST /api/recurring/transfers
func (h *Handler) HandleCreateTransferRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		http.Error(w, "Invalid source account ID", http.StatusBadRequest)
		return
	}
	destID, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		http.Error(w, "Invalid destination account ID", http.StatusBadRequest)
		return
	}
	if sourceID == destID {
		http.Error(w, "Source and destination accounts must differ", http.StatusBadRequest)
		return
	}

	amount, startDate, endDate, ok := h.parseRuleCommon(w, &req)
	if !ok {
		return
	}
	if !amount.IsPositive() {
		http.Error(w, "Transfer amount must be positive", http.StatusBadRequest)
		return
	}

	pattern, err := domain.NewMonthlyPattern(req.Interval, req.DayOfMonth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule := domain.RecurringTransfer{
		ID:                   uuid.New(),
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		Amount:               amount,
		Description:          req.Description,
		Pattern:              pattern,
		StartDate:            startDate,
		EndDate:              endDate,
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.rules.AddTransferRule(rule); err != nil {
		h.respondError(w, err, "Failed to create recurring transfer")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(rule))
}

func (h *Handler) parseRuleCommon(w http.ResponseWriter, req *createRuleRequest) (decimal.Decimal, time.Time, *time.Time, bool) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return decimal.Zero, time.Time{}, nil, false
	}
	startDate, err := domain.ParseDate(req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start date, expected YYYY-MM-DD", http.StatusBadRequest)
		return decimal.Zero, time.Time{}, nil, false
	}
	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := domain.ParseDate(*req.EndDate)
		if err != nil {
			http.Error(w, "Invalid end date, expected YYYY-MM-DD", http.StatusBadRequest)
			return decimal.Zero, time.Time{}, nil, false
		}
		if parsed.Before(startDate) {
			http.Error(w, "End date must not precede start date", http.StatusBadRequest)
			return decimal.Zero, time.Time{}, nil, false
		}
		endDate = &parsed
	}
	return amount, startDate, endDate, true
}

// HandleGetTransactionRules handles GET /api/recurring/transactions
func (h *Handler) HandleGetTransactionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.GetActiveTransactions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query recurring transactions")
		http.Error(w, "Failed to query recurring transactions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	}))
}

// HandleGetTransferRules handles GET /api/recurring/transfers
func (h *Handler) HandleGetTransferRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.GetActiveTransfers()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query recurring transfers")
		http.Error(w, "Failed to query recurring transfers", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	}))
}

// HandleDeactivateTransactionRule handles DELETE /api/recurring/transactions/{id}
func (h *Handler) HandleDeactivateTransactionRule(w http.ResponseWriter, r *http.Request, idStr string) {
	h.deactivate(w, idStr, h.rules.DeactivateTransaction)
}

// HandleDeactivateTransferRule handles DELETE /api/recurring/transfers/{id}
func (h *Handler) HandleDeactivateTransferRule(w http.ResponseWriter, r *http.Request, idStr string) {
	h.deactivate(w, idStr, h.rules.DeactivateTransfer)
}

func (h *Handler) deactivate(w http.ResponseWriter, idStr string, fn func(uuid.UUID) error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}

	if err := fn(id); err != nil {
		h.respondError(w, err, "Failed to deactivate rule")
		return
	}

	h.bus.Emit(events.RuleDeactivated, "recurring", map[string]interface{}{
		"rule_id": id.String(),
	})

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"id":     id.String(),
		"active": false,
	}))
}

type exceptionRequest struct {
	RuleID       string  `json:"rule_id"`
	RuleKind     string  `json:"rule_kind"`
	OriginalDate string  `json:"original_date"`
	Type         string  `json:"type"`
	Date         *string `json:"date,omitempty"`
	Amount       *string `json:"amount,omitempty"`
	Description  *string `json:"description,omitempty"`
}

// HandleAddException handles POST /api/recurring/exceptions
//
// A second exception for the same (rule, original date) replaces the first.
func (h *Handler) HandleAddException(w http.ResponseWriter, r *http.Request) {
	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ruleID, err := uuid.Parse(req.RuleID)
	if err != nil {
		http.Error(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}
	originalDate, err := domain.ParseDate(req.OriginalDate)
	if err != nil {
		http.Error(w, "Invalid original date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	kind := domain.RuleKind(req.RuleKind)
	if kind != domain.RuleKindTransaction && kind != domain.RuleKindTransfer {
		http.Error(w, "Invalid rule kind", http.StatusBadRequest)
		return
	}
	excType := domain.ExceptionType(req.Type)
	if excType != domain.ExceptionSkipped && excType != domain.ExceptionModified {
		http.Error(w, "Exception type must be SKIPPED or MODIFIED", http.StatusBadRequest)
		return
	}

	exc := domain.Exception{
		ID:           uuid.New(),
		RuleID:       ruleID,
		RuleKind:     kind,
		OriginalDate: originalDate,
		Type:         excType,
		Description:  req.Description,
		CreatedAt:    time.Now().UTC(),
	}
	if req.Date != nil {
		parsed, err := domain.ParseDate(*req.Date)
		if err != nil {
			http.Error(w, "Invalid override date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		exc.Date = &parsed
	}
	if req.Amount != nil {
		parsed, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			http.Error(w, "Invalid override amount", http.StatusBadRequest)
			return
		}
		exc.Amount = &parsed
	}
	if excType == domain.ExceptionModified && exc.Date == nil && exc.Amount == nil && exc.Description == nil {
		http.Error(w, "A MODIFIED exception must override at least one field", http.StatusBadRequest)
		return
	}

	// The rule must exist for the exception to mean anything.
	if err := h.ruleExists(ruleID, kind); err != nil {
		h.respondError(w, err, "Failed to store exception")
		return
	}

	if err := h.rules.AddException(exc); err != nil {
		h.respondError(w, err, "Failed to store exception")
		return
	}

	h.bus.Emit(events.ExceptionAdded, "recurring", map[string]interface{}{
		"rule_id":       ruleID.String(),
		"original_date": originalDate.Format(domain.DateFormat),
		"type":          string(excType),
	})

	h.writeJSON(w, http.StatusCreated, envelope(exc))
}

func (h *Handler) ruleExists(ruleID uuid.UUID, kind domain.RuleKind) error {
	if kind == domain.RuleKindTransfer {
		_, err := h.rules.GetTransferByID(ruleID)
		return err
	}
	_, err := h.rules.GetTransactionByID(ruleID)
	return err
}

type realizeRequest struct {
	InstanceDate string  `json:"instance_date"`
	Date         *string `json:"date,omitempty"`
	Amount       *string `json:"amount,omitempty"`
	Description  *string `json:"description,omitempty"`
}

func (h *Handler) parseRealizeRequest(w http.ResponseWriter, r *http.Request, idStr string) (recurring.RealizeRequest, bool) {
	var out recurring.RealizeRequest

	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid rule ID", http.StatusBadRequest)
		return out, false
	}

	var req realizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return out, false
	}
	instanceDate, err := domain.ParseDate(req.InstanceDate)
	if err != nil {
		http.Error(w, "Invalid instance date, expected YYYY-MM-DD", http.StatusBadRequest)
		return out, false
	}

	out = recurring.RealizeRequest{RuleID: id, InstanceDate: instanceDate, Description: req.Description}
	if req.Date != nil {
		parsed, err := domain.ParseDate(*req.Date)
		if err != nil {
			http.Error(w, "Invalid override date, expected YYYY-MM-DD", http.StatusBadRequest)
			return out, false
		}
		out.Date = &parsed
	}
	if req.Amount != nil {
		parsed, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			http.Error(w, "Invalid override amount", http.StatusBadRequest)
			return out, false
		}
		out.Amount = &parsed
	}
	return out, true
}

// HandleRealizeTransaction handles POST /api/recurring/transactions/{id}/realize
func (h *Handler) HandleRealizeTransaction(w http.ResponseWriter, r *http.Request, idStr string) {
	req, ok := h.parseRealizeRequest(w, r, idStr)
	if !ok {
		return
	}

	tx, err := h.realization.RealizeTransaction(req)
	if err != nil {
		h.respondError(w, err, "Failed to realize occurrence")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(tx))
}

// HandleRealizeTransfer handles POST /api/recurring/transfers/{id}/realize
func (h *Handler) HandleRealizeTransfer(w http.ResponseWriter, r *http.Request, idStr string) {
	req, ok := h.parseRealizeRequest(w, r, idStr)
	if !ok {
		return
	}

	result, err := h.realization.RealizeTransfer(req)
	if err != nil {
		h.respondError(w, err, "Failed to realize transfer occurrence")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(result))
}

// HandleGetPastDue handles GET /api/recurring/pastdue?account_id=
func (h *Handler) HandleGetPastDue(w http.ResponseWriter, r *http.Request) {
	var accountID *uuid.UUID
	if idStr := r.URL.Query().Get("account_id"); idStr != "" {
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid account ID", http.StatusBadRequest)
			return
		}
		accountID = &parsed
	}

	report, err := h.pastdue.Scan(accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run past-due scan")
		http.Error(w, "Failed to run past-due scan", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// respondError maps domain errors onto HTTP statuses; anything unrecognized
// is logged and reported as a 500 with the given fallback message.
func (h *Handler) respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrRecurringTransactionNotFound),
		errors.Is(err, domain.ErrRecurringTransferNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyRealized),
		errors.Is(err, domain.ErrInstanceSkipped):
		http.Error(w, err.Error(), http.StatusConflict)
	case domain.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
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

// Package domain provides core domain models and types.
// The domain layer is pure: no database, HTTP, or logging dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateFormat is the canonical day-granular date representation used in
// storage and over the API. All dates in this system are UTC midnights.
const DateFormat = "2006-01-02"

// Date returns a UTC midnight for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf normalizes an arbitrary instant to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}

// DaysInMonth returns the number of calendar days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AccountType classifies an account.
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeCreditCard AccountType = "CREDIT_CARD"
	AccountTypeCash       AccountType = "CASH"
)

// Account represents a tracked financial account.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Category represents a spending category.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Budget is a monthly spending limit for a category.
type Budget struct {
	ID         uuid.UUID       `json:"id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Limit      decimal.Decimal `json:"limit"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Transaction is a permanent ledger row. Negative amounts are outflows,
// positive amounts inflows.
//
// RecurringRuleID and RecurringInstanceDate link a realized transaction back
// to the recurring occurrence it came from. RecurringInstanceDate always
// carries the original occurrence date, never an overridden effective date;
// the pair is the realization idempotency key.
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	AccountID             uuid.UUID       `json:"account_id"`
	CategoryID            *uuid.UUID      `json:"category_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Date                  time.Time       `json:"date"`
	Description           string          `json:"description"`
	TransferGroupID       *uuid.UUID      `json:"transfer_group_id,omitempty"`
	RecurringRuleID       *uuid.UUID      `json:"recurring_rule_id,omitempty"`
	RecurringInstanceDate *time.Time      `json:"recurring_instance_date,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// IsTransferLeg reports whether the transaction is one side of a transfer.
func (t *Transaction) IsTransferLeg() bool {
	return t.TransferGroupID != nil
}

// RecurringTransaction is a recurring single-account rule.
type RecurringTransaction struct {
	ID          uuid.UUID         `json:"id"`
	AccountID   uuid.UUID         `json:"account_id"`
	CategoryID  *uuid.UUID        `json:"category_id,omitempty"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Pattern     RecurrencePattern `json:"pattern"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Schedule returns the rule's occurrence schedule.
func (r *RecurringTransaction) Schedule() Schedule {
	return Schedule{Pattern: r.Pattern, StartDate: r.StartDate, EndDate: r.EndDate}
}

// RecurringTransfer is a recurring inter-account transfer rule. Amount is
// always positive; the source leg is realized as -Amount, the destination
// leg as +Amount.
type RecurringTransfer struct {
	ID                   uuid.UUID         `json:"id"`
	SourceAccountID      uuid.UUID         `json:"source_account_id"`
	DestinationAccountID uuid.UUID         `json:"destination_account_id"`
	Amount               decimal.Decimal   `json:"amount"`
	Description          string            `json:"description"`
	Pattern              RecurrencePattern `json:"pattern"`
	StartDate            time.Time         `json:"start_date"`
	EndDate              *time.Time        `json:"end_date,omitempty"`
	Active               bool              `json:"active"`
	CreatedAt            time.Time         `json:"created_at"`
}

// Schedule returns the rule's occurrence schedule.
func (r *RecurringTransfer) Schedule() Schedule {
	return Schedule{Pattern: r.Pattern, StartDate: r.StartDate, EndDate: r.EndDate}
}

// TransferResult summarizes a realized transfer: both ledger rows share the
// same transfer group id and were committed in one unit of work.
type TransferResult struct {
	SourceTransactionID      uuid.UUID       `json:"source_transaction_id"`
	DestinationTransactionID uuid.UUID       `json:"destination_transaction_id"`
	TransferGroupID          uuid.UUID       `json:"transfer_group_id"`
	Amount                   decimal.Decimal `json:"amount"`
	Date                     time.Time       `json:"date"`
}

// RuleKind discriminates the two recurring rule variants in reports.
type RuleKind string

const (
	RuleKindTransaction RuleKind = "recurring-transaction"
	RuleKindTransfer    RuleKind = "recurring-transfer"
)

// PastDueItem is a due-but-unrealized occurrence. It is derived, never
// persisted, and recomputed relative to a reference "today".
type PastDueItem struct {
	RuleID                 uuid.UUID       `json:"rule_id"`
	Kind                   RuleKind        `json:"kind"`
	InstanceDate           time.Time       `json:"instance_date"`
	DaysPastDue            int             `json:"days_past_due"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	AccountName            string          `json:"account_name"`
	DestinationAccountName string          `json:"destination_account_name,omitempty"`
}

// PastDueReport aggregates past-due items for a scan.
type PastDueReport struct {
	Items       []PastDueItem    `json:"items"`
	TotalCount  int              `json:"total_count"`
	OldestDate  *time.Time       `json:"oldest_date,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
}

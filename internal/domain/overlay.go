package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExceptionType marks what a stored exception does to its occurrence.
type ExceptionType string

const (
	// ExceptionSkipped excludes the occurrence from projections and past-due
	// listings and refuses realization.
	ExceptionSkipped ExceptionType = "SKIPPED"
	// ExceptionModified overrides one or more of the occurrence's date,
	// amount, and description.
	ExceptionModified ExceptionType = "MODIFIED"
)

// Exception is a per-occurrence overlay keyed by (rule id, original date).
// At most one exception exists per key; exceptions never expire.
type Exception struct {
	ID           uuid.UUID        `json:"id"`
	RuleID       uuid.UUID        `json:"rule_id"`
	RuleKind     RuleKind         `json:"rule_kind"`
	OriginalDate time.Time        `json:"original_date"`
	Type         ExceptionType    `json:"type"`
	Date         *time.Time       `json:"date,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Overrides are caller-supplied per-field overrides on a realization request.
type Overrides struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Description *string
}

// OccurrenceDefaults are the rule's own values for an occurrence, the lowest
// precedence tier of overlay resolution.
type OccurrenceDefaults struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Resolution is the outcome of overlay resolution for one occurrence.
type Resolution struct {
	Skipped     bool
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// ResolveOccurrence decides an occurrence's fate from its rule defaults, its
// stored exception (nil when none exists), and an optional realization
// request. Field precedence is request > exception > rule default. The
// computation is pure: any caller holding the same inputs derives the same
// resolution.
func ResolveOccurrence(defaults OccurrenceDefaults, exc *Exception, req *Overrides) Resolution {
	if exc != nil && exc.Type == ExceptionSkipped {
		return Resolution{Skipped: true}
	}

	res := Resolution{
		Date:        DateOf(defaults.Date),
		Amount:      defaults.Amount,
		Description: defaults.Description,
	}

	if exc != nil {
		if exc.Date != nil {
			res.Date = DateOf(*exc.Date)
		}
		if exc.Amount != nil {
			res.Amount = *exc.Amount
		}
		if exc.Description != nil {
			res.Description = *exc.Description
		}
	}

	if req != nil {
		if req.Date != nil {
			res.Date = DateOf(*req.Date)
		}
		if req.Amount != nil {
			res.Amount = *req.Amount
		}
		if req.Description != nil {
			res.Description = *req.Description
		}
	}

	return res
}

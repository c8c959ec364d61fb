package budgets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
)

// TransactionSource is the slice of the transaction store the budget service
// needs.
type TransactionSource interface {
	GetByDateRange(from, to time.Time, accountID *uuid.UUID) ([]domain.Transaction, error)
}

// CategorySource resolves category names.
type CategorySource interface {
	GetAll() ([]domain.Category, error)
}

// Progress is one category's budget-vs-actual standing for a month.
type Progress struct {
	CategoryID   uuid.UUID       `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Limit        decimal.Decimal `json:"limit"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percent      float64         `json:"percent"`
}

// Service computes budget progress from the realized ledger.
type Service struct {
	budgets    *Repository
	txs        TransactionSource
	categories CategorySource
	log        zerolog.Logger
}

// NewService creates a new budget service.
func NewService(budgets *Repository, txs TransactionSource, categories CategorySource, log zerolog.Logger) *Service {
	return &Service{
		budgets:    budgets,
		txs:        txs,
		categories: categories,
		log:        log.With().Str("service", "budgets").Logger(),
	}
}

// MonthProgress returns budget-vs-actual progress for every budgeted category
// in the given month. Spending counts only negative (outflow) amounts and
// only realized transactions; projections never move budget progress.
func (s *Service) MonthProgress(year int, month time.Month) ([]Progress, error) {
	budgets, err := s.budgets.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return []Progress{}, nil
	}

	cats, err := s.categories.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	names := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	first := domain.Date(year, month, 1)
	last := domain.Date(year, month, domain.DaysInMonth(year, month))
	txs, err := s.txs.GetByDateRange(first, last, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load month transactions: %w", err)
	}

	spent := make(map[uuid.UUID]decimal.Decimal)
	for _, t := range txs {
		if t.CategoryID == nil || !t.Amount.IsNegative() {
			continue
		}
		spent[*t.CategoryID] = spent[*t.CategoryID].Add(t.Amount.Neg())
	}

	out := make([]Progress, 0, len(budgets))
	for _, b := range budgets {
		p := Progress{
			CategoryID:   b.CategoryID,
			CategoryName: names[b.CategoryID],
			Limit:        b.Limit,
			Spent:        spent[b.CategoryID],
		}
		p.Remaining = p.Limit.Sub(p.Spent)
		if b.Limit.IsPositive() {
			pct, _ := p.Spent.Div(b.Limit).Mul(decimal.NewFromInt(100)).Float64()
			p.Percent = pct
		}
		out = append(out, p)
	}
	return out, nil
}

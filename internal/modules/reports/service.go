// Package reports derives spending breakdowns and cashflow statistics from
// the realized ledger. Reports never look at projections; they describe what
// actually happened.
package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/avelis/coinkeeper/internal/domain"
)

// uncategorizedName labels spending rows whose transactions carry no category.
const uncategorizedName = "Uncategorized"

// TransactionSource is the slice of the ledger the report service reads.
type TransactionSource interface {
	GetByDateRange(from, to time.Time, accountID *uuid.UUID) ([]domain.Transaction, error)
}

// CategorySource resolves category display names.
type CategorySource interface {
	GetAll() ([]domain.Category, error)
}

// CategoryRow is one category's spending inside a month.
type CategoryRow struct {
	CategoryID   *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Count        int             `json:"count"`
}

// SpendingReport breaks one month's outflows down by category, largest
// spender first.
type SpendingReport struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Rows  []CategoryRow   `json:"rows"`
	Total decimal.Decimal `json:"total"`
}

// MonthlyFlow is one month's realized income, expenses, and net change.
type MonthlyFlow struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// CashflowReport is a trailing-months view of realized cashflow with summary
// statistics over the monthly nets.
type CashflowReport struct {
	Months    []MonthlyFlow `json:"months"`
	MeanNet   float64       `json:"mean_net"`
	StdDevNet float64       `json:"std_dev_net"`
}

// Service computes reports over the realized ledger.
type Service struct {
	txs        TransactionSource
	categories CategorySource
	clock      domain.Clock
	log        zerolog.Logger
}

// NewService creates a new report service.
func NewService(txs TransactionSource, categories CategorySource, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		txs:        txs,
		categories: categories,
		clock:      clock,
		log:        log.With().Str("service", "reports").Logger(),
	}
}

// MonthlySpending aggregates one month's outflows by category. Transfer legs
// are excluded: moving money between own accounts is not spending.
func (s *Service) MonthlySpending(year int, month time.Month, accountID *uuid.UUID) (*SpendingReport, error) {
	first := domain.Date(year, month, 1)
	last := domain.Date(year, month, domain.DaysInMonth(year, month))

	txs, err := s.txs.GetByDateRange(first, last, accountID)
	if err != nil {
		return nil, err
	}

	names, err := s.categoryNames()
	if err != nil {
		return nil, err
	}

	type key struct{ id uuid.UUID }
	rows := make(map[key]*CategoryRow)
	report := &SpendingReport{Year: year, Month: month, Rows: []CategoryRow{}}

	for _, t := range txs {
		if !t.Amount.IsNegative() || t.IsTransferLeg() {
			continue
		}

		var k key
		name := uncategorizedName
		var id *uuid.UUID
		if t.CategoryID != nil {
			k = key{id: *t.CategoryID}
			if n, ok := names[*t.CategoryID]; ok {
				name = n
			}
			cid := *t.CategoryID
			id = &cid
		}

		row, ok := rows[k]
		if !ok {
			row = &CategoryRow{CategoryID: id, CategoryName: name}
			rows[k] = row
		}
		row.Amount = row.Amount.Add(t.Amount)
		row.Count++
		report.Total = report.Total.Add(t.Amount)
	}

	for _, row := range rows {
		report.Rows = append(report.Rows, *row)
	}
	// Largest outflow first; amounts are negative, so ascending order.
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Amount.LessThan(report.Rows[j].Amount)
	})

	return report, nil
}

// Cashflow returns the trailing months ending at the current month, oldest
// first, with mean and standard deviation over the monthly net amounts.
func (s *Service) Cashflow(months int, accountID *uuid.UUID) (*CashflowReport, error) {
	if months < 1 {
		return nil, domain.NewValidationError(fmt.Sprintf("months must be at least 1, got %d", months))
	}

	now := domain.DateOf(s.clock.Now())
	firstMonth := domain.Date(now.Year(), now.Month(), 1).AddDate(0, -(months - 1), 0)
	last := domain.Date(now.Year(), now.Month(), domain.DaysInMonth(now.Year(), now.Month()))

	txs, err := s.txs.GetByDateRange(firstMonth, last, accountID)
	if err != nil {
		return nil, err
	}

	report := &CashflowReport{Months: make([]MonthlyFlow, 0, months)}
	for i := 0; i < months; i++ {
		m := firstMonth.AddDate(0, i, 0)
		report.Months = append(report.Months, MonthlyFlow{Year: m.Year(), Month: m.Month()})
	}

	monthIndex := func(t time.Time) int {
		return (t.Year()-firstMonth.Year())*12 + int(t.Month()) - int(firstMonth.Month())
	}
	for _, t := range txs {
		i := monthIndex(t.Date)
		if i < 0 || i >= months {
			continue
		}
		flow := &report.Months[i]
		if t.Amount.IsPositive() {
			flow.Income = flow.Income.Add(t.Amount)
		} else {
			flow.Expenses = flow.Expenses.Add(t.Amount)
		}
		flow.Net = flow.Net.Add(t.Amount)
	}

	nets := make([]float64, 0, months)
	for _, flow := range report.Months {
		nets = append(nets, flow.Net.InexactFloat64())
	}
	report.MeanNet = stat.Mean(nets, nil)
	if len(nets) > 1 {
		// Sample stddev needs at least two observations; NaN does not
		// survive JSON encoding.
		report.StdDevNet = stat.StdDev(nets, nil)
	}

	return report, nil
}

func (s *Service) categoryNames() (map[uuid.UUID]string, error) {
	categories, err := s.categories.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

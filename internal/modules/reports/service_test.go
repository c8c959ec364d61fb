package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/domain"
)

// memorySource serves canned transactions so report math can be tested
// without a database.
type memorySource struct {
	txs []domain.Transaction
}

func (m *memorySource) GetByDateRange(from, to time.Time, accountID *uuid.UUID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txs {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if accountID != nil && t.AccountID != *accountID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type memoryCategories struct {
	categories []domain.Category
}

func (m *memoryCategories) GetAll() ([]domain.Category, error) {
	return m.categories, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func tx(t *testing.T, amount string, date time.Time, categoryID *uuid.UUID) domain.Transaction {
	t.Helper()
	return domain.Transaction{
		ID:         uuid.New(),
		AccountID:  uuid.New(),
		CategoryID: categoryID,
		Amount:     dec(t, amount),
		Date:       date,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMonthlySpendingGroupsByCategory(t *testing.T) {
	groceries := domain.Category{ID: uuid.New(), Name: "Groceries"}
	rent := domain.Category{ID: uuid.New(), Name: "Rent"}

	source := &memorySource{txs: []domain.Transaction{
		tx(t, "-40.00", domain.Date(2026, time.January, 2), &groceries.ID),
		tx(t, "-35.00", domain.Date(2026, time.January, 16), &groceries.ID),
		tx(t, "-900.00", domain.Date(2026, time.January, 1), &rent.ID),
		tx(t, "-12.00", domain.Date(2026, time.January, 9), nil),
		// Inflows are not spending.
		tx(t, "2000.00", domain.Date(2026, time.January, 5), nil),
		// Other months stay out.
		tx(t, "-99.00", domain.Date(2026, time.February, 1), &rent.ID),
	}}
	svc := NewService(source, &memoryCategories{categories: []domain.Category{groceries, rent}},
		domain.FixedClock(domain.Date(2026, time.January, 20)), zerolog.Nop())

	report, err := svc.MonthlySpending(2026, time.January, nil)
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	// Largest outflow first.
	assert.Equal(t, "Rent", report.Rows[0].CategoryName)
	assert.True(t, report.Rows[0].Amount.Equal(dec(t, "-900.00")))
	assert.Equal(t, "Groceries", report.Rows[1].CategoryName)
	assert.True(t, report.Rows[1].Amount.Equal(dec(t, "-75.00")))
	assert.Equal(t, 2, report.Rows[1].Count)
	assert.Equal(t, "Uncategorized", report.Rows[2].CategoryName)
	assert.Nil(t, report.Rows[2].CategoryID)

	assert.True(t, report.Total.Equal(dec(t, "-952.00")))
}

func TestMonthlySpendingExcludesTransferLegs(t *testing.T) {
	groupID := uuid.New()
	leg := tx(t, "-200.00", domain.Date(2026, time.January, 10), nil)
	leg.TransferGroupID = &groupID

	source := &memorySource{txs: []domain.Transaction{leg}}
	svc := NewService(source, &memoryCategories{}, domain.FixedClock(domain.Date(2026, time.January, 20)), zerolog.Nop())

	report, err := svc.MonthlySpending(2026, time.January, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.True(t, report.Total.IsZero())
}

func TestCashflowTrailingMonths(t *testing.T) {
	source := &memorySource{txs: []domain.Transaction{
		tx(t, "1000.00", domain.Date(2025, time.November, 5), nil),
		tx(t, "-400.00", domain.Date(2025, time.November, 20), nil),
		tx(t, "1000.00", domain.Date(2025, time.December, 5), nil),
		tx(t, "-600.00", domain.Date(2025, time.December, 20), nil),
		tx(t, "1000.00", domain.Date(2026, time.January, 5), nil),
		tx(t, "-800.00", domain.Date(2026, time.January, 20), nil),
	}}
	svc := NewService(source, &memoryCategories{}, domain.FixedClock(domain.Date(2026, time.January, 25)), zerolog.Nop())

	report, err := svc.Cashflow(3, nil)
	require.NoError(t, err)

	require.Len(t, report.Months, 3)
	assert.Equal(t, time.November, report.Months[0].Month)
	assert.Equal(t, 2025, report.Months[0].Year)
	assert.Equal(t, time.January, report.Months[2].Month)

	assert.True(t, report.Months[0].Net.Equal(dec(t, "600.00")))
	assert.True(t, report.Months[1].Net.Equal(dec(t, "400.00")))
	assert.True(t, report.Months[2].Net.Equal(dec(t, "200.00")))

	// Nets 600, 400, 200: mean 400, sample stddev 200.
	assert.InDelta(t, 400.0, report.MeanNet, 0.001)
	assert.InDelta(t, 200.0, report.StdDevNet, 0.001)
}

func TestCashflowValidatesMonths(t *testing.T) {
	svc := NewService(&memorySource{}, &memoryCategories{}, domain.FixedClock(domain.Date(2026, time.January, 25)), zerolog.Nop())

	_, err := svc.Cashflow(0, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

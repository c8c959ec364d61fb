package budgets

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/categories"
	coinkeepertesting "github.com/avelis/coinkeeper/internal/testing"
)

// memorySource serves canned transactions so progress math can be tested
// without a ledger database.
type memorySource struct {
	txs []domain.Transaction
}

func (m *memorySource) GetByDateRange(from, to time.Time, accountID *uuid.UUID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.txs {
		if t.Date.Before(from) || t.Date.After(to) {
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

// newService wires a budget service over a real plans database. Budget rows
// reference category rows, so fixture categories are inserted for real too.
func newService(t *testing.T, txs *memorySource, cats *memoryCategories) (*Service, *Repository) {
	t.Helper()
	log := zerolog.Nop()
	plansDB := coinkeepertesting.NewTestDB(t, "plans")

	catRepo := categories.NewRepository(plansDB.Conn(), log)
	for _, c := range cats.categories {
		require.NoError(t, catRepo.Add(c))
	}

	repo := NewRepository(plansDB.Conn(), log)
	return NewService(repo, txs, cats, log), repo
}

func TestMonthProgressComputesSpentAndRemaining(t *testing.T) {
	groceries := domain.Category{ID: uuid.New(), Name: "Groceries", CreatedAt: time.Now().UTC()}
	jan := domain.Date(2026, time.January, 10)

	source := &memorySource{txs: []domain.Transaction{
		tx(t, "-120.50", jan, &groceries.ID),
		tx(t, "-29.50", jan.AddDate(0, 0, 5), &groceries.ID),
		tx(t, "500", jan, &groceries.ID), // inflow, never counts as spending
	}}
	svc, repo := newService(t, source, &memoryCategories{categories: []domain.Category{groceries}})

	require.NoError(t, repo.Upsert(domain.Budget{
		ID:         uuid.New(),
		CategoryID: groceries.ID,
		Limit:      dec(t, "300"),
		CreatedAt:  time.Now().UTC(),
	}))

	progress, err := svc.MonthProgress(2026, time.January)
	require.NoError(t, err)
	require.Len(t, progress, 1)

	p := progress[0]
	assert.Equal(t, groceries.ID, p.CategoryID)
	assert.Equal(t, "Groceries", p.CategoryName)
	assert.True(t, p.Spent.Equal(dec(t, "150")), "spent = %s", p.Spent)
	assert.True(t, p.Remaining.Equal(dec(t, "150")), "remaining = %s", p.Remaining)
	assert.InDelta(t, 50.0, p.Percent, 0.001)
}

func TestMonthProgressIgnoresOtherMonths(t *testing.T) {
	rent := domain.Category{ID: uuid.New(), Name: "Rent", CreatedAt: time.Now().UTC()}

	source := &memorySource{txs: []domain.Transaction{
		tx(t, "-900", domain.Date(2025, time.December, 31), &rent.ID),
		tx(t, "-900", domain.Date(2026, time.February, 1), &rent.ID),
	}}
	svc, repo := newService(t, source, &memoryCategories{categories: []domain.Category{rent}})

	require.NoError(t, repo.Upsert(domain.Budget{
		ID:         uuid.New(),
		CategoryID: rent.ID,
		Limit:      dec(t, "1000"),
		CreatedAt:  time.Now().UTC(),
	}))

	progress, err := svc.MonthProgress(2026, time.January)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.True(t, progress[0].Spent.IsZero())
	assert.InDelta(t, 0.0, progress[0].Percent, 0.001)
}

func TestMonthProgressNoBudgets(t *testing.T) {
	svc, _ := newService(t, &memorySource{}, &memoryCategories{})

	progress, err := svc.MonthProgress(2026, time.January)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

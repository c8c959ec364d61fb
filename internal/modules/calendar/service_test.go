package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/recurring"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
	coinkeepertesting "github.com/avelis/coinkeeper/internal/testing"
)

type fixture struct {
	txs      *transactions.Repository
	rules    *recurring.Repository
	accounts *accounts.Repository
	bus      *events.Bus
	cache    *Cache
	svc      *Service
	today    time.Time
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()
	log := zerolog.Nop()

	ledgerDB := coinkeepertesting.NewTestDB(t, "ledger")
	plansDB := coinkeepertesting.NewTestDB(t, "plans")
	cacheDB := coinkeepertesting.NewTestDB(t, "cache")

	f := &fixture{
		txs:      transactions.NewRepository(ledgerDB.Conn(), log),
		rules:    recurring.NewRepository(plansDB.Conn(), log),
		accounts: accounts.NewRepository(ledgerDB.Conn(), log),
		bus:      events.NewBus(log),
		today:    today,
	}
	f.cache = NewCache(cacheDB, f.bus, log)
	f.svc = NewService(f.txs, f.rules, f.accounts, domain.FixedClock(today), f.cache, log)
	return f
}

func (f *fixture) addAccount(t *testing.T, name, initialBalance string) domain.Account {
	t.Helper()
	a := domain.Account{
		ID:             uuid.New(),
		Name:           name,
		Type:           domain.AccountTypeChecking,
		Currency:       "USD",
		InitialBalance: dec(t, initialBalance),
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.accounts.Add(a))
	return a
}

func (f *fixture) addTransaction(t *testing.T, accountID uuid.UUID, amount string, date time.Time, description string) domain.Transaction {
	t.Helper()
	tx := domain.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      dec(t, amount),
		Date:        date,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.txs.Add(tx))
	return tx
}

func (f *fixture) addRule(t *testing.T, accountID uuid.UUID, amount string, dayOfMonth int, start time.Time) domain.RecurringTransaction {
	t.Helper()
	pattern, err := domain.NewMonthlyPattern(1, dayOfMonth)
	require.NoError(t, err)
	rule := domain.RecurringTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      dec(t, amount),
		Description: "Recurring bill",
		Pattern:     pattern,
		StartDate:   start,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.rules.AddTransactionRule(rule))
	return rule
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func cellFor(t *testing.T, grid *MonthGrid, date time.Time) DayCell {
	t.Helper()
	for _, cell := range grid.Days {
		if cell.Date.Equal(date) {
			return cell
		}
	}
	t.Fatalf("no cell for %s", date.Format(domain.DateFormat))
	return DayCell{}
}

func TestMonthGridShape(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 15))

	// January 2026 starts on a Thursday; the grid leads with Dec 28-31.
	grid, err := f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)

	require.Len(t, grid.Days, 42)
	assert.True(t, grid.Days[0].Date.Equal(domain.Date(2025, time.December, 28)))
	assert.True(t, grid.Days[41].Date.Equal(domain.Date(2026, time.February, 7)))
	assert.Equal(t, time.Sunday, grid.Days[0].Date.Weekday())

	current := 0
	for _, cell := range grid.Days {
		if cell.IsCurrentMonth {
			current++
		}
	}
	assert.Equal(t, 31, current)
	assert.False(t, cellFor(t, grid, domain.Date(2025, time.December, 31)).IsCurrentMonth)
	assert.True(t, cellFor(t, grid, domain.Date(2026, time.January, 1)).IsCurrentMonth)
	assert.False(t, cellFor(t, grid, domain.Date(2026, time.February, 1)).IsCurrentMonth)
}

func TestMonthGridActualTotalsAndSummary(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 15))
	account := f.addAccount(t, "Checking", "0")

	f.addTransaction(t, account.ID, "1000.00", domain.Date(2026, time.January, 2), "Salary")
	f.addTransaction(t, account.ID, "-40.00", domain.Date(2026, time.January, 2), "Groceries")
	f.addTransaction(t, account.ID, "-60.00", domain.Date(2026, time.January, 9), "Utilities")
	// Outside the month, inside the grid.
	f.addTransaction(t, account.ID, "-5.00", domain.Date(2025, time.December, 30), "Coffee")

	grid, err := f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)

	jan2 := cellFor(t, grid, domain.Date(2026, time.January, 2))
	assert.True(t, jan2.ActualAmount.Equal(dec(t, "960.00")))
	assert.Equal(t, 2, jan2.ActualCount)

	dec30 := cellFor(t, grid, domain.Date(2025, time.December, 30))
	assert.True(t, dec30.ActualAmount.Equal(dec(t, "-5.00")))
	assert.Equal(t, 1, dec30.ActualCount)

	// Summary covers the target month only.
	assert.True(t, grid.TotalIncome.Equal(dec(t, "1000.00")))
	assert.True(t, grid.TotalExpenses.Equal(dec(t, "-100.00")))
	assert.True(t, grid.NetChange.Equal(dec(t, "900.00")))
}

func TestMonthGridProjectsUnrealizedOccurrences(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	account := f.addAccount(t, "Checking", "0")
	rule := f.addRule(t, account.ID, "-50.00", 20, domain.Date(2026, time.January, 20))

	grid, err := f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)

	jan20 := cellFor(t, grid, domain.Date(2026, time.January, 20))
	assert.True(t, jan20.ProjectedAmount.Equal(dec(t, "-50.00")))
	assert.Equal(t, 1, jan20.ProjectedCount)
	assert.Equal(t, 0, jan20.ActualCount)

	// A realized row for the occurrence replaces the projection.
	ruleID := rule.ID
	instance := domain.Date(2026, time.January, 20)
	tx := domain.Transaction{
		ID:                    uuid.New(),
		AccountID:             account.ID,
		Amount:                dec(t, "-50.00"),
		Date:                  instance,
		Description:           "Recurring bill",
		RecurringRuleID:       &ruleID,
		RecurringInstanceDate: &instance,
		CreatedAt:             time.Now().UTC(),
	}
	require.NoError(t, f.txs.Add(tx))

	grid, err = f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)
	jan20 = cellFor(t, grid, domain.Date(2026, time.January, 20))
	assert.Equal(t, 0, jan20.ProjectedCount)
	assert.Equal(t, 1, jan20.ActualCount)
}

func TestMonthGridSkippedOccurrenceNotProjected(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	account := f.addAccount(t, "Checking", "0")
	rule := f.addRule(t, account.ID, "-50.00", 20, domain.Date(2026, time.January, 20))

	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		RuleKind:     domain.RuleKindTransaction,
		OriginalDate: domain.Date(2026, time.January, 20),
		Type:         domain.ExceptionSkipped,
		CreatedAt:    time.Now().UTC(),
	}))

	grid, err := f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)
	jan20 := cellFor(t, grid, domain.Date(2026, time.January, 20))
	assert.Equal(t, 0, jan20.ProjectedCount)
}

func TestMonthGridExceptionMovesProjection(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	account := f.addAccount(t, "Checking", "0")
	rule := f.addRule(t, account.ID, "-50.00", 20, domain.Date(2026, time.January, 20))

	moved := domain.Date(2026, time.January, 25)
	amount := dec(t, "-65.00")
	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		RuleKind:     domain.RuleKindTransaction,
		OriginalDate: domain.Date(2026, time.January, 20),
		Type:         domain.ExceptionModified,
		Date:         &moved,
		Amount:       &amount,
		CreatedAt:    time.Now().UTC(),
	}))

	grid, err := f.svc.MonthGrid(2026, time.January, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, cellFor(t, grid, domain.Date(2026, time.January, 20)).ProjectedCount)
	jan25 := cellFor(t, grid, moved)
	assert.Equal(t, 1, jan25.ProjectedCount)
	assert.True(t, jan25.ProjectedAmount.Equal(amount))
}

func TestDayDetailMergesActualAndProjected(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	account := f.addAccount(t, "Checking", "0")
	f.addTransaction(t, account.ID, "-12.50", domain.Date(2026, time.January, 20), "Lunch")
	f.addRule(t, account.ID, "-50.00", 20, domain.Date(2026, time.January, 20))

	detail, err := f.svc.DayDetail(domain.Date(2026, time.January, 20), nil)
	require.NoError(t, err)

	require.Equal(t, 2, detail.Count)
	assert.True(t, detail.TotalActual.Equal(dec(t, "-12.50")))
	assert.True(t, detail.TotalProjected.Equal(dec(t, "-50.00")))
	assert.True(t, detail.Combined.Equal(dec(t, "-62.50")))

	var projected, actual int
	for _, item := range detail.Items {
		assert.Equal(t, "Checking", item.AccountName)
		if item.Projected {
			projected++
			assert.Equal(t, string(domain.RuleKindTransaction), item.Kind)
		} else {
			actual++
			assert.Equal(t, "transaction", item.Kind)
		}
	}
	assert.Equal(t, 1, projected)
	assert.Equal(t, 1, actual)
}

func TestDayDetailExceptionMovesProjection(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	account := f.addAccount(t, "Checking", "0")
	rule := f.addRule(t, account.ID, "-50.00", 20, domain.Date(2026, time.January, 20))

	moved := domain.Date(2026, time.January, 25)
	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		RuleKind:     domain.RuleKindTransaction,
		OriginalDate: domain.Date(2026, time.January, 20),
		Type:         domain.ExceptionModified,
		Date:         &moved,
		CreatedAt:    time.Now().UTC(),
	}))

	// The occurrence follows its effective date, not the scheduled one.
	detail, err := f.svc.DayDetail(domain.Date(2026, time.January, 20), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.Count)

	detail, err = f.svc.DayDetail(moved, nil)
	require.NoError(t, err)
	require.Equal(t, 1, detail.Count)
	assert.True(t, detail.Items[0].Projected)
	assert.True(t, detail.TotalProjected.Equal(dec(t, "-50.00")))
}

func TestProjectedTransferSignPerAccount(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 1))
	source := f.addAccount(t, "Checking", "0")
	destination := f.addAccount(t, "Savings", "0")

	pattern, err := domain.NewMonthlyPattern(1, 20)
	require.NoError(t, err)
	require.NoError(t, f.rules.AddTransferRule(domain.RecurringTransfer{
		ID:                   uuid.New(),
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               dec(t, "200.00"),
		Description:          "Monthly savings",
		Pattern:              pattern,
		StartDate:            domain.Date(2026, time.January, 20),
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}))
	jan20 := domain.Date(2026, time.January, 20)

	// Source view projects the outflow, destination view the inflow.
	grid, err := f.svc.MonthGrid(2026, time.January, &source.ID)
	require.NoError(t, err)
	assert.True(t, cellFor(t, grid, jan20).ProjectedAmount.Equal(dec(t, "-200.00")))

	grid, err = f.svc.MonthGrid(2026, time.January, &destination.ID)
	require.NoError(t, err)
	assert.True(t, cellFor(t, grid, jan20).ProjectedAmount.Equal(dec(t, "200.00")))

	detail, err := f.svc.DayDetail(jan20, &destination.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.Count)
	assert.True(t, detail.Items[0].Amount.Equal(dec(t, "200.00")))
	assert.Equal(t, "Savings", detail.Items[0].DestinationAccountName)

	timeline, err := f.svc.AccountTransactions(
		destination.ID, domain.Date(2026, time.January, 1), domain.Date(2026, time.January, 31), true)
	require.NoError(t, err)
	require.Len(t, timeline.Items, 1)
	assert.True(t, timeline.Items[0].Amount.Equal(dec(t, "200.00")))
}

func TestAccountTransactionsBalanceAndProjections(t *testing.T) {
	today := domain.Date(2026, time.January, 15)
	f := newFixture(t, today)
	account := f.addAccount(t, "Checking", "100.00")
	other := f.addAccount(t, "Savings", "0")

	f.addTransaction(t, account.ID, "-25.00", domain.Date(2026, time.January, 10), "Fuel")
	// Future-dated rows do not move the current balance.
	f.addTransaction(t, account.ID, "-10.00", domain.Date(2026, time.January, 20), "Scheduled payment")
	// Other account's rows never appear.
	f.addTransaction(t, other.ID, "-99.00", domain.Date(2026, time.January, 10), "Not mine")

	f.addRule(t, account.ID, "-50.00", 25, domain.Date(2026, time.January, 25))

	timeline, err := f.svc.AccountTransactions(
		account.ID, domain.Date(2026, time.January, 1), domain.Date(2026, time.January, 31), true)
	require.NoError(t, err)

	assert.True(t, timeline.CurrentBalance.Equal(dec(t, "75.00")))

	require.Len(t, timeline.Items, 3)
	// Sorted by date: actual Jan 10, actual Jan 20, projected Jan 25.
	assert.False(t, timeline.Items[0].Projected)
	assert.False(t, timeline.Items[1].Projected)
	assert.True(t, timeline.Items[2].Projected)
	assert.True(t, timeline.Items[2].Date.Equal(domain.Date(2026, time.January, 25)))
	assert.True(t, timeline.Items[2].Amount.Equal(dec(t, "-50.00")))
}

func TestAccountTransactionsUnknownAccount(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 15))

	_, err := f.svc.AccountTransactions(
		uuid.New(), domain.Date(2026, time.January, 1), domain.Date(2026, time.January, 31), false)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCacheRoundTripAndInvalidation(t *testing.T) {
	f := newFixture(t, domain.Date(2026, time.January, 15))

	totals := []transactions.DailyTotal{
		{Date: domain.Date(2026, time.January, 2), Amount: dec(t, "960.00"), Count: 2},
		{Date: domain.Date(2026, time.January, 9), Amount: dec(t, "-60.00"), Count: 1},
	}
	f.cache.PutDailyTotals(2026, time.January, nil, totals)

	got, ok := f.cache.GetDailyTotals(2026, time.January, nil)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[0].Amount.Equal(dec(t, "960.00")))
	assert.True(t, got[1].Date.Equal(domain.Date(2026, time.January, 9)))

	// A ledger mutation event drops the snapshot.
	f.bus.Emit(events.TransactionRealized, "recurring", nil)
	_, ok = f.cache.GetDailyTotals(2026, time.January, nil)
	assert.False(t, ok)
}

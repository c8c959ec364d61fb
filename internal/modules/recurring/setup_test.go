package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
	coinkeepertesting "github.com/avelis/coinkeeper/internal/testing"
)

// fixture wires the realization stack against throwaway databases.
type fixture struct {
	ledgerDB *database.DB
	plansDB  *database.DB
	rules    *Repository
	txs      *transactions.Repository
	accounts *accounts.Repository
	bus      *events.Bus
	svc      *RealizationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()

	ledgerDB := coinkeepertesting.NewTestDB(t, "ledger")
	plansDB := coinkeepertesting.NewTestDB(t, "plans")

	f := &fixture{
		ledgerDB: ledgerDB,
		plansDB:  plansDB,
		rules:    NewRepository(plansDB.Conn(), log),
		txs:      transactions.NewRepository(ledgerDB.Conn(), log),
		accounts: accounts.NewRepository(ledgerDB.Conn(), log),
		bus:      events.NewBus(log),
	}
	f.svc = NewRealizationService(ledgerDB, f.rules, f.txs, f.bus, log)
	return f
}

func (f *fixture) addAccount(t *testing.T, name string) domain.Account {
	t.Helper()
	a := domain.Account{
		ID:             uuid.New(),
		Name:           name,
		Type:           domain.AccountTypeChecking,
		Currency:       "USD",
		InitialBalance: decimal.Zero,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.accounts.Add(a))
	return a
}

func (f *fixture) addTransactionRule(t *testing.T, accountID uuid.UUID, amount string, dayOfMonth int, start time.Time) domain.RecurringTransaction {
	t.Helper()
	pattern, err := domain.NewMonthlyPattern(1, dayOfMonth)
	require.NoError(t, err)

	rule := domain.RecurringTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      dec(t, amount),
		Description: "Test recurring transaction",
		Pattern:     pattern,
		StartDate:   start,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.rules.AddTransactionRule(rule))
	return rule
}

func (f *fixture) addTransferRule(t *testing.T, sourceID, destID uuid.UUID, amount string, dayOfMonth int, start time.Time) domain.RecurringTransfer {
	t.Helper()
	pattern, err := domain.NewMonthlyPattern(1, dayOfMonth)
	require.NoError(t, err)

	rule := domain.RecurringTransfer{
		ID:                   uuid.New(),
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		Amount:               dec(t, amount),
		Description:          "Test recurring transfer",
		Pattern:              pattern,
		StartDate:            start,
		Active:               true,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, f.rules.AddTransferRule(rule))
	return rule
}

func (f *fixture) skipOccurrence(t *testing.T, ruleID uuid.UUID, kind domain.RuleKind, originalDate time.Time) {
	t.Helper()
	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       ruleID,
		RuleKind:     kind,
		OriginalDate: originalDate,
		Type:         domain.ExceptionSkipped,
		CreatedAt:    time.Now().UTC(),
	}))
}

// ledgerRows returns every transaction in the ledger, any account, any date.
func (f *fixture) ledgerRows(t *testing.T) []domain.Transaction {
	t.Helper()
	rows, err := f.txs.GetByDateRange(
		domain.Date(2000, time.January, 1), domain.Date(2100, time.January, 1), nil)
	require.NoError(t, err)
	return rows
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

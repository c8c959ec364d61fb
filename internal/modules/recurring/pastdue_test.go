package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/domain"
)

func newDetector(f *fixture, today time.Time) *PastDueDetector {
	return NewPastDueDetector(f.rules, f.txs, f.accounts, domain.FixedClock(today), zerolog.Nop())
}

func TestScanFindsMissedOccurrence(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))

	// Rule anchored on the 5th, today is the 11th: one missed occurrence,
	// six days overdue.
	d := newDetector(f, domain.Date(2026, time.January, 11))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, rule.ID, item.RuleID)
	assert.Equal(t, domain.RuleKindTransaction, item.Kind)
	assert.True(t, item.InstanceDate.Equal(domain.Date(2026, time.January, 5)))
	assert.Equal(t, 6, item.DaysPastDue)
	assert.True(t, item.Amount.Equal(dec(t, "-50.00")))
	assert.Equal(t, "Checking", item.AccountName)
}

func TestScanAggregatesTotals(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	f.addTransactionRule(t, account.ID, "-15.99", 3, domain.Date(2026, time.January, 3))
	f.addTransactionRule(t, account.ID, "-29.99", 7, domain.Date(2026, time.January, 7))

	d := newDetector(f, domain.Date(2026, time.January, 15))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalCount)
	require.NotNil(t, report.TotalAmount)
	assert.True(t, report.TotalAmount.Equal(dec(t, "-45.98")))
	require.NotNil(t, report.OldestDate)
	assert.True(t, report.OldestDate.Equal(domain.Date(2026, time.January, 3)))

	// Earliest instance first.
	require.Len(t, report.Items, 2)
	assert.True(t, report.Items[0].InstanceDate.Before(report.Items[1].InstanceDate))
}

func TestScanExcludesToday(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))

	// An occurrence dated today is due, not past due.
	d := newDetector(f, domain.Date(2026, time.January, 5))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	assert.Empty(t, report.Items)
	assert.Equal(t, 0, report.TotalCount)
	assert.Nil(t, report.OldestDate)
	assert.Nil(t, report.TotalAmount)
}

func TestScanLookbackWindow(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	f.addTransactionRule(t, account.ID, "-10.00", 1, domain.Date(2026, time.January, 1))

	// Today 2026-03-31: the window reaches back to 2026-03-01. The March 1
	// occurrence (30 days overdue) is in; Feb 1 and Jan 1 have aged out.
	d := newDetector(f, domain.Date(2026, time.March, 31))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].InstanceDate.Equal(domain.Date(2026, time.March, 1)))
	assert.Equal(t, 30, report.Items[0].DaysPastDue)
}

func TestScanExcludesSkippedAndRealized(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	skipped := f.addTransactionRule(t, account.ID, "-10.00", 5, domain.Date(2026, time.January, 5))
	realized := f.addTransactionRule(t, account.ID, "-20.00", 6, domain.Date(2026, time.January, 6))
	due := f.addTransactionRule(t, account.ID, "-30.00", 7, domain.Date(2026, time.January, 7))

	f.skipOccurrence(t, skipped.ID, domain.RuleKindTransaction, domain.Date(2026, time.January, 5))
	_, err := f.svc.RealizeTransaction(RealizeRequest{
		RuleID:       realized.ID,
		InstanceDate: domain.Date(2026, time.January, 6),
	})
	require.NoError(t, err)

	d := newDetector(f, domain.Date(2026, time.January, 15))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.Equal(t, due.ID, report.Items[0].RuleID)
}

func TestScanModifiedExceptionChangesAmount(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))

	newAmount := dec(t, "-75.00")
	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		RuleKind:     domain.RuleKindTransaction,
		OriginalDate: domain.Date(2026, time.January, 5),
		Type:         domain.ExceptionModified,
		Amount:       &newAmount,
		CreatedAt:    time.Now().UTC(),
	}))

	d := newDetector(f, domain.Date(2026, time.January, 11))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].Amount.Equal(newAmount))
	// The item stays keyed by the original instance date.
	assert.True(t, report.Items[0].InstanceDate.Equal(domain.Date(2026, time.January, 5)))
}

func TestScanFiltersByAccount(t *testing.T) {
	f := newFixture(t)
	checking := f.addAccount(t, "Checking")
	savings := f.addAccount(t, "Savings")
	mine := f.addTransactionRule(t, checking.ID, "-10.00", 5, domain.Date(2026, time.January, 5))
	f.addTransactionRule(t, savings.ID, "-20.00", 5, domain.Date(2026, time.January, 5))

	d := newDetector(f, domain.Date(2026, time.January, 11))
	report, err := d.Scan(&checking.ID)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.Equal(t, mine.ID, report.Items[0].RuleID)
}

func TestScanTransferCountsOnce(t *testing.T) {
	f := newFixture(t)
	source := f.addAccount(t, "Checking")
	dest := f.addAccount(t, "Savings")
	rule := f.addTransferRule(t, source.ID, dest.ID, "200.00", 1, domain.Date(2026, time.January, 1))

	d := newDetector(f, domain.Date(2026, time.January, 10))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	// One item for the transfer, not one per leg, signed as the outflow.
	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, rule.ID, item.RuleID)
	assert.Equal(t, domain.RuleKindTransfer, item.Kind)
	assert.True(t, item.Amount.Equal(dec(t, "-200.00")))
	assert.Equal(t, "Checking", item.AccountName)
	assert.Equal(t, "Savings", item.DestinationAccountName)
}

func TestScanRealizedTransferExcluded(t *testing.T) {
	f := newFixture(t)
	source := f.addAccount(t, "Checking")
	dest := f.addAccount(t, "Savings")
	rule := f.addTransferRule(t, source.ID, dest.ID, "200.00", 1, domain.Date(2026, time.January, 1))

	_, err := f.svc.RealizeTransfer(RealizeRequest{
		RuleID:       rule.ID,
		InstanceDate: domain.Date(2026, time.January, 1),
	})
	require.NoError(t, err)

	d := newDetector(f, domain.Date(2026, time.January, 10))
	report, err := d.Scan(nil)
	require.NoError(t, err)
	assert.Empty(t, report.Items)
}

func TestScanUnknownAccountNamedBestEffort(t *testing.T) {
	f := newFixture(t)
	// Rule references an account that was never created.
	rule := f.addTransactionRule(t, uuid.New(), "-10.00", 5, domain.Date(2026, time.January, 5))

	d := newDetector(f, domain.Date(2026, time.January, 11))
	report, err := d.Scan(nil)
	require.NoError(t, err)

	require.Len(t, report.Items, 1)
	assert.Equal(t, rule.ID, report.Items[0].RuleID)
	assert.Equal(t, unknownAccountName, report.Items[0].AccountName)
}

package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
)

func TestRealizeTransactionCreatesLedgerRow(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))
	instance := domain.Date(2026, time.January, 5)

	tx, err := f.svc.RealizeTransaction(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.NoError(t, err)

	assert.Equal(t, account.ID, tx.AccountID)
	assert.True(t, tx.Amount.Equal(dec(t, "-50.00")))
	assert.True(t, tx.Date.Equal(instance))
	require.NotNil(t, tx.RecurringRuleID)
	assert.Equal(t, rule.ID, *tx.RecurringRuleID)
	require.NotNil(t, tx.RecurringInstanceDate)
	assert.True(t, tx.RecurringInstanceDate.Equal(instance))

	persisted, err := f.txs.GetByRecurringInstance(rule.ID, instance)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, tx.ID, persisted.ID)
}

func TestRealizeTransactionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))
	instance := domain.Date(2026, time.January, 5)

	_, err := f.svc.RealizeTransaction(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.NoError(t, err)

	_, err = f.svc.RealizeTransaction(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.ErrorIs(t, err, domain.ErrAlreadyRealized)

	// No duplicate row was persisted.
	assert.Len(t, f.ledgerRows(t), 1)
}

func TestRealizeTransactionUnknownRule(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RealizeTransaction(RealizeRequest{
		RuleID:       uuid.New(),
		InstanceDate: domain.Date(2026, time.January, 5),
	})
	require.ErrorIs(t, err, domain.ErrRecurringTransactionNotFound)
}

func TestRealizeOverriddenDateKeepsOriginalIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))
	instance := domain.Date(2026, time.January, 5)
	effective := domain.Date(2026, time.January, 7)

	tx, err := f.svc.RealizeTransaction(RealizeRequest{
		RuleID:       rule.ID,
		InstanceDate: instance,
		Date:         &effective,
	})
	require.NoError(t, err)

	// Posted on the overridden date, keyed by the original one.
	assert.True(t, tx.Date.Equal(effective))
	require.NotNil(t, tx.RecurringInstanceDate)
	assert.True(t, tx.RecurringInstanceDate.Equal(instance))

	_, err = f.svc.RealizeTransaction(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.ErrorIs(t, err, domain.ErrAlreadyRealized)
}

func TestRealizeSkippedInstanceRefused(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))
	instance := domain.Date(2026, time.January, 5)
	f.skipOccurrence(t, rule.ID, domain.RuleKindTransaction, instance)

	_, err := f.svc.RealizeTransaction(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.ErrorIs(t, err, domain.ErrInstanceSkipped)
	assert.Empty(t, f.ledgerRows(t))
}

func TestRealizePrecedenceRequestOverException(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))
	instance := domain.Date(2026, time.January, 5)

	excAmount := dec(t, "-20.00")
	excDesc := "Exception description"
	require.NoError(t, f.rules.AddException(domain.Exception{
		ID:           uuid.New(),
		RuleID:       rule.ID,
		RuleKind:     domain.RuleKindTransaction,
		OriginalDate: instance,
		Type:         domain.ExceptionModified,
		Amount:       &excAmount,
		Description:  &excDesc,
		CreatedAt:    time.Now().UTC(),
	}))

	reqDesc := "Request description"
	tx, err := f.svc.RealizeTransaction(RealizeRequest{
		RuleID:       rule.ID,
		InstanceDate: instance,
		Description:  &reqDesc,
	})
	require.NoError(t, err)

	// Amount from the exception, description from the request.
	assert.True(t, tx.Amount.Equal(excAmount))
	assert.Equal(t, reqDesc, tx.Description)
}

func TestRealizeTransactionEmitsEvent(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "Checking")
	rule := f.addTransactionRule(t, account.ID, "-50.00", 5, domain.Date(2026, time.January, 5))

	var received []events.Event
	f.bus.Subscribe(events.TransactionRealized, func(e events.Event) {
		received = append(received, e)
	})

	_, err := f.svc.RealizeTransaction(RealizeRequest{
		RuleID:       rule.ID,
		InstanceDate: domain.Date(2026, time.January, 5),
	})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, rule.ID.String(), received[0].Data["rule_id"])
	assert.Equal(t, "2026-01-05", received[0].Data["instance_date"])
}

func TestRealizeTransferCreatesTwoLinkedRows(t *testing.T) {
	f := newFixture(t)
	source := f.addAccount(t, "Checking")
	dest := f.addAccount(t, "Savings")
	rule := f.addTransferRule(t, source.ID, dest.ID, "200.00", 1, domain.Date(2026, time.January, 1))
	instance := domain.Date(2026, time.January, 1)

	result, err := f.svc.RealizeTransfer(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.NoError(t, err)

	rows := f.ledgerRows(t)
	require.Len(t, rows, 2)

	byAccount := make(map[uuid.UUID]domain.Transaction, 2)
	for _, row := range rows {
		byAccount[row.AccountID] = row
	}

	sourceLeg, ok := byAccount[source.ID]
	require.True(t, ok)
	destLeg, ok := byAccount[dest.ID]
	require.True(t, ok)

	assert.True(t, sourceLeg.Amount.Equal(dec(t, "-200.00")))
	assert.True(t, destLeg.Amount.Equal(dec(t, "200.00")))

	// Both legs share the transfer group and the idempotency linkage.
	require.NotNil(t, sourceLeg.TransferGroupID)
	require.NotNil(t, destLeg.TransferGroupID)
	assert.Equal(t, *sourceLeg.TransferGroupID, *destLeg.TransferGroupID)
	assert.Equal(t, result.TransferGroupID, *sourceLeg.TransferGroupID)
	require.NotNil(t, sourceLeg.RecurringInstanceDate)
	require.NotNil(t, destLeg.RecurringInstanceDate)
	assert.True(t, sourceLeg.RecurringInstanceDate.Equal(instance))
	assert.True(t, destLeg.RecurringInstanceDate.Equal(instance))

	assert.Equal(t, result.SourceTransactionID, sourceLeg.ID)
	assert.Equal(t, result.DestinationTransactionID, destLeg.ID)
}

func TestRealizeTransferIsIdempotent(t *testing.T) {
	f := newFixture(t)
	source := f.addAccount(t, "Checking")
	dest := f.addAccount(t, "Savings")
	rule := f.addTransferRule(t, source.ID, dest.ID, "200.00", 1, domain.Date(2026, time.January, 1))
	instance := domain.Date(2026, time.January, 1)

	_, err := f.svc.RealizeTransfer(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.NoError(t, err)

	_, err = f.svc.RealizeTransfer(RealizeRequest{RuleID: rule.ID, InstanceDate: instance})
	require.ErrorIs(t, err, domain.ErrAlreadyRealized)

	// Retry must not leave a third row behind.
	assert.Len(t, f.ledgerRows(t), 2)
}

func TestRealizeTransferUnknownRule(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RealizeTransfer(RealizeRequest{
		RuleID:       uuid.New(),
		InstanceDate: domain.Date(2026, time.January, 1),
	})
	require.ErrorIs(t, err, domain.ErrRecurringTransferNotFound)
}

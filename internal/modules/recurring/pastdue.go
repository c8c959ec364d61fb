package recurring

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
)

// pastDueLookbackDays bounds the scan window: occurrences older than this are
// not reported.
const pastDueLookbackDays = 30

// AccountSource resolves account display names, best effort.
type AccountSource interface {
	GetByID(id uuid.UUID) (*domain.Account, error)
}

// unknownAccountName is reported when an account lookup fails; a naming
// failure never suppresses a past-due item.
const unknownAccountName = "Unknown account"

// pastDueSource is one recurring rule variant's contribution to a scan.
// Each variant supplies its own idempotency check and item construction.
type pastDueSource interface {
	candidates(d *PastDueDetector, accountID *uuid.UUID, windowStart, today time.Time) ([]domain.PastDueItem, error)
}

// PastDueDetector scans active recurring rules for occurrences that are due
// but neither skipped nor realized.
type PastDueDetector struct {
	rules    *Repository
	txs      *transactions.Repository
	accounts AccountSource
	clock    domain.Clock
	log      zerolog.Logger
}

// NewPastDueDetector creates a new past-due detector. The clock supplies the
// reference "today" and is injectable for deterministic scans.
func NewPastDueDetector(
	rules *Repository,
	txs *transactions.Repository,
	accounts AccountSource,
	clock domain.Clock,
	log zerolog.Logger,
) *PastDueDetector {
	return &PastDueDetector{
		rules:    rules,
		txs:      txs,
		accounts: accounts,
		clock:    clock,
		log:      log.With().Str("service", "pastdue").Logger(),
	}
}

// Scan returns every past-due occurrence across active rules, optionally
// restricted to rules the given account participates in. Items are ordered
// earliest instance date first. An occurrence dated exactly "today" is not
// yet past-due and is excluded.
func (d *PastDueDetector) Scan(accountID *uuid.UUID) (*domain.PastDueReport, error) {
	today := domain.DateOf(d.clock.Now())
	windowStart := today.AddDate(0, 0, -pastDueLookbackDays)

	sources := []pastDueSource{transactionRuleSource{}, transferRuleSource{}}

	var items []domain.PastDueItem
	for _, src := range sources {
		found, err := src.candidates(d, accountID, windowStart, today)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].InstanceDate.Before(items[j].InstanceDate)
	})

	report := &domain.PastDueReport{
		Items:      items,
		TotalCount: len(items),
	}
	if len(items) > 0 {
		oldest := items[0].InstanceDate
		report.OldestDate = &oldest

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Amount)
		}
		report.TotalAmount = &total
	}

	d.log.Debug().
		Int("count", report.TotalCount).
		Str("today", today.Format(domain.DateFormat)).
		Msg("Past-due scan complete")

	return report, nil
}

// dueOccurrences expands a schedule inside the lookback window and filters
// out skipped and realized occurrences. realized reports whether an
// occurrence already has its ledger row(s).
func (d *PastDueDetector) dueOccurrences(
	ruleID uuid.UUID,
	schedule domain.Schedule,
	windowStart, today time.Time,
	realized func(instanceDate time.Time) (bool, error),
) ([]time.Time, []domain.Exception, error) {
	windowEnd := today.AddDate(0, 0, -1)
	exceptions, err := d.rules.GetExceptionsInRange(ruleID, windowStart, windowEnd)
	if err != nil {
		return nil, nil, err
	}

	var dates []time.Time
	var excs []domain.Exception
	for occ := range schedule.OccurrencesBetween(windowStart, windowEnd) {
		var exc *domain.Exception
		if e, ok := exceptions[occ]; ok {
			exc = &e
		}
		if exc != nil && exc.Type == domain.ExceptionSkipped {
			continue
		}

		done, err := realized(occ)
		if err != nil {
			return nil, nil, err
		}
		if done {
			continue
		}

		dates = append(dates, occ)
		if exc != nil {
			excs = append(excs, *exc)
		} else {
			excs = append(excs, domain.Exception{})
		}
	}
	return dates, excs, nil
}

// accountName resolves an account's display name, best effort. Lookup
// failures are logged and reported as a placeholder name.
func (d *PastDueDetector) accountName(id uuid.UUID) string {
	account, err := d.accounts.GetByID(id)
	if err != nil {
		d.log.Warn().Err(err).Str("account_id", id.String()).Msg("Failed to resolve account name")
		return unknownAccountName
	}
	return account.Name
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// transactionRuleSource contributes plain recurring transaction occurrences.
type transactionRuleSource struct{}

func (transactionRuleSource) candidates(d *PastDueDetector, accountID *uuid.UUID, windowStart, today time.Time) ([]domain.PastDueItem, error) {
	var rules []domain.RecurringTransaction
	var err error
	if accountID != nil {
		rules, err = d.rules.GetActiveTransactionsByAccount(*accountID)
	} else {
		rules, err = d.rules.GetActiveTransactions()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active recurring transactions: %w", err)
	}

	var items []domain.PastDueItem
	for _, rule := range rules {
		dates, excs, err := d.dueOccurrences(rule.ID, rule.Schedule(), windowStart, today,
			func(instanceDate time.Time) (bool, error) {
				t, err := d.txs.GetByRecurringInstance(rule.ID, instanceDate)
				return t != nil, err
			})
		if err != nil {
			return nil, err
		}

		for i, occ := range dates {
			res := domain.ResolveOccurrence(domain.OccurrenceDefaults{
				Date:        occ,
				Amount:      rule.Amount,
				Description: rule.Description,
			}, excPtr(excs[i]), nil)

			items = append(items, domain.PastDueItem{
				RuleID:       rule.ID,
				Kind:         domain.RuleKindTransaction,
				InstanceDate: occ,
				DaysPastDue:  daysBetween(occ, today),
				Description:  res.Description,
				Amount:       res.Amount,
				AccountName:  d.accountName(rule.AccountID),
			})
		}
	}
	return items, nil
}

// transferRuleSource contributes recurring transfer occurrences. A transfer
// counts once with its signed (outflow) amount, not once per leg.
type transferRuleSource struct{}

func (transferRuleSource) candidates(d *PastDueDetector, accountID *uuid.UUID, windowStart, today time.Time) ([]domain.PastDueItem, error) {
	var rules []domain.RecurringTransfer
	var err error
	if accountID != nil {
		rules, err = d.rules.GetActiveTransfersByAccount(*accountID)
	} else {
		rules, err = d.rules.GetActiveTransfers()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active recurring transfers: %w", err)
	}

	var items []domain.PastDueItem
	for _, rule := range rules {
		dates, excs, err := d.dueOccurrences(rule.ID, rule.Schedule(), windowStart, today,
			func(instanceDate time.Time) (bool, error) {
				t, err := d.txs.GetByRecurringTransferInstance(rule.ID, instanceDate)
				return t != nil, err
			})
		if err != nil {
			return nil, err
		}

		for i, occ := range dates {
			res := domain.ResolveOccurrence(domain.OccurrenceDefaults{
				Date:        occ,
				Amount:      rule.Amount,
				Description: rule.Description,
			}, excPtr(excs[i]), nil)

			items = append(items, domain.PastDueItem{
				RuleID:                 rule.ID,
				Kind:                   domain.RuleKindTransfer,
				InstanceDate:           occ,
				DaysPastDue:            daysBetween(occ, today),
				Description:            res.Description,
				Amount:                 res.Amount.Neg(),
				AccountName:            d.accountName(rule.SourceAccountID),
				DestinationAccountName: d.accountName(rule.DestinationAccountID),
			})
		}
	}
	return items, nil
}

// excPtr maps the zero Exception sentinel back to nil for overlay resolution.
func excPtr(e domain.Exception) *domain.Exception {
	if e.Type == "" {
		return nil
	}
	return &e
}

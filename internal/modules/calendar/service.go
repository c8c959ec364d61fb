// Package calendar merges actual per-day transaction totals with projected
// recurring occurrences into calendar grids, day details, and per-account
// transaction timelines.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
	"github.com/avelis/coinkeeper/internal/utils"
)

// gridCells is the fixed calendar grid size: 6 weeks of 7 days, starting on
// Sunday.
const gridCells = 42

// RuleSource is the slice of the recurring rule store the calendar needs.
type RuleSource interface {
	GetActiveTransactions() ([]domain.RecurringTransaction, error)
	GetActiveTransactionsByAccount(accountID uuid.UUID) ([]domain.RecurringTransaction, error)
	GetActiveTransfers() ([]domain.RecurringTransfer, error)
	GetActiveTransfersByAccount(accountID uuid.UUID) ([]domain.RecurringTransfer, error)
	GetExceptionsInRange(ruleID uuid.UUID, from, to time.Time) (map[time.Time]domain.Exception, error)
}

// AccountSource is the slice of the account store the calendar needs.
type AccountSource interface {
	GetByID(id uuid.UUID) (*domain.Account, error)
	GetAll() ([]domain.Account, error)
}

// DayCell is one cell of the month grid.
type DayCell struct {
	Date            time.Time       `json:"date"`
	IsCurrentMonth  bool            `json:"is_current_month"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	ActualCount     int             `json:"actual_count"`
	ProjectedAmount decimal.Decimal `json:"projected_amount"`
	ProjectedCount  int             `json:"projected_count"`
}

// MonthGrid is a 42-cell calendar month with its actual-money summary.
type MonthGrid struct {
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	Days          []DayCell       `json:"days"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetChange     decimal.Decimal `json:"net_change"`
}

// DayItem is one entry of a day detail: either a realized transaction or a
// projected occurrence.
type DayItem struct {
	Projected              bool            `json:"projected"`
	Kind                   string          `json:"kind"` // "transaction", "recurring-transaction", "recurring-transfer"
	TransactionID          *uuid.UUID      `json:"transaction_id,omitempty"`
	RuleID                 *uuid.UUID      `json:"rule_id,omitempty"`
	AccountName            string          `json:"account_name"`
	DestinationAccountName string          `json:"destination_account_name,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Description            string          `json:"description"`
}

// DayDetail merges realized and projected items landing on one date.
type DayDetail struct {
	Date           time.Time       `json:"date"`
	Items          []DayItem       `json:"items"`
	TotalActual    decimal.Decimal `json:"total_actual"`
	TotalProjected decimal.Decimal `json:"total_projected"`
	Combined       decimal.Decimal `json:"combined"`
	Count          int             `json:"count"`
}

// TimelineItem is one row of an account transaction list.
type TimelineItem struct {
	Projected     bool            `json:"projected"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	RuleID        *uuid.UUID      `json:"rule_id,omitempty"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// AccountTimeline is an account's merged realized and projected activity plus
// its current balance. Projected occurrences never move the current balance.
type AccountTimeline struct {
	Account        domain.Account  `json:"account"`
	Items          []TimelineItem  `json:"items"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// Service builds calendar and timeline views.
type Service struct {
	txs      *transactions.Repository
	rules    RuleSource
	accounts AccountSource
	clock    domain.Clock
	cache    *Cache // optional
	log      zerolog.Logger
}

// NewService creates a new calendar projection service. cache may be nil.
func NewService(
	txs *transactions.Repository,
	rules RuleSource,
	accounts AccountSource,
	clock domain.Clock,
	cache *Cache,
	log zerolog.Logger,
) *Service {
	return &Service{
		txs:      txs,
		rules:    rules,
		accounts: accounts,
		clock:    clock,
		cache:    cache,
		log:      log.With().Str("service", "calendar").Logger(),
	}
}

// MonthGrid returns the 42-cell grid for a month: trailing days of the
// previous month, the whole target month, and leading days of the next month.
// Actual totals come from realized transactions; projected amounts augment
// days from not-yet-realized recurring occurrences. A realized occurrence
// always takes precedence over its projection for the same (rule, date).
func (s *Service) MonthGrid(year int, month time.Month, accountID *uuid.UUID) (*MonthGrid, error) {
	defer utils.OperationTimer("calendar_month_grid", s.log)()

	first := domain.Date(year, month, 1)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	gridEnd := gridStart.AddDate(0, 0, gridCells-1)

	actual, err := s.dailyTotals(year, month, accountID)
	if err != nil {
		return nil, err
	}

	// Actual totals for the previous/next month days visible in the grid.
	edges, err := s.txs.GetByDateRange(gridStart, gridEnd, accountID)
	if err != nil {
		return nil, err
	}
	actualByDay := make(map[time.Time]*DayCell, gridCells)
	for _, t := range edges {
		day := domain.DateOf(t.Date)
		if day.Month() == month && day.Year() == year {
			continue // covered by dailyTotals below
		}
		cell, ok := actualByDay[day]
		if !ok {
			cell = &DayCell{Date: day}
			actualByDay[day] = cell
		}
		cell.ActualAmount = cell.ActualAmount.Add(t.Amount)
		cell.ActualCount++
	}
	for _, dt := range actual {
		actualByDay[dt.Date] = &DayCell{Date: dt.Date, ActualAmount: dt.Amount, ActualCount: dt.Count}
	}

	projected, err := s.projections(gridStart, gridEnd, accountID, realizedKeys(edges))
	if err != nil {
		return nil, err
	}

	grid := &MonthGrid{Year: year, Month: month, Days: make([]DayCell, 0, gridCells)}
	for i := 0; i < gridCells; i++ {
		day := gridStart.AddDate(0, 0, i)
		cell := DayCell{Date: day, IsCurrentMonth: day.Month() == month && day.Year() == year}
		if a, ok := actualByDay[day]; ok {
			cell.ActualAmount = a.ActualAmount
			cell.ActualCount = a.ActualCount
		}
		for _, p := range projected {
			if p.date.Equal(day) {
				cell.ProjectedAmount = cell.ProjectedAmount.Add(p.amount)
				cell.ProjectedCount++
			}
		}
		grid.Days = append(grid.Days, cell)
	}

	// Month summary over actual amounts of the target month only.
	monthTxs, err := s.txs.GetByDateRange(first, domain.Date(year, month, domain.DaysInMonth(year, month)), accountID)
	if err != nil {
		return nil, err
	}
	for _, t := range monthTxs {
		if t.Amount.IsPositive() {
			grid.TotalIncome = grid.TotalIncome.Add(t.Amount)
		} else {
			grid.TotalExpenses = grid.TotalExpenses.Add(t.Amount)
		}
	}
	grid.NetChange = grid.TotalIncome.Add(grid.TotalExpenses)

	return grid, nil
}

// DayDetail merges realized transactions and non-skipped, not-yet-realized
// occurrences landing on one date, with account names resolved.
func (s *Service) DayDetail(date time.Time, accountID *uuid.UUID) (*DayDetail, error) {
	day := domain.DateOf(date)

	txs, err := s.txs.GetByDateRange(day, day, accountID)
	if err != nil {
		return nil, err
	}

	names, err := s.accountNames()
	if err != nil {
		return nil, err
	}

	detail := &DayDetail{Date: day, Items: []DayItem{}}
	for _, t := range txs {
		detail.Items = append(detail.Items, DayItem{
			Kind:          "transaction",
			TransactionID: ptrUUID(t.ID),
			RuleID:        t.RecurringRuleID,
			AccountName:   names[t.AccountID],
			Amount:        t.Amount,
			Description:   t.Description,
		})
		detail.TotalActual = detail.TotalActual.Add(t.Amount)
	}

	// Exceptions can move an occurrence off its scheduled date, so expand a
	// window around the day and keep only projections whose effective date
	// lands on it.
	projected, err := s.projections(day.AddDate(0, -1, 0), day.AddDate(0, 1, 0), accountID, realizedKeys(txs))
	if err != nil {
		return nil, err
	}
	for _, p := range projected {
		if !p.date.Equal(day) {
			continue
		}
		item := DayItem{
			Projected:   true,
			Kind:        string(p.kind),
			RuleID:      ptrUUID(p.ruleID),
			AccountName: names[p.accountID],
			Amount:      p.amount,
			Description: p.description,
		}
		if p.kind == domain.RuleKindTransfer {
			item.DestinationAccountName = names[p.destinationID]
		}
		detail.Items = append(detail.Items, item)
		detail.TotalProjected = detail.TotalProjected.Add(p.amount)
	}

	detail.Combined = detail.TotalActual.Add(detail.TotalProjected)
	detail.Count = len(detail.Items)
	return detail, nil
}

// AccountTransactions returns an account's realized transactions in [from,
// to], merged with projected recurring occurrences when includeRecurring is
// set, plus the current balance: initial balance plus all realized amounts up
// to today.
func (s *Service) AccountTransactions(accountID uuid.UUID, from, to time.Time, includeRecurring bool) (*AccountTimeline, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}

	from = domain.DateOf(from)
	to = domain.DateOf(to)

	txs, err := s.txs.GetByDateRange(from, to, &accountID)
	if err != nil {
		return nil, err
	}

	timeline := &AccountTimeline{Account: *account, Items: []TimelineItem{}}
	for _, t := range txs {
		timeline.Items = append(timeline.Items, TimelineItem{
			TransactionID: ptrUUID(t.ID),
			RuleID:        t.RecurringRuleID,
			Date:          t.Date,
			Amount:        t.Amount,
			Description:   t.Description,
		})
	}

	if includeRecurring {
		projected, err := s.projections(from, to, &accountID, realizedKeys(txs))
		if err != nil {
			return nil, err
		}
		for _, p := range projected {
			timeline.Items = append(timeline.Items, TimelineItem{
				Projected:   true,
				RuleID:      ptrUUID(p.ruleID),
				Date:        p.date,
				Amount:      p.amount,
				Description: p.description,
			})
		}
		sort.SliceStable(timeline.Items, func(i, j int) bool {
			return timeline.Items[i].Date.Before(timeline.Items[j].Date)
		})
	}

	balance, err := s.currentBalance(*account)
	if err != nil {
		return nil, err
	}
	timeline.CurrentBalance = balance

	return timeline, nil
}

// currentBalance is the initial balance plus the signed sum of all realized
// transactions dated up to today.
func (s *Service) currentBalance(account domain.Account) (decimal.Decimal, error) {
	today := domain.DateOf(s.clock.Now())
	realized, err := s.txs.GetByDateRange(domain.Date(1970, time.January, 1), today, &account.ID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := account.InitialBalance
	for _, t := range realized {
		balance = balance.Add(t.Amount)
	}
	return balance, nil
}

// projection is one not-yet-realized occurrence inside a window.
type projection struct {
	ruleID        uuid.UUID
	kind          domain.RuleKind
	accountID     uuid.UUID
	destinationID uuid.UUID
	date          time.Time
	amount        decimal.Decimal
	description   string
}

// projections expands active rules inside [from, to], drops skipped
// occurrences and any occurrence present in realized, and applies exception
// overlays to dates and amounts. Projections land on their effective
// (possibly overridden) date.
func (s *Service) projections(from, to time.Time, accountID *uuid.UUID, realized map[string]bool) ([]projection, error) {
	var out []projection

	var txRules []domain.RecurringTransaction
	var err error
	if accountID != nil {
		txRules, err = s.rules.GetActiveTransactionsByAccount(*accountID)
	} else {
		txRules, err = s.rules.GetActiveTransactions()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring transactions for projection: %w", err)
	}

	for _, rule := range txRules {
		projs, err := s.expandRule(rule.ID, domain.RuleKindTransaction, rule.Schedule(), from, to, realized,
			domain.OccurrenceDefaults{Amount: rule.Amount, Description: rule.Description})
		if err != nil {
			return nil, err
		}
		for i := range projs {
			projs[i].accountID = rule.AccountID
		}
		out = append(out, projs...)
	}

	var transferRules []domain.RecurringTransfer
	if accountID != nil {
		transferRules, err = s.rules.GetActiveTransfersByAccount(*accountID)
	} else {
		transferRules, err = s.rules.GetActiveTransfers()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring transfers for projection: %w", err)
	}

	for _, rule := range transferRules {
		projs, err := s.expandRule(rule.ID, domain.RuleKindTransfer, rule.Schedule(), from, to, realized,
			domain.OccurrenceDefaults{Amount: rule.Amount, Description: rule.Description})
		if err != nil {
			return nil, err
		}
		for i := range projs {
			// Exceptions override the positive transfer amount; the outflow
			// sign is applied after resolution. When the view is filtered to
			// the destination account the occurrence is its incoming leg and
			// keeps the positive sign.
			projs[i].amount = projs[i].amount.Neg()
			if accountID != nil && *accountID == rule.DestinationAccountID {
				projs[i].amount = projs[i].amount.Neg()
			}
			projs[i].accountID = rule.SourceAccountID
			projs[i].destinationID = rule.DestinationAccountID
		}
		out = append(out, projs...)
	}

	return out, nil
}

func (s *Service) expandRule(
	ruleID uuid.UUID,
	kind domain.RuleKind,
	schedule domain.Schedule,
	from, to time.Time,
	realized map[string]bool,
	defaults domain.OccurrenceDefaults,
) ([]projection, error) {
	exceptions, err := s.rules.GetExceptionsInRange(ruleID, from, to)
	if err != nil {
		return nil, err
	}

	var out []projection
	for occ := range schedule.OccurrencesBetween(from, to) {
		if realized[realizedKey(ruleID, occ)] {
			continue
		}

		var exc *domain.Exception
		if e, ok := exceptions[occ]; ok {
			exc = &e
		}
		defaults.Date = occ
		res := domain.ResolveOccurrence(defaults, exc, nil)
		if res.Skipped {
			continue
		}

		out = append(out, projection{
			ruleID:      ruleID,
			kind:        kind,
			date:        res.Date,
			amount:      res.Amount,
			description: res.Description,
		})
	}
	return out, nil
}

// dailyTotals reads per-day totals for the month through the cache when one
// is configured.
func (s *Service) dailyTotals(year int, month time.Month, accountID *uuid.UUID) ([]transactions.DailyTotal, error) {
	if s.cache != nil {
		if totals, ok := s.cache.GetDailyTotals(year, month, accountID); ok {
			return totals, nil
		}
	}

	totals, err := s.txs.GetDailyTotals(year, month, accountID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.PutDailyTotals(year, month, accountID, totals)
	}
	return totals, nil
}

func (s *Service) accountNames() (map[uuid.UUID]string, error) {
	accounts, err := s.accounts.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	names := make(map[uuid.UUID]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

// realizedKeys indexes transactions by their recurring linkage so projection
// skips occurrences that already have ledger rows.
func realizedKeys(txs []domain.Transaction) map[string]bool {
	out := make(map[string]bool)
	for _, t := range txs {
		if t.RecurringRuleID != nil && t.RecurringInstanceDate != nil {
			out[realizedKey(*t.RecurringRuleID, *t.RecurringInstanceDate)] = true
		}
	}
	return out
}

func realizedKey(ruleID uuid.UUID, instanceDate time.Time) string {
	return ruleID.String() + "|" + instanceDate.Format(domain.DateFormat)
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}

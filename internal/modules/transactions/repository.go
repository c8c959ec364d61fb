// Package transactions provides the repository for the permanent transaction
// ledger in ledger.db. Rows are append-only; the engine never updates or
// deletes a realized transaction.
package transactions

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
)

// DailyTotal is the aggregate of one calendar day's realized transactions.
type DailyTotal struct {
	Date   time.Time
	Amount decimal.Decimal
	Count  int
}

// Repository handles transaction persistence in ledger.db.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new transaction repository.
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "transactions").Logger(),
	}
}

const transactionColumns = `id, account_id, category_id, amount, date, description,
	transfer_group_id, recurring_rule_id, recurring_instance_date, created_at`

// execer covers *sql.DB and *sql.Tx so inserts can join a unit of work.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Add persists a transaction outside any transaction scope.
func (r *Repository) Add(t domain.Transaction) error {
	return r.insert(r.ledgerDB, t)
}

// AddTx persists a transaction inside the given unit of work. The caller owns
// commit and rollback.
func (r *Repository) AddTx(tx *sql.Tx, t domain.Transaction) error {
	return r.insert(tx, t)
}

func (r *Repository) insert(db execer, t domain.Transaction) error {
	_, err := db.Exec(
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(),
		t.AccountID.String(),
		uuidPtrString(t.CategoryID),
		t.Amount.String(),
		t.Date.Format(domain.DateFormat),
		t.Description,
		uuidPtrString(t.TransferGroupID),
		uuidPtrString(t.RecurringRuleID),
		datePtrString(t.RecurringInstanceDate),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		// The partial unique index on (rule, instance date, account) closes
		// the race between concurrent realizations; surface it as the domain
		// idempotency violation.
		if t.RecurringRuleID != nil && isUniqueViolation(err) {
			return domain.ErrAlreadyRealized
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	r.log.Debug().
		Str("transaction_id", t.ID.String()).
		Str("account_id", t.AccountID.String()).
		Str("amount", t.Amount.String()).
		Msg("Inserted transaction")
	return nil
}

// GetByDateRange returns transactions with from <= date <= to, optionally
// restricted to one account, ordered by date then creation time.
func (r *Repository) GetByDateRange(from, to time.Time, accountID *uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE date >= ? AND date <= ?`
	args := []interface{}{from.Format(domain.DateFormat), to.Format(domain.DateFormat)}

	if accountID != nil {
		query += ` AND account_id = ?`
		args = append(args, accountID.String())
	}
	query += ` ORDER BY date, created_at`

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by date range: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetDailyTotals returns per-day amount sums and row counts for one calendar
// month, optionally restricted to one account.
func (r *Repository) GetDailyTotals(year int, month time.Month, accountID *uuid.UUID) ([]DailyTotal, error) {
	first := domain.Date(year, month, 1)
	last := domain.Date(year, month, domain.DaysInMonth(year, month))

	// Amounts are decimal TEXT, so summing happens here, not in SQL.
	txs, err := r.GetByDateRange(first, last, accountID)
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]*DailyTotal)
	for _, t := range txs {
		day := domain.DateOf(t.Date)
		dt, ok := totals[day]
		if !ok {
			dt = &DailyTotal{Date: day}
			totals[day] = dt
		}
		dt.Amount = dt.Amount.Add(t.Amount)
		dt.Count++
	}

	out := make([]DailyTotal, 0, len(totals))
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if dt, ok := totals[d]; ok {
			out = append(out, *dt)
		}
	}
	return out, nil
}

// GetByRecurringInstance returns the realized transaction for a plain
// recurring rule occurrence, or nil when none exists.
func (r *Repository) GetByRecurringInstance(ruleID uuid.UUID, instanceDate time.Time) (*domain.Transaction, error) {
	return r.recurringInstanceRow(
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE recurring_rule_id = ? AND recurring_instance_date = ? AND transfer_group_id IS NULL`,
		ruleID, instanceDate)
}

// GetByRecurringTransferInstance returns the realized source-leg transaction
// for a recurring transfer occurrence, or nil when none exists. The source
// leg is the negative one; both legs commit together, so checking one leg is
// sufficient to detect a realized transfer.
func (r *Repository) GetByRecurringTransferInstance(ruleID uuid.UUID, instanceDate time.Time) (*domain.Transaction, error) {
	return r.recurringInstanceRow(
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE recurring_rule_id = ? AND recurring_instance_date = ? AND transfer_group_id IS NOT NULL
		 ORDER BY amount LIMIT 1`,
		ruleID, instanceDate)
}

func (r *Repository) recurringInstanceRow(query string, ruleID uuid.UUID, instanceDate time.Time) (*domain.Transaction, error) {
	row := r.ledgerDB.QueryRow(query, ruleID.String(), instanceDate.Format(domain.DateFormat))
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring instance %s/%s: %w",
			ruleID, instanceDate.Format(domain.DateFormat), err)
	}
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		idStr, accountStr, amountStr, dateStr, description, createdAtStr string
		categoryStr, transferGroupStr, ruleStr, instanceDateStr          sql.NullString
	)
	err := row.Scan(&idStr, &accountStr, &categoryStr, &amountStr, &dateStr, &description,
		&transferGroupStr, &ruleStr, &instanceDateStr, &createdAtStr)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", idStr, err)
	}
	accountID, err := uuid.Parse(accountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountStr, err)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
	}

	t := &domain.Transaction{
		ID:          id,
		AccountID:   accountID,
		Amount:      amount,
		Date:        date,
		Description: description,
		CreatedAt:   createdAt,
	}

	if t.CategoryID, err = parseUUIDPtr(categoryStr); err != nil {
		return nil, err
	}
	if t.TransferGroupID, err = parseUUIDPtr(transferGroupStr); err != nil {
		return nil, err
	}
	if t.RecurringRuleID, err = parseUUIDPtr(ruleStr); err != nil {
		return nil, err
	}
	if instanceDateStr.Valid {
		d, err := domain.ParseDate(instanceDateStr.String)
		if err != nil {
			return nil, fmt.Errorf("invalid recurring_instance_date %q: %w", instanceDateStr.String, err)
		}
		t.RecurringInstanceDate = &d
	}

	return t, nil
}

func parseUUIDPtr(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid uuid %q: %w", s.String, err)
	}
	return &id, nil
}

func uuidPtrString(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func datePtrString(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateFormat)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Package recurring implements the recurrence and realization engine:
// recurring rule storage, per-occurrence exceptions, idempotent realization
// of occurrences into ledger transactions, and past-due detection.
package recurring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
)

// Repository handles recurring rule and exception persistence in plans.db.
type Repository struct {
	plansDB *sql.DB
	log     zerolog.Logger
}

// NewRepository creates a new recurring rule repository.
func NewRepository(plansDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		plansDB: plansDB,
		log:     log.With().Str("repo", "recurring").Logger(),
	}
}

const transactionRuleColumns = `id, account_id, category_id, amount, description,
	interval, day_of_month, start_date, end_date, active, created_at`

const transferRuleColumns = `id, source_account_id, destination_account_id, amount, description,
	interval, day_of_month, start_date, end_date, active, created_at`

// AddTransactionRule persists a recurring transaction rule.
func (r *Repository) AddTransactionRule(rule domain.RecurringTransaction) error {
	if err := rule.Pattern.Validate(); err != nil {
		return err
	}
	_, err := r.plansDB.Exec(
		`INSERT INTO recurring_transactions (`+transactionRuleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(),
		rule.AccountID.String(),
		uuidPtrString(rule.CategoryID),
		rule.Amount.String(),
		rule.Description,
		rule.Pattern.Interval,
		rule.Pattern.DayOfMonth,
		rule.StartDate.Format(domain.DateFormat),
		datePtrString(rule.EndDate),
		boolToInt(rule.Active),
		rule.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring transaction rule: %w", err)
	}

	r.log.Debug().Str("rule_id", rule.ID.String()).Msg("Added recurring transaction rule")
	return nil
}

// AddTransferRule persists a recurring transfer rule.
func (r *Repository) AddTransferRule(rule domain.RecurringTransfer) error {
	if err := rule.Pattern.Validate(); err != nil {
		return err
	}
	_, err := r.plansDB.Exec(
		`INSERT INTO recurring_transfers (`+transferRuleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID.String(),
		rule.SourceAccountID.String(),
		rule.DestinationAccountID.String(),
		rule.Amount.String(),
		rule.Description,
		rule.Pattern.Interval,
		rule.Pattern.DayOfMonth,
		rule.StartDate.Format(domain.DateFormat),
		datePtrString(rule.EndDate),
		boolToInt(rule.Active),
		rule.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring transfer rule: %w", err)
	}

	r.log.Debug().Str("rule_id", rule.ID.String()).Msg("Added recurring transfer rule")
	return nil
}

// GetActiveTransactions returns all active recurring transaction rules.
func (r *Repository) GetActiveTransactions() ([]domain.RecurringTransaction, error) {
	return r.queryTransactionRules(
		`SELECT ` + transactionRuleColumns + ` FROM recurring_transactions WHERE active = 1 ORDER BY created_at`)
}

// GetActiveTransactionsByAccount returns active recurring transaction rules
// for one account.
func (r *Repository) GetActiveTransactionsByAccount(accountID uuid.UUID) ([]domain.RecurringTransaction, error) {
	return r.queryTransactionRules(
		`SELECT `+transactionRuleColumns+` FROM recurring_transactions
		 WHERE active = 1 AND account_id = ? ORDER BY created_at`, accountID.String())
}

// GetActiveTransfers returns all active recurring transfer rules.
func (r *Repository) GetActiveTransfers() ([]domain.RecurringTransfer, error) {
	return r.queryTransferRules(
		`SELECT ` + transferRuleColumns + ` FROM recurring_transfers WHERE active = 1 ORDER BY created_at`)
}

// GetActiveTransfersByAccount returns active recurring transfer rules where
// the account participates as source or destination.
func (r *Repository) GetActiveTransfersByAccount(accountID uuid.UUID) ([]domain.RecurringTransfer, error) {
	return r.queryTransferRules(
		`SELECT `+transferRuleColumns+` FROM recurring_transfers
		 WHERE active = 1 AND (source_account_id = ? OR destination_account_id = ?)
		 ORDER BY created_at`, accountID.String(), accountID.String())
}

// GetTransactionByID returns one recurring transaction rule. Returns
// domain.ErrRecurringTransactionNotFound when the id does not exist.
func (r *Repository) GetTransactionByID(id uuid.UUID) (*domain.RecurringTransaction, error) {
	rules, err := r.queryTransactionRules(
		`SELECT `+transactionRuleColumns+` FROM recurring_transactions WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, domain.ErrRecurringTransactionNotFound
	}
	return &rules[0], nil
}

// GetTransferByID returns one recurring transfer rule. Returns
// domain.ErrRecurringTransferNotFound when the id does not exist.
func (r *Repository) GetTransferByID(id uuid.UUID) (*domain.RecurringTransfer, error) {
	rules, err := r.queryTransferRules(
		`SELECT `+transferRuleColumns+` FROM recurring_transfers WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, domain.ErrRecurringTransferNotFound
	}
	return &rules[0], nil
}

// DeactivateTransaction soft-disables a recurring transaction rule.
func (r *Repository) DeactivateTransaction(id uuid.UUID) error {
	return r.deactivate("recurring_transactions", id, domain.ErrRecurringTransactionNotFound)
}

// DeactivateTransfer soft-disables a recurring transfer rule.
func (r *Repository) DeactivateTransfer(id uuid.UUID) error {
	return r.deactivate("recurring_transfers", id, domain.ErrRecurringTransferNotFound)
}

func (r *Repository) deactivate(table string, id uuid.UUID, notFound error) error {
	result, err := r.plansDB.Exec(`UPDATE `+table+` SET active = 0 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate rule %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}

	r.log.Debug().Str("rule_id", id.String()).Str("table", table).Msg("Deactivated rule")
	return nil
}

// AddException stores a per-occurrence exception. A second exception for the
// same (rule, original date) replaces the first: the latest user decision
// about an occurrence wins.
func (r *Repository) AddException(exc domain.Exception) error {
	_, err := r.plansDB.Exec(`
		INSERT INTO recurring_exceptions
			(id, rule_id, rule_kind, original_date, type, date, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, original_date) DO UPDATE SET
			type = excluded.type,
			date = excluded.date,
			amount = excluded.amount,
			description = excluded.description,
			created_at = excluded.created_at
	`,
		exc.ID.String(),
		exc.RuleID.String(),
		string(exc.RuleKind),
		exc.OriginalDate.Format(domain.DateFormat),
		string(exc.Type),
		datePtrString(exc.Date),
		decimalPtrString(exc.Amount),
		exc.Description,
		exc.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store exception for rule %s: %w", exc.RuleID, err)
	}

	r.log.Debug().
		Str("rule_id", exc.RuleID.String()).
		Str("original_date", exc.OriginalDate.Format(domain.DateFormat)).
		Str("type", string(exc.Type)).
		Msg("Stored recurring exception")
	return nil
}

// GetException returns the exception for one occurrence, or nil when none
// exists.
func (r *Repository) GetException(ruleID uuid.UUID, originalDate time.Time) (*domain.Exception, error) {
	excs, err := r.queryExceptions(
		`SELECT id, rule_id, rule_kind, original_date, type, date, amount, description, created_at
		 FROM recurring_exceptions WHERE rule_id = ? AND original_date = ?`,
		ruleID.String(), originalDate.Format(domain.DateFormat))
	if err != nil {
		return nil, err
	}
	if len(excs) == 0 {
		return nil, nil
	}
	return &excs[0], nil
}

// GetExceptionsInRange returns a rule's exceptions with original dates inside
// [from, to], keyed by original date.
func (r *Repository) GetExceptionsInRange(ruleID uuid.UUID, from, to time.Time) (map[time.Time]domain.Exception, error) {
	excs, err := r.queryExceptions(
		`SELECT id, rule_id, rule_kind, original_date, type, date, amount, description, created_at
		 FROM recurring_exceptions WHERE rule_id = ? AND original_date >= ? AND original_date <= ?`,
		ruleID.String(), from.Format(domain.DateFormat), to.Format(domain.DateFormat))
	if err != nil {
		return nil, err
	}

	out := make(map[time.Time]domain.Exception, len(excs))
	for _, e := range excs {
		out[e.OriginalDate] = e
	}
	return out, nil
}

func (r *Repository) queryTransactionRules(query string, args ...interface{}) ([]domain.RecurringTransaction, error) {
	rows, err := r.plansDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringTransaction
	for rows.Next() {
		var (
			idStr, accountStr, amountStr, description, startStr, createdAtStr string
			categoryStr, endStr                                              sql.NullString
			interval, dayOfMonth, active                                     int
		)
		err := rows.Scan(&idStr, &accountStr, &categoryStr, &amountStr, &description,
			&interval, &dayOfMonth, &startStr, &endStr, &active, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction rule: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid rule id %q: %w", idStr, err)
		}
		accountID, err := uuid.Parse(accountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid account id %q: %w", accountStr, err)
		}
		categoryID, err := parseUUIDPtr(categoryStr)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		start, end, createdAt, err := parseRuleDates(startStr, endStr, createdAtStr)
		if err != nil {
			return nil, err
		}

		out = append(out, domain.RecurringTransaction{
			ID:          id,
			AccountID:   accountID,
			CategoryID:  categoryID,
			Amount:      amount,
			Description: description,
			Pattern: domain.RecurrencePattern{
				Frequency:  domain.FrequencyMonthly,
				Interval:   interval,
				DayOfMonth: dayOfMonth,
			},
			StartDate: start,
			EndDate:   end,
			Active:    active != 0,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) queryTransferRules(query string, args ...interface{}) ([]domain.RecurringTransfer, error) {
	rows, err := r.plansDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringTransfer
	for rows.Next() {
		var (
			idStr, sourceStr, destStr, amountStr, description, startStr, createdAtStr string
			endStr                                                                   sql.NullString
			interval, dayOfMonth, active                                             int
		)
		err := rows.Scan(&idStr, &sourceStr, &destStr, &amountStr, &description,
			&interval, &dayOfMonth, &startStr, &endStr, &active, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring transfer rule: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid rule id %q: %w", idStr, err)
		}
		sourceID, err := uuid.Parse(sourceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid source account id %q: %w", sourceStr, err)
		}
		destID, err := uuid.Parse(destStr)
		if err != nil {
			return nil, fmt.Errorf("invalid destination account id %q: %w", destStr, err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		start, end, createdAt, err := parseRuleDates(startStr, endStr, createdAtStr)
		if err != nil {
			return nil, err
		}

		out = append(out, domain.RecurringTransfer{
			ID:                   id,
			SourceAccountID:      sourceID,
			DestinationAccountID: destID,
			Amount:               amount,
			Description:          description,
			Pattern: domain.RecurrencePattern{
				Frequency:  domain.FrequencyMonthly,
				Interval:   interval,
				DayOfMonth: dayOfMonth,
			},
			StartDate: start,
			EndDate:   end,
			Active:    active != 0,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring transfers: %w", err)
	}
	return out, nil
}

func (r *Repository) queryExceptions(query string, args ...interface{}) ([]domain.Exception, error) {
	rows, err := r.plansDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Exception
	for rows.Next() {
		var (
			idStr, ruleStr, kindStr, originalStr, typeStr, createdAtStr string
			dateStr, amountStr, descStr                                 sql.NullString
		)
		err := rows.Scan(&idStr, &ruleStr, &kindStr, &originalStr, &typeStr,
			&dateStr, &amountStr, &descStr, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid exception id %q: %w", idStr, err)
		}
		ruleID, err := uuid.Parse(ruleStr)
		if err != nil {
			return nil, fmt.Errorf("invalid rule id %q: %w", ruleStr, err)
		}
		originalDate, err := domain.ParseDate(originalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid original date %q: %w", originalStr, err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
		}

		exc := domain.Exception{
			ID:           id,
			RuleID:       ruleID,
			RuleKind:     domain.RuleKind(kindStr),
			OriginalDate: originalDate,
			Type:         domain.ExceptionType(typeStr),
			CreatedAt:    createdAt,
		}
		if dateStr.Valid {
			d, err := domain.ParseDate(dateStr.String)
			if err != nil {
				return nil, fmt.Errorf("invalid exception date %q: %w", dateStr.String, err)
			}
			exc.Date = &d
		}
		if amountStr.Valid {
			a, err := decimal.NewFromString(amountStr.String)
			if err != nil {
				return nil, fmt.Errorf("invalid exception amount %q: %w", amountStr.String, err)
			}
			exc.Amount = &a
		}
		if descStr.Valid {
			exc.Description = &descStr.String
		}

		out = append(out, exc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exceptions: %w", err)
	}
	return out, nil
}

func parseRuleDates(startStr string, endStr sql.NullString, createdAtStr string) (time.Time, *time.Time, time.Time, error) {
	start, err := domain.ParseDate(startStr)
	if err != nil {
		return time.Time{}, nil, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	var end *time.Time
	if endStr.Valid {
		e, err := domain.ParseDate(endStr.String)
		if err != nil {
			return time.Time{}, nil, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr.String, err)
		}
		end = &e
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return time.Time{}, nil, time.Time{}, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
	}
	return start, end, createdAt, nil
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

func decimalPtrString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

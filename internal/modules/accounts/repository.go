// Package accounts provides the repository for account persistence in ledger.db.
package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
)

// Repository handles account persistence in ledger.db.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new account repository.
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "accounts").Logger(),
	}
}

const accountColumns = "id, name, type, currency, initial_balance, active, created_at"

// Add persists a new account.
func (r *Repository) Add(a domain.Account) error {
	_, err := r.ledgerDB.Exec(
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(),
		a.Name,
		string(a.Type),
		a.Currency,
		a.InitialBalance.String(),
		boolToInt(a.Active),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account %s: %w", a.Name, err)
	}

	r.log.Debug().Str("account_id", a.ID.String()).Str("name", a.Name).Msg("Added account")
	return nil
}

// GetByID returns one account. Returns domain.ErrAccountNotFound when the id
// does not exist.
func (r *Repository) GetByID(id uuid.UUID) (*domain.Account, error) {
	row := r.ledgerDB.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String(),
	)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return a, nil
}

// GetAll returns all accounts ordered by name.
func (r *Repository) GetAll() ([]domain.Account, error) {
	rows, err := r.ledgerDB.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// Deactivate soft-disables an account. Returns domain.ErrAccountNotFound when
// the id does not exist.
func (r *Repository) Deactivate(id uuid.UUID) error {
	result, err := r.ledgerDB.Exec(`UPDATE accounts SET active = 0 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate account %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrAccountNotFound
	}

	r.log.Debug().Str("account_id", id.String()).Msg("Deactivated account")
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		idStr, name, typeStr, currency, balanceStr, createdAtStr string
		active                                                   int
	)
	if err := row.Scan(&idStr, &name, &typeStr, &currency, &balanceStr, &active, &createdAtStr); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", idStr, err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance %q: %w", balanceStr, err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
	}

	return &domain.Account{
		ID:             id,
		Name:           name,
		Type:           domain.AccountType(typeStr),
		Currency:       currency,
		InitialBalance: balance,
		Active:         active != 0,
		CreatedAt:      createdAt,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

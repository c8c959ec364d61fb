// Package budgets provides monthly category budgets and budget-vs-actual
// progress over the realized ledger.
package budgets

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avelis/coinkeeper/internal/domain"
)

// Repository handles budget persistence in plans.db.
type Repository struct {
	plansDB *sql.DB
	log     zerolog.Logger
}

// NewRepository creates a new budget repository.
func NewRepository(plansDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		plansDB: plansDB,
		log:     log.With().Str("repo", "budgets").Logger(),
	}
}

// Upsert inserts or replaces the budget for a category.
func (r *Repository) Upsert(b domain.Budget) error {
	_, err := r.plansDB.Exec(`
		INSERT INTO budgets (id, category_id, monthly_limit, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category_id) DO UPDATE SET
			monthly_limit = excluded.monthly_limit
	`,
		b.ID.String(),
		b.CategoryID.String(),
		b.Limit.String(),
		b.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert budget for category %s: %w", b.CategoryID, err)
	}

	r.log.Debug().
		Str("category_id", b.CategoryID.String()).
		Str("limit", b.Limit.String()).
		Msg("Upserted budget")
	return nil
}

// GetAll returns all budgets.
func (r *Repository) GetAll() ([]domain.Budget, error) {
	rows, err := r.plansDB.Query(`SELECT id, category_id, monthly_limit, created_at FROM budgets`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var out []domain.Budget
	for rows.Next() {
		var idStr, categoryStr, limitStr, createdAtStr string
		if err := rows.Scan(&idStr, &categoryStr, &limitStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid budget id %q: %w", idStr, err)
		}
		categoryID, err := uuid.Parse(categoryStr)
		if err != nil {
			return nil, fmt.Errorf("invalid category id %q: %w", categoryStr, err)
		}
		limit, err := decimal.NewFromString(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid budget limit %q: %w", limitStr, err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
		}

		out = append(out, domain.Budget{ID: id, CategoryID: categoryID, Limit: limit, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return out, nil
}

// Delete removes the budget for a category.
func (r *Repository) Delete(categoryID uuid.UUID) error {
	_, err := r.plansDB.Exec(`DELETE FROM budgets WHERE category_id = ?`, categoryID.String())
	if err != nil {
		return fmt.Errorf("failed to delete budget for category %s: %w", categoryID, err)
	}
	return nil
}

// Package categories provides the repository for spending categories in plans.db.
package categories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/domain"
)

// Repository handles category persistence in plans.db.
type Repository struct {
	plansDB *sql.DB
	log     zerolog.Logger
}

// NewRepository creates a new category repository.
func NewRepository(plansDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		plansDB: plansDB,
		log:     log.With().Str("repo", "categories").Logger(),
	}
}

// Add persists a new category.
func (r *Repository) Add(c domain.Category) error {
	_, err := r.plansDB.Exec(
		`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID.String(), c.Name, c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert category %s: %w", c.Name, err)
	}
	return nil
}

// GetByID returns one category. Returns domain.ErrCategoryNotFound when the
// id does not exist.
func (r *Repository) GetByID(id uuid.UUID) (*domain.Category, error) {
	var (
		idStr, name, createdAtStr string
	)
	err := r.plansDB.QueryRow(
		`SELECT id, name, created_at FROM categories WHERE id = ?`, id.String(),
	).Scan(&idStr, &name, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	return buildCategory(idStr, name, createdAtStr)
}

// GetAll returns all categories ordered by name.
func (r *Repository) GetAll() ([]domain.Category, error) {
	rows, err := r.plansDB.Query(`SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var idStr, name, createdAtStr string
		if err := rows.Scan(&idStr, &name, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c, err := buildCategory(idStr, name, createdAtStr)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

// Delete removes a category. Returns domain.ErrCategoryNotFound when the id
// does not exist.
func (r *Repository) Delete(id uuid.UUID) error {
	result, err := r.plansDB.Exec(`DELETE FROM categories WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func buildCategory(idStr, name, createdAtStr string) (*domain.Category, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid category id %q: %w", idStr, err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAtStr, err)
	}
	return &domain.Category{ID: id, Name: name, CreatedAt: createdAt}, nil
}

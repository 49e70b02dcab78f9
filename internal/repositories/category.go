package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/shared"
)

// CategoryRepository persists per-user categories.
type CategoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new CategoryRepository with the given database connection
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// EnsureDefaults seeds [models.DefaultCategories] for a user who has none, returning how many were inserted.
//
// A user with any category is left alone. The insert ignores name conflicts, so a
// concurrent seed for the same user cannot duplicate rows.
func (r *CategoryRepository) EnsureDefaults(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, shared.ErrMissingUser
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE user_id = ?", userID).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to check categories: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	inserted := 0
	for _, c := range models.DefaultCategories {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, user_id, name, kind, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, name) DO NOTHING
		`, shared.GenerateID(), userID, c.Name, string(c.Kind), now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert category %s: %w", c.Name, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit categories: %w", err)
	}
	return inserted, nil
}

// List returns a user's categories, income first, then by name.
func (r *CategoryRepository) List(ctx context.Context, userID string) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, kind, created_at
		FROM categories
		WHERE user_id = ?
		ORDER BY kind DESC, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var (
			c    models.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Kind = models.CategoryKind(kind)
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return categories, nil
}

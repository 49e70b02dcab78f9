package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/normalize"
	"github.com/desertthunder/finport/internal/shared"
)

const transactionColumns = `
	id, user_id, occurred_on, description, amount_cents, currency_code,
	fingerprint, import_id, created_at, updated_at
`

// TransactionFilter narrows [TransactionRepository.List].
//
// Month is "YYYY-MM". From and To are inclusive date bounds in any form
// the statement date parser accepts.
// Query matches a case-insensitive substring of the description.
type TransactionFilter struct {
	Month    string
	From     string
	To       string
	Query    string
	ImportID string
	Limit    int
}

// TransactionRepository persists transactions keyed by (user_id, fingerprint).
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the given database connection
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// UpsertBatch writes batch in one SQL transaction, tagging every row with importID.
//
// A row whose (user_id, fingerprint) already exists is overwritten in place and keeps its id and created_at.
// Either the whole batch commits or none of it does.
func (r *TransactionRepository) UpsertBatch(ctx context.Context, importID string, batch []models.CandidateTransaction) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, fingerprint) DO UPDATE SET
			occurred_on = excluded.occurred_on,
			description = excluded.description,
			amount_cents = excluded.amount_cents,
			currency_code = excluded.currency_code,
			import_id = excluded.import_id,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, c := range batch {
		if c.UserID == "" {
			return fmt.Errorf("%w: row %d", shared.ErrMissingUser, i)
		}
		if c.Fingerprint == "" {
			return fmt.Errorf("%w: row %d has no fingerprint", shared.ErrInvalidInput, i)
		}

		_, err := stmt.ExecContext(ctx,
			shared.GenerateID(),
			c.UserID,
			c.OccurredOn,
			c.Description,
			c.AmountCents,
			c.CurrencyCode,
			c.Fingerprint,
			nullString(importID),
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert transaction %q: %w", c.Fingerprint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// List returns a user's transactions, most recent date first.
func (r *TransactionRepository) List(ctx context.Context, userID string, filter TransactionFilter) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if filter.Month != "" {
		start, err := time.Parse("2006-01", filter.Month)
		if err != nil {
			return nil, fmt.Errorf("%w: month %q must be YYYY-MM", shared.ErrInvalidInput, filter.Month)
		}
		query += " AND occurred_on >= ? AND occurred_on < ?"
		args = append(args, start.Format(time.DateOnly), start.AddDate(0, 1, 0).Format(time.DateOnly))
	}

	if filter.From != "" {
		from := normalize.CanonicalDate(filter.From)
		if from == "" {
			return nil, fmt.Errorf("%w: from %q is not a date", shared.ErrInvalidInput, filter.From)
		}
		query += " AND occurred_on >= ?"
		args = append(args, from)
	}

	if filter.To != "" {
		to := normalize.CanonicalDate(filter.To)
		if to == "" {
			return nil, fmt.Errorf("%w: to %q is not a date", shared.ErrInvalidInput, filter.To)
		}
		query += " AND occurred_on <= ?"
		args = append(args, to)
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		query += ` AND LOWER(description) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}

	if filter.ImportID != "" {
		query += " AND import_id = ?"
		args = append(args, filter.ImportID)
	}

	query += " ORDER BY occurred_on DESC, created_at DESC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return txns, nil
}

// Count returns how many transactions a user has.
func (r *TransactionRepository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE user_id = ?", userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		txn      models.Transaction
		importID sql.NullString
	)

	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.OccurredOn, &txn.Description, &txn.AmountCents,
		&txn.CurrencyCode, &txn.Fingerprint, &importID, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.ImportID = importID.String
	return txn, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

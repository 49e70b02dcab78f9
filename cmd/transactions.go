package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/finport/internal/formatter"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/repositories"
)

func transactionFilter(cmd *cli.Command) repositories.TransactionFilter {
	return repositories.TransactionFilter{
		Month:    cmd.String("month"),
		From:     cmd.String("from"),
		To:       cmd.String("to"),
		Query:    cmd.String("q"),
		ImportID: cmd.String("import"),
		Limit:    int(cmd.Int("limit")),
	}
}

func (r *Runner) listTransactions(ctx context.Context, cmd *cli.Command) ([]models.Transaction, error) {
	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r.txns.List(ctx, userID, transactionFilter(cmd))
}

// TransactionsList prints stored transactions, newest first.
func (r *Runner) TransactionsList(ctx context.Context, cmd *cli.Command) error {
	txns, err := r.listTransactions(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if txns == nil {
			txns = []models.Transaction{}
		}
		return r.writeJSON(txns, true)
	}

	if len(txns) == 0 {
		return r.writePlain("No transactions found.\n")
	}
	for _, txn := range txns {
		r.writePlain("%s\n", formatter.TransactionLine(txn))
	}
	return nil
}

// TransactionsExport writes stored transactions to a CSV file.
func (r *Runner) TransactionsExport(ctx context.Context, cmd *cli.Command) error {
	txns, err := r.listTransactions(ctx, cmd)
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := formatter.WriteTransactionsCSV(txns, out); err != nil {
		return err
	}

	r.logger.Info("exported transactions", "count", len(txns), "path", out)
	return r.writePlain("✓ Exported %d transactions to %s\n", len(txns), out)
}

// CategoriesSeed creates the default categories for a user who has none.
func (r *Runner) CategoriesSeed(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	created, err := r.categories.EnsureDefaults(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if created == 0 {
		return r.writePlain("Categories already exist, nothing to seed.\n")
	}
	return r.writePlain("✓ Created %d default categories\n", created)
}

// CategoriesList prints a user's categories, income first.
func (r *Runner) CategoriesList(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	categories, err := r.categories.List(ctx, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if categories == nil {
			categories = []models.Category{}
		}
		return r.writeJSON(categories, true)
	}

	if len(categories) == 0 {
		return r.writePlain("No categories. Run 'finport categories seed' first.\n")
	}
	for _, c := range categories {
		r.writePlain("%-8s %s\n", c.Kind, c.Name)
	}
	return nil
}

package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the importer.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// CandidateTransaction is a statement row that survived normalization.
//
// OccurredOn is a canonical YYYY-MM-DD date, Description is trimmed and non-empty,
// and Fingerprint was derived from those normalized values.
type CandidateTransaction struct {
	UserID       string `json:"user_id"`
	OccurredOn   string `json:"occurred_on"`
	Description  string `json:"description"`
	AmountCents  int64  `json:"amount_cents"`
	CurrencyCode string `json:"currency_code"`
	Fingerprint  string `json:"fingerprint"`
}

// Transaction is the persisted form of a [CandidateTransaction].
//
// ImportID refers to the job that last wrote the row. It is not ownership.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	OccurredOn   string    `json:"occurred_on"`
	Description  string    `json:"description"`
	AmountCents  int64     `json:"amount_cents"`
	CurrencyCode string    `json:"currency_code"`
	Fingerprint  string    `json:"fingerprint"`
	ImportID     string    `json:"import_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CategoryKind separates income categories from expense categories.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

// Category is a named bucket for transactions, unique per user by name.
type Category struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	Kind      CategoryKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// DefaultCategories are seeded for every user on first use.
var DefaultCategories = []Category{
	{Name: "Income", Kind: CategoryIncome},
	{Name: "Rent", Kind: CategoryExpense},
	{Name: "Utilities", Kind: CategoryExpense},
	{Name: "Groceries", Kind: CategoryExpense},
	{Name: "Dining", Kind: CategoryExpense},
	{Name: "Gas", Kind: CategoryExpense},
	{Name: "Transport", Kind: CategoryExpense},
	{Name: "Shopping", Kind: CategoryExpense},
	{Name: "Health", Kind: CategoryExpense},
	{Name: "Subscriptions", Kind: CategoryExpense},
	{Name: "Savings", Kind: CategoryExpense},
	{Name: "Other", Kind: CategoryExpense},
}

// Package repositories implements SQLite persistence for the importer's record store.
//
// Key Implementations:
//   - [ImportJobRepository] : Import job rows with forward-only status updates
//   - [TransactionRepository] : Transactions keyed by (user_id, fingerprint) with batch upsert
//   - [CategoryRepository] : Per-user categories with idempotent default seeding
//
// Every query is scoped by user id. The uniqueness constraints in the schema are
// the only concurrency control. Repositories hold no locks of their own.
package repositories

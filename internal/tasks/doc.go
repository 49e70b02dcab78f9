// Package tasks orchestrates statement imports with real-time progress reporting.
//
// # Core Operations
//
//  1. [Prepare] : Pure candidate builder
//     - Normalizes the mapped date, description and amount of every row
//     - Fingerprints each surviving row
//     - Reports dropped rows with a reason instead of failing
//
//  2. [ImportEngine.Run] : One import session
//     - Refuses to start without a user id or a valid mapping
//     - Creates a parsing job whose row count is the candidate count
//     - Upserts candidates in fixed-size batches, strictly in order
//     - Marks the job done, or failed with the store's message on the first bad batch
//
//  3. [ImportEngine.SweepStale] : Marks parsing jobs past their threshold as abandoned
//
//  4. [ImportEngine.BulkImport] : Imports several statement files through a worker pool, one job per file
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [ImportEngine] depends on:
//   - [JobStore] : import job persistence (repositories.ImportJobRepository)
//   - [TransactionStore] : batch upsert keyed by (user_id, fingerprint) (repositories.TransactionRepository)
package tasks

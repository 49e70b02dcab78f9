package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/shared"
)

// ErrInjected is returned by [MemoryStore] operations configured to fail.
var ErrInjected = errors.New("injected store failure")

// MemoryStore is an in-memory record store for import jobs and transactions.
//
// It mirrors the SQLite repositories: jobs only leave parsing once, and
// transactions are unique per (user_id, fingerprint).
type MemoryStore struct {
	mu sync.Mutex

	jobs         map[string]*models.ImportJob
	transactions map[string]models.Transaction // keyed by user_id and fingerprint
	seq          int

	// BatchSizes records the length of every UpsertBatch call, in call order.
	BatchSizes []int

	// FailOnBatch makes the Nth UpsertBatch call (1-based) fail without writing. Zero disables.
	FailOnBatch int
	// FailCreate makes Create fail.
	FailCreate bool
	// FailUpdate makes UpdateStatus fail.
	FailUpdate bool
	// FailUpdates makes the next n UpdateStatus calls fail.
	FailUpdates int
	// UpdateCalls counts UpdateStatus calls, failed ones included.
	UpdateCalls int
	// OnBatch runs after each successful UpsertBatch with its 1-based index.
	OnBatch func(n int)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         make(map[string]*models.ImportJob),
		transactions: make(map[string]models.Transaction),
	}
}

func (s *MemoryStore) Create(ctx context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate {
		return fmt.Errorf("create job: %w", ErrInjected)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	s.seq++
	job.SetID(shared.GenerateID())
	job.SetSequence(s.seq)

	stored := *job
	s.jobs[job.ID()] = &stored
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id, userID string, status models.JobStatus, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdateCalls++
	if s.FailUpdates > 0 {
		s.FailUpdates--
		return fmt.Errorf("update job: %w", ErrInjected)
	}
	if s.FailUpdate {
		return fmt.Errorf("update job: %w", ErrInjected)
	}

	job, ok := s.jobs[id]
	if !ok || job.UserID() != userID {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	var err error
	if status == models.StatusFailed {
		err = job.Fail(errMsg, finishedAt)
	} else {
		err = job.Transition(status, finishedAt)
	}
	return err
}

func (s *MemoryStore) Stale(ctx context.Context, userID string, cutoff time.Time) ([]*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []*models.ImportJob
	for _, job := range s.jobs {
		if (userID == "" || job.UserID() == userID) && job.IsStale(cutoff) {
			j := *job
			stale = append(stale, &j)
		}
	}
	sort.Slice(stale, func(i, k int) bool { return stale[i].Sequence() < stale[k].Sequence() })
	return stale, nil
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, importID string, batch []models.CandidateTransaction) error {
	s.mu.Lock()

	s.BatchSizes = append(s.BatchSizes, len(batch))
	n := len(s.BatchSizes)
	if s.FailOnBatch > 0 && n == s.FailOnBatch {
		s.mu.Unlock()
		return fmt.Errorf("upsert batch %d: %w", n, ErrInjected)
	}

	now := time.Now()
	for _, c := range batch {
		key := c.UserID + "\x00" + c.Fingerprint
		txn, exists := s.transactions[key]
		if !exists {
			txn = models.Transaction{ID: shared.GenerateID(), CreatedAt: now}
		}
		txn.UserID = c.UserID
		txn.OccurredOn = c.OccurredOn
		txn.Description = c.Description
		txn.AmountCents = c.AmountCents
		txn.CurrencyCode = c.CurrencyCode
		txn.Fingerprint = c.Fingerprint
		txn.ImportID = importID
		txn.UpdatedAt = now
		s.transactions[key] = txn
	}
	hook := s.OnBatch
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Job returns a copy of the stored job, or nil.
func (s *MemoryStore) Job(id string) *models.ImportJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	j := *job
	return &j
}

// JobCount returns how many jobs were created.
func (s *MemoryStore) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Transactions returns a user's stored transactions ordered by fingerprint.
func (s *MemoryStore) Transactions(userID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txns []models.Transaction
	for _, txn := range s.transactions {
		if txn.UserID == userID {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, k int) bool { return txns[i].Fingerprint < txns[k].Fingerprint })
	return txns
}

// SeedJob stores job as-is, for tests that need jobs in a given state.
func (s *MemoryStore) SeedJob(job *models.ImportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if job.ID() == "" {
		job.SetID(shared.GenerateID())
	}
	job.SetSequence(s.seq)
	j := *job
	s.jobs[job.ID()] = &j
}

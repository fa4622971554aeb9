package budget

import (
	"context"
	"errors"
	"sync"
	"time"

	"mailtriage/internal/model"
)

// ErrNoBudget is returned when a user has no budget row yet.
var ErrNoBudget = errors.New("no budget configured for user")

// Ledger tracks per-user AI spend against daily and monthly limits.
//
// Reserve is the single atomic read-check-increment: two concurrent
// reservations must never jointly exceed the limit. Commit settles a
// reservation to the actual incurred cost, Spend records cost
// unconditionally (high-tier invocations bypass the limit check but still
// count against the accumulators).
type Ledger interface {
	Reserve(ctx context.Context, userID, estCents int) (bool, error)
	Commit(ctx context.Context, userID, reservedCents, actualCents int) (model.Budget, error)
	Spend(ctx context.Context, userID, cents int) (model.Budget, error)
	Status(ctx context.Context, userID int) (model.Budget, error)
	ResetDaily(ctx context.Context, now time.Time) error
	ResetMonthly(ctx context.Context, now time.Time) error
}

// MemoryLedger is the in-process implementation for single-instance
// deployments and tests. A mutex makes the read-check-increment atomic.
type MemoryLedger struct {
	mu      sync.Mutex
	budgets map[int]*model.Budget
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{budgets: make(map[int]*model.Budget)}
}

// Configure creates or replaces a user's budget row.
func (l *MemoryLedger) Configure(b model.Budget) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := b
	l.budgets[b.UserID] = &copied
}

func (l *MemoryLedger) Reserve(_ context.Context, userID, estCents int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[userID]
	if !ok {
		return false, ErrNoBudget
	}
	if b.DailySpentCents+estCents > b.DailyLimitCents ||
		b.MonthlySpentCents+estCents > b.MonthlyLimitCents {
		return false, nil
	}
	b.DailySpentCents += estCents
	b.MonthlySpentCents += estCents
	return true, nil
}

func (l *MemoryLedger) Commit(_ context.Context, userID, reservedCents, actualCents int) (model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[userID]
	if !ok {
		return model.Budget{}, ErrNoBudget
	}
	delta := actualCents - reservedCents
	b.DailySpentCents = maxInt(0, b.DailySpentCents+delta)
	b.MonthlySpentCents = maxInt(0, b.MonthlySpentCents+delta)
	return *b, nil
}

func (l *MemoryLedger) Spend(_ context.Context, userID, cents int) (model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[userID]
	if !ok {
		return model.Budget{}, ErrNoBudget
	}
	b.DailySpentCents += cents
	b.MonthlySpentCents += cents
	return *b, nil
}

func (l *MemoryLedger) Status(_ context.Context, userID int) (model.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[userID]
	if !ok {
		return model.Budget{}, ErrNoBudget
	}
	return *b, nil
}

func (l *MemoryLedger) ResetDaily(_ context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.budgets {
		b.DailySpentCents = 0
		b.DailyResetAt = now
	}
	return nil
}

func (l *MemoryLedger) ResetMonthly(_ context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.budgets {
		b.MonthlySpentCents = 0
		b.MonthlyResetAt = now
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package store provides lending.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	loans map[lending.LoanID]*lending.Loan
}

func NewMemory() *Memory {
	return &Memory{loans: make(map[lending.LoanID]*lending.Loan)}
}

// Create persists a brand-new aggregate at version 1.
func (m *Memory) Create(_ context.Context, loan *lending.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.loans[loan.ID]; exists {
		return lending.ErrConflictRetry
	}
	loan.Version = 1
	m.loans[loan.ID] = loan.Clone()
	return nil
}

// Get returns a deep copy so callers can't mutate stored state.
func (m *Memory) Get(_ context.Context, id lending.LoanID) (*lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return nil, lending.ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// Save applies the optimistic version check, then replaces the stored
// aggregate. The sub-logs may only grow; a shrunk log or a duplicate
// payment idempotency key is rejected before anything changes.
func (m *Memory) Save(_ context.Context, loan *lending.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.loans[loan.ID]
	if !ok {
		return lending.ErrLoanNotFound
	}
	if current.Version != loan.Version {
		return lending.ErrConflictRetry
	}
	if len(loan.Transactions) < len(current.Transactions) ||
		len(loan.ChangeHistory) < len(current.ChangeHistory) {
		return lending.ErrConflictRetry
	}

	// Idempotency keys must be unique among the newly appended entries.
	seen := make(map[string]bool, len(current.Transactions))
	for _, tx := range current.Transactions {
		if tx.IdempotencyKey != "" {
			seen[tx.IdempotencyKey] = true
		}
	}
	for _, tx := range loan.Transactions[len(current.Transactions):] {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return lending.ErrDuplicatePayment
		}
		seen[tx.IdempotencyKey] = true
	}

	loan.Version++
	m.loans[loan.ID] = loan.Clone()
	return nil
}

// List returns matching aggregates, most recently applied first.
func (m *Memory) List(_ context.Context, filter lending.Filter) ([]*lending.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[lending.Status]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}

	var result []*lending.Loan
	for _, loan := range m.loans {
		if len(statuses) > 0 && !statuses[loan.Status] {
			continue
		}
		if filter.EmpNo != "" && loan.EmpNo != filter.EmpNo {
			continue
		}
		if filter.RequestType != "" && loan.RequestType != filter.RequestType {
			continue
		}
		result = append(result, loan.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AppliedAt.After(result[j].AppliedAt)
	})
	return result, nil
}

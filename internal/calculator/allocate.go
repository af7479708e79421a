package calculator

import (
	"cmp"
	"slices"
)

// StudentAccount is the balance snapshot of one student's fee ledger.
// A balance of zero or less means nothing is owed.
type StudentAccount struct {
	ID      string
	Balance int64
}

// Allocation is the amount applied to one student's balance.
type Allocation struct {
	StudentID string
	Amount    int64
}

// AllocationResult is the outcome of allocating a single payment.
// Allocations are listed in the order they were served and every amount is positive.
type AllocationResult struct {
	Allocations     []Allocation
	RemainingCredit int64
}

// Amounts returns the allocations keyed by student ID.
func (r *AllocationResult) Amounts() map[string]int64 {
	out := make(map[string]int64, len(r.Allocations))
	for _, a := range r.Allocations {
		out[a.StudentID] = a.Amount
	}
	return out
}

// Allocated returns the sum of all allocations.
func (r *AllocationResult) Allocated() int64 {
	var total int64
	for _, a := range r.Allocations {
		total += a.Amount
	}
	return total
}

type eligibleAccount struct {
	id       string
	balance  int64
	refIndex int
}

// AllocatePayment splits amount across the referenced students, highest balance first.
//
// Only students named in priority with a positive balance take part. Equal balances are
// served in priority order. Each student receives min(remaining, balance) until the amount
// runs out; whatever is left is returned as RemainingCredit. Duplicate account IDs keep their
// first occurrence, and repeated priority entries are ignored after the first.
//
// Inputs are never modified. Malformed input yields a *ValidationError.
func AllocatePayment(accounts []StudentAccount, amount int64, priority []string) (*AllocationResult, error) {
	if amount < 0 {
		return nil, newValidationError(KindInvalidAmount, nil, "amount must be a non-negative integer, got %d", amount)
	}

	balances := make(map[string]int64, len(accounts))
	for idx, acc := range accounts {
		if acc.ID == "" {
			return nil, newValidationError(KindInvalidAccount, nil, "student at index %d has an empty admission number", idx)
		}
		if _, exists := balances[acc.ID]; !exists {
			balances[acc.ID] = acc.Balance
		}
	}

	for idx, id := range priority {
		if id == "" {
			return nil, newValidationError(KindInvalidPriority, nil, "reference order entry at index %d is empty", idx)
		}
	}

	seen := make(map[string]bool, len(priority))
	var eligible []eligibleAccount
	for refIndex, id := range priority {
		if seen[id] {
			continue
		}
		seen[id] = true

		balance, ok := balances[id]
		if !ok || balance <= 0 {
			continue
		}
		eligible = append(eligible, eligibleAccount{id: id, balance: balance, refIndex: refIndex})
	}

	slices.SortFunc(eligible, func(a, b eligibleAccount) int {
		if c := cmp.Compare(b.balance, a.balance); c != 0 {
			return c
		}
		return cmp.Compare(a.refIndex, b.refIndex)
	})

	result := &AllocationResult{}
	remaining := amount
	for _, acc := range eligible {
		if remaining == 0 {
			break
		}
		alloc := min(remaining, acc.balance)
		result.Allocations = append(result.Allocations, Allocation{StudentID: acc.id, Amount: alloc})
		remaining -= alloc
	}
	result.RemainingCredit = remaining

	return result, nil
}

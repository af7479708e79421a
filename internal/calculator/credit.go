package calculator

import "fmt"

// CreditPolicy decides which referenced students may receive a share of leftover credit.
type CreditPolicy string

const (
	// CreditAllReferenced shares credit across every known referenced student,
	// whatever their balance after allocation.
	CreditAllReferenced CreditPolicy = "all-referenced"

	// CreditSkipOverpaid leaves out students whose balance is already negative
	// once the allocation has been applied.
	CreditSkipOverpaid CreditPolicy = "skip-overpaid"
)

// ParseCreditPolicy maps a configuration value to a CreditPolicy. Empty means CreditAllReferenced.
func ParseCreditPolicy(s string) (CreditPolicy, error) {
	switch CreditPolicy(s) {
	case "", CreditAllReferenced:
		return CreditAllReferenced, nil
	case CreditSkipOverpaid:
		return CreditSkipOverpaid, nil
	default:
		return "", fmt.Errorf("unknown credit policy %q", s)
	}
}

// CreditShare is the part of leftover credit assigned to one student.
type CreditShare struct {
	StudentID string
	Amount    int64
}

// SplitCredit divides result.RemainingCredit across the known students named in priority.
//
// Shares follow priority order with duplicates removed. The credit is floor-divided by the
// number of recipients and the first credit%n recipients get one extra unit, so the shares
// always add up to the credit. Recipients whose share would be zero are omitted.
// No shares are returned when there is no credit or no eligible recipient; the caller
// keeps that credit as unassigned.
func SplitCredit(result *AllocationResult, accounts []StudentAccount, priority []string, policy CreditPolicy) ([]CreditShare, error) {
	if result == nil || result.RemainingCredit < 0 {
		return nil, newValidationError(KindInvalidAmount, nil, "remaining credit must be a non-negative integer")
	}
	if result.RemainingCredit == 0 {
		return nil, nil
	}

	balances := make(map[string]int64, len(accounts))
	for _, acc := range accounts {
		if _, exists := balances[acc.ID]; !exists {
			balances[acc.ID] = acc.Balance
		}
	}
	allocated := result.Amounts()

	seen := make(map[string]bool, len(priority))
	var recipients []string
	for _, id := range priority {
		if seen[id] {
			continue
		}
		seen[id] = true

		balance, known := balances[id]
		if !known {
			continue
		}
		if policy == CreditSkipOverpaid && balance-allocated[id] < 0 {
			continue
		}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil, nil
	}

	n := int64(len(recipients))
	base := result.RemainingCredit / n
	extra := result.RemainingCredit % n

	shares := make([]CreditShare, 0, len(recipients))
	for i, id := range recipients {
		share := base
		if int64(i) < extra {
			share++
		}
		if share <= 0 {
			continue
		}
		shares = append(shares, CreditShare{StudentID: id, Amount: share})
	}
	return shares, nil
}

// TotalCredited returns the sum of the given shares.
func TotalCredited(shares []CreditShare) int64 {
	var total int64
	for _, s := range shares {
		total += s.Amount
	}
	return total
}

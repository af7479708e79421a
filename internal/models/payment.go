package models

import "strings"

// PaymentRequest is an incoming payment notification.
type PaymentRequest struct {
	// PaymentID is the provider transaction ID (M-Pesa TransID). Recording is idempotent on it.
	PaymentID string

	// Amount is the paid amount in whole currency units.
	Amount int64

	// Reference is the raw account reference typed by the payer, e.g. "041|1043".
	Reference string

	// Term overrides the configured term label when set.
	Term string

	// MSISDN is the payer's phone number, if known.
	MSISDN string

	// PayerName is the payer's name as reported by the provider, if known.
	PayerName string

	// ReceivedAt is the Unix timestamp of the payment. Zero means now.
	ReceivedAt int64
}

// Allocation is the part of a payment applied to one student's balance.
type Allocation struct {
	AdmissionNo string
	Amount      int64
}

// Credit is the part of a payment's leftover credit given to one student.
type Credit struct {
	AdmissionNo string
	Amount      int64
}

// Payment is a recorded payment transaction.
type Payment struct {
	// PaymentID is the provider transaction ID and the primary key.
	PaymentID string

	Amount int64

	// Term is the fee period the payment was booked against (e.g. "2026-T3").
	Term string

	// Reference is the parsed reference list, in payer order.
	Reference []string

	// Allocations are listed in the order the students were served.
	Allocations []Allocation

	// Credits are listed in reference order.
	Credits []Credit

	// RemainingCredit is what was left after all referenced balances were covered.
	RemainingCredit int64

	// UnassignedCredit is the part of RemainingCredit no student could receive.
	UnassignedCredit int64

	MSISDN    string
	PayerName string

	// ReceivedAt is the Unix timestamp of the payment.
	ReceivedAt int64
}

// ReferenceJoined renders Reference in its canonical "a|b" form.
func (p *Payment) ReferenceJoined() string {
	return strings.Join(p.Reference, "|")
}

// TotalAllocated returns the sum of all allocations.
func (p *Payment) TotalAllocated() int64 {
	var total int64
	for _, a := range p.Allocations {
		total += a.Amount
	}
	return total
}

// TotalCredited returns the sum of all credit shares.
func (p *Payment) TotalCredited() int64 {
	var total int64
	for _, c := range p.Credits {
		total += c.Amount
	}
	return total
}

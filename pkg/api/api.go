// Package api defines the request and response messages of the fee allocation RPC service.
//
// Messages are plain structs carried as JSON by the codec in package apiconnect.
// Amounts are whole currency units.
package api

// Allocation is the amount applied to one student.
type Allocation struct {
	AdmissionNo string `json:"admission_no"`
	Amount      int64  `json:"amount"`
}

// Payment is a recorded payment transaction.
type Payment struct {
	PaymentID        string       `json:"payment_id"`
	Amount           int64        `json:"amount"`
	Term             string       `json:"term"`
	Reference        []string     `json:"reference"`
	Allocations      []Allocation `json:"allocations"`
	Credits          []Allocation `json:"credits"`
	RemainingCredit  int64        `json:"remaining_credit"`
	UnassignedCredit int64        `json:"unassigned_credit"`
	MSISDN           string       `json:"msisdn,omitempty"`
	PayerName        string       `json:"payer_name,omitempty"`
	ReceivedAt       int64        `json:"received_at"`
}

// Student is one fee ledger row.
type Student struct {
	AdmissionNo string `json:"admission_no"`
	Name        string `json:"name,omitempty"`
	Class       string `json:"class,omitempty"`
	PaidTotal   int64  `json:"paid_total"`
	Credit      int64  `json:"credit"`
	Balance     int64  `json:"balance"`
	Status      string `json:"status,omitempty"`
}

type ProcessPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	// Term defaults to the server's configured term.
	Term       string `json:"term,omitempty"`
	MSISDN     string `json:"msisdn,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
	ReceivedAt int64  `json:"received_at,omitempty"`
}

type ProcessPaymentResponse struct {
	Payment *Payment `json:"payment"`
	// Duplicate is set when the payment ID had already been recorded; Payment is the stored one.
	Duplicate bool `json:"duplicate"`
}

type PreviewAllocationRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type PreviewAllocationResponse struct {
	Reference        []string     `json:"reference"`
	Allocations      []Allocation `json:"allocations"`
	Credits          []Allocation `json:"credits"`
	RemainingCredit  int64        `json:"remaining_credit"`
	UnassignedCredit int64        `json:"unassigned_credit"`
}

type GetPaymentRequest struct {
	PaymentID string `json:"payment_id"`
}

type GetPaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ListStudentsRequest struct{}

type ListStudentsResponse struct {
	Students []*Student `json:"students"`
}

type GetDailySummaryRequest struct {
	// Date is a UTC calendar day formatted as YYYY-MM-DD. Empty means today.
	Date string `json:"date,omitempty"`
}

type GetDailySummaryResponse struct {
	Date       string `json:"date"`
	Count      int64  `json:"count"`
	Total      int64  `json:"total"`
	Allocated  int64  `json:"allocated"`
	Credited   int64  `json:"credited"`
	Unassigned int64  `json:"unassigned"`
}

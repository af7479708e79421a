package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/feeallocator/internal/calculator"
	"github.com/mmynk/feeallocator/internal/metrics"
	"github.com/mmynk/feeallocator/internal/middleware"
	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

// ErrMissingPaymentID is returned for payment requests without a provider transaction ID.
var ErrMissingPaymentID = errors.New("payment id required")

// PaymentService turns incoming payments into allocations and credit shares and records them.
type PaymentService struct {
	store   storage.Store
	term    string
	policy  calculator.CreditPolicy
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPaymentService creates a PaymentService booking payments against term.
// m may be nil.
func NewPaymentService(store storage.Store, term string, policy calculator.CreditPolicy, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		store:   store,
		term:    term,
		policy:  policy,
		metrics: m,
		now:     time.Now,
	}
}

// Process allocates and records a payment. The boolean result is true when the payment ID
// had already been recorded, in which case the stored payment is returned unchanged.
func (s *PaymentService) Process(ctx context.Context, req models.PaymentRequest) (*models.Payment, bool, error) {
	start := time.Now()

	payment, duplicate, err := s.process(ctx, req)

	outcome := metrics.OutcomeRecorded
	switch {
	case isValidation(err):
		outcome = metrics.OutcomeRejected
	case err != nil:
		outcome = metrics.OutcomeFailed
	case duplicate:
		outcome = metrics.OutcomeDuplicate
	}
	s.metrics.ObservePayment(outcome, time.Since(start))

	switch outcome {
	case metrics.OutcomeRecorded:
		s.metrics.AddAmounts(payment.TotalAllocated(), payment.TotalCredited(), payment.UnassignedCredit)
		slog.Info("Payment recorded",
			"payment_id", payment.PaymentID,
			"amount", payment.Amount,
			"reference", payment.ReferenceJoined(),
			"allocated", payment.TotalAllocated(),
			"credited", payment.TotalCredited(),
			"unassigned", payment.UnassignedCredit,
			"operator_id", middleware.GetOperatorID(ctx),
		)
	case metrics.OutcomeDuplicate:
		slog.Info("Duplicate payment ignored", "payment_id", payment.PaymentID)
	case metrics.OutcomeRejected:
		slog.Warn("Payment rejected", "payment_id", req.PaymentID, "reference", req.Reference, "error", err)
	default:
		slog.Error("Payment failed", "payment_id", req.PaymentID, "error", err)
	}

	return payment, duplicate, err
}

func (s *PaymentService) process(ctx context.Context, req models.PaymentRequest) (*models.Payment, bool, error) {
	if req.PaymentID == "" {
		return nil, false, ErrMissingPaymentID
	}

	priority, err := calculator.ParseReference(req.Reference)
	if err != nil {
		return nil, false, err
	}

	term := req.Term
	if term == "" {
		term = s.term
	}

	payment, err := s.store.ApplyPayment(ctx, req.PaymentID, func(students []*models.Student) (*models.Payment, error) {
		p, err := s.allocate(students, req.Amount, priority)
		if err != nil {
			return nil, err
		}
		p.Term = term
		p.MSISDN = req.MSISDN
		p.PayerName = req.PayerName
		p.ReceivedAt = req.ReceivedAt
		if p.ReceivedAt == 0 {
			p.ReceivedAt = s.now().Unix()
		}
		return p, nil
	})
	if errors.Is(err, storage.ErrDuplicatePayment) {
		return payment, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payment, false, nil
}

// Preview computes the allocation of amount against the current ledger without recording it.
func (s *PaymentService) Preview(ctx context.Context, amount int64, reference string) (*models.Payment, error) {
	priority, err := calculator.ParseReference(reference)
	if err != nil {
		return nil, err
	}

	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	p, err := s.allocate(students, amount, priority)
	if err != nil {
		return nil, err
	}
	p.Term = s.term
	return p, nil
}

// KnownStudents returns the admission numbers of reference that exist in the ledger, in
// reference order.
func (s *PaymentService) KnownStudents(ctx context.Context, reference string) ([]string, error) {
	priority, err := calculator.ParseReference(reference)
	if err != nil {
		return nil, err
	}

	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	ledger := make(map[string]bool, len(students))
	for _, st := range students {
		ledger[st.AdmissionNo] = true
	}

	var known []string
	for _, id := range priority {
		if ledger[id] {
			known = append(known, id)
		}
	}
	return known, nil
}

// allocate runs the allocation engine and the credit split over a ledger snapshot.
func (s *PaymentService) allocate(students []*models.Student, amount int64, priority []string) (*models.Payment, error) {
	accounts := make([]calculator.StudentAccount, len(students))
	for i, st := range students {
		accounts[i] = calculator.StudentAccount{ID: st.AdmissionNo, Balance: st.Balance}
	}

	result, err := calculator.AllocatePayment(accounts, amount, priority)
	if err != nil {
		return nil, err
	}

	shares, err := calculator.SplitCredit(result, accounts, priority, s.policy)
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		Amount:           amount,
		Reference:        priority,
		RemainingCredit:  result.RemainingCredit,
		UnassignedCredit: result.RemainingCredit - calculator.TotalCredited(shares),
	}
	for _, a := range result.Allocations {
		p.Allocations = append(p.Allocations, models.Allocation{AdmissionNo: a.StudentID, Amount: a.Amount})
	}
	for _, c := range shares {
		p.Credits = append(p.Credits, models.Credit{AdmissionNo: c.StudentID, Amount: c.Amount})
	}
	return p, nil
}

// isValidation reports whether err was caused by the request itself.
func isValidation(err error) bool {
	var verr *calculator.ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrMissingPaymentID)
}

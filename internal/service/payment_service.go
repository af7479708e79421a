package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/reports"
	"github.com/mmynk/feeallocator/internal/storage"
	"github.com/mmynk/feeallocator/pkg/api"
	"github.com/mmynk/feeallocator/pkg/api/apiconnect"
)

// Ensure PaymentService implements the Connect handler interface
var _ apiconnect.PaymentServiceHandler = (*PaymentService)(nil)

// ProcessPayment records a payment entered by an operator.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *connect.Request[api.ProcessPaymentRequest]) (*connect.Response[api.ProcessPaymentResponse], error) {
	slog.Info("ProcessPayment request received",
		"payment_id", req.Msg.PaymentID,
		"amount", req.Msg.Amount,
		"reference", req.Msg.Reference,
	)

	payment, duplicate, err := s.Process(ctx, models.PaymentRequest{
		PaymentID:  req.Msg.PaymentID,
		Amount:     req.Msg.Amount,
		Reference:  req.Msg.Reference,
		Term:       req.Msg.Term,
		MSISDN:     req.Msg.MSISDN,
		PayerName:  req.Msg.PayerName,
		ReceivedAt: req.Msg.ReceivedAt,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ProcessPaymentResponse{
		Payment:   toAPIPayment(payment),
		Duplicate: duplicate,
	}), nil
}

// PreviewAllocation shows how a payment would be split without recording it.
func (s *PaymentService) PreviewAllocation(ctx context.Context, req *connect.Request[api.PreviewAllocationRequest]) (*connect.Response[api.PreviewAllocationResponse], error) {
	payment, err := s.Preview(ctx, req.Msg.Amount, req.Msg.Reference)
	if err != nil {
		slog.Warn("PreviewAllocation failed", "reference", req.Msg.Reference, "error", err)
		return nil, toConnectError(err)
	}

	p := toAPIPayment(payment)
	return connect.NewResponse(&api.PreviewAllocationResponse{
		Reference:        p.Reference,
		Allocations:      p.Allocations,
		Credits:          p.Credits,
		RemainingCredit:  p.RemainingCredit,
		UnassignedCredit: p.UnassignedCredit,
	}), nil
}

// GetPayment returns a recorded payment.
func (s *PaymentService) GetPayment(ctx context.Context, req *connect.Request[api.GetPaymentRequest]) (*connect.Response[api.GetPaymentResponse], error) {
	if req.Msg.PaymentID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrMissingPaymentID)
	}

	payment, err := s.store.GetPayment(ctx, req.Msg.PaymentID)
	if err != nil {
		slog.Error("GetPayment failed", "payment_id", req.Msg.PaymentID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetPaymentResponse{Payment: toAPIPayment(payment)}), nil
}

// ListStudents returns the fee ledger.
func (s *PaymentService) ListStudents(ctx context.Context, req *connect.Request[api.ListStudentsRequest]) (*connect.Response[api.ListStudentsResponse], error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		slog.Error("ListStudents failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.Student, len(students))
	for i, st := range students {
		out[i] = toAPIStudent(st)
	}

	slog.Debug("ListStudents successful", "count", len(out))
	return connect.NewResponse(&api.ListStudentsResponse{Students: out}), nil
}

// GetDailySummary totals the payments received on a UTC day.
func (s *PaymentService) GetDailySummary(ctx context.Context, req *connect.Request[api.GetDailySummaryRequest]) (*connect.Response[api.GetDailySummaryResponse], error) {
	date := req.Msg.Date
	if date == "" {
		date = s.now().UTC().Format(reports.DateLayout)
	}

	if _, _, err := reports.DayBounds(date); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	summary, err := reports.Daily(ctx, s.store, date)
	if err != nil {
		slog.Error("GetDailySummary failed", "date", date, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&api.GetDailySummaryResponse{
		Date:       date,
		Count:      summary.Count,
		Total:      summary.Total,
		Allocated:  summary.Allocated,
		Credited:   summary.Credited,
		Unassigned: summary.Unassigned,
	}), nil
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case isValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrUnknownStudent):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func toAPIPayment(p *models.Payment) *api.Payment {
	out := &api.Payment{
		PaymentID:        p.PaymentID,
		Amount:           p.Amount,
		Term:             p.Term,
		Reference:        p.Reference,
		Allocations:      make([]api.Allocation, len(p.Allocations)),
		Credits:          make([]api.Allocation, len(p.Credits)),
		RemainingCredit:  p.RemainingCredit,
		UnassignedCredit: p.UnassignedCredit,
		MSISDN:           p.MSISDN,
		PayerName:        p.PayerName,
		ReceivedAt:       p.ReceivedAt,
	}
	for i, a := range p.Allocations {
		out.Allocations[i] = api.Allocation{AdmissionNo: a.AdmissionNo, Amount: a.Amount}
	}
	for i, c := range p.Credits {
		out.Credits[i] = api.Allocation{AdmissionNo: c.AdmissionNo, Amount: c.Amount}
	}
	return out
}

func toAPIStudent(st *models.Student) *api.Student {
	return &api.Student{
		AdmissionNo: st.AdmissionNo,
		Name:        st.Name,
		Class:       st.Class,
		PaidTotal:   st.PaidTotal,
		Credit:      st.Credit,
		Balance:     st.Balance,
		Status:      string(st.Status),
	}
}

package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/feeallocator/internal/auth"
	"github.com/mmynk/feeallocator/internal/calculator"
	"github.com/mmynk/feeallocator/internal/models"
)

// Processor records payments and resolves references against the ledger.
type Processor interface {
	Process(ctx context.Context, req models.PaymentRequest) (*models.Payment, bool, error)
	KnownStudents(ctx context.Context, reference string) ([]string, error)
}

// Handler serves the C2B callback endpoints.
type Handler struct {
	processor Processor
	verifier  *auth.SecretVerifier
	shortcode string
}

// NewHandler creates a Handler. An empty shortcode accepts callbacks for any PayBill.
func NewHandler(processor Processor, verifier *auth.SecretVerifier, shortcode string) *Handler {
	return &Handler{processor: processor, verifier: verifier, shortcode: shortcode}
}

// Routes returns a router serving POST /mpesa/validation and POST /mpesa/confirmation.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/mpesa", func(r chi.Router) {
		r.Use(h.requireSecret)
		r.Post("/validation", h.Validate)
		r.Post("/confirmation", h.Confirm)
	})
	return r
}

// requireSecret rejects callbacks whose ?token= does not match the configured secret.
func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.verifier.Verify(r.URL.Query().Get("token")); err != nil {
			slog.Warn("Rejected C2B callback", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusUnauthorized, C2BResponse{ResultCode: ResultOtherError, ResultDesc: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Validate accepts a pending payment only if its reference names at least one known
// student and its amount is whole.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}

	code, desc := h.check(r.Context(), req)
	slog.Info("C2B validation",
		"trans_id", req.TransID,
		"bill_ref", req.BillRefNumber,
		"amount", req.TransAmount,
		"result_code", code,
	)
	writeJSON(w, http.StatusOK, C2BResponse{ResultCode: code, ResultDesc: desc})
}

func (h *Handler) check(ctx context.Context, req *C2BRequest) (string, string) {
	if h.shortcode != "" && req.BusinessShortCode != "" && req.BusinessShortCode != h.shortcode {
		return ResultInvalidShort, "Rejected: unknown shortcode"
	}

	if _, err := ParseAmount(req.TransAmount); err != nil {
		return ResultInvalidAmount, "Rejected: " + err.Error()
	}

	// Any amount is rejected when the reference names nobody in the ledger.
	known, err := h.processor.KnownStudents(ctx, req.BillRefNumber)
	var verr *calculator.ValidationError
	if errors.As(err, &verr) {
		return ResultInvalidAccount, "Rejected: " + verr.Message
	}
	if err != nil {
		slog.Error("C2B validation failed", "trans_id", req.TransID, "error", err)
		return ResultOtherError, "Rejected: try again later"
	}
	if len(known) == 0 {
		return ResultInvalidAccount, "Rejected: no matching admission number"
	}
	return ResultAccepted, "Accepted"
}

// Confirm records a completed payment. Redelivered callbacks are acknowledged without
// booking the payment twice.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decode(w, r)
	if !ok {
		return
	}

	paymentReq, err := req.PaymentRequest()
	if err != nil {
		slog.Warn("C2B confirmation rejected", "trans_id", req.TransID, "error", err)
		writeJSON(w, http.StatusBadRequest, C2BResponse{ResultCode: ResultInvalidAmount, ResultDesc: err.Error()})
		return
	}

	payment, duplicate, err := h.processor.Process(r.Context(), paymentReq)
	if err != nil {
		var verr *calculator.ValidationError
		if errors.As(err, &verr) || paymentReq.PaymentID == "" {
			writeJSON(w, http.StatusBadRequest, C2BResponse{ResultCode: ResultInvalidAccount, ResultDesc: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, C2BResponse{ResultCode: ResultOtherError, ResultDesc: "Internal error"})
		return
	}

	slog.Info("C2B confirmation",
		"trans_id", payment.PaymentID,
		"duplicate", duplicate,
		"allocated", payment.TotalAllocated(),
		"credited", payment.TotalCredited(),
	)
	writeJSON(w, http.StatusOK, C2BResponse{ResultCode: ResultAccepted, ResultDesc: "Success"})
}

func decode(w http.ResponseWriter, r *http.Request) (*C2BRequest, bool) {
	var req C2BRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, C2BResponse{ResultCode: ResultOtherError, ResultDesc: "Malformed request body"})
		return nil, false
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/feeallocator/internal/auth"
	"github.com/mmynk/feeallocator/internal/calculator"
	"github.com/mmynk/feeallocator/internal/metrics"
	"github.com/mmynk/feeallocator/internal/middleware"
	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage/sqlite"
	"github.com/mmynk/feeallocator/pkg/api"
	"github.com/mmynk/feeallocator/pkg/api/apiconnect"
)

// testAuthInterceptor returns a Connect interceptor that sets a test operator in the context.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			return next(middleware.WithOperatorID(ctx, "bursar"), req)
		}
	}
}

type testEnv struct {
	client  apiconnect.PaymentServiceClient
	svc     *PaymentService
	store   *sqlite.SQLiteStore
	metrics *metrics.Metrics
}

// setupTestServer creates a test server over a temp SQLite database seeded with students.
func setupTestServer(t *testing.T, policy calculator.CreditPolicy, students ...*models.Student) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	for _, st := range students {
		if err := store.UpsertStudent(context.Background(), st); err != nil {
			t.Fatalf("failed to seed %s: %v", st.AdmissionNo, err)
		}
	}

	m := metrics.New()
	svc := NewPaymentService(store, "2026-T3", policy, m)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

	path, handler := apiconnect.NewPaymentServiceHandler(svc, connect.WithInterceptors(testAuthInterceptor()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		client:  apiconnect.NewPaymentServiceClient(http.DefaultClient, server.URL),
		svc:     svc,
		store:   store,
		metrics: m,
	}
}

func ledger() []*models.Student {
	return []*models.Student{
		{AdmissionNo: "041", Name: "Amina", Balance: 10000},
		{AdmissionNo: "1043", Name: "Brian", Balance: 5000},
		{AdmissionNo: "205", Name: "Chege", Balance: 700},
	}
}

func codeOf(err error) connect.Code {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code()
	}
	return connect.CodeUnknown
}

func TestProcessPayment_Overpayment(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)
	ctx := context.Background()

	resp, err := env.client.ProcessPayment(ctx, connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "QJK1ABC",
		Amount:    20000,
		Reference: "041|1043",
		MSISDN:    "254700000000",
		PayerName: "JANE",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	p := resp.Msg.Payment
	if resp.Msg.Duplicate {
		t.Error("first delivery must not be a duplicate")
	}
	if p.Term != "2026-T3" {
		t.Errorf("term = %s, want configured term", p.Term)
	}
	wantAlloc := []api.Allocation{{AdmissionNo: "041", Amount: 10000}, {AdmissionNo: "1043", Amount: 5000}}
	if len(p.Allocations) != 2 || p.Allocations[0] != wantAlloc[0] || p.Allocations[1] != wantAlloc[1] {
		t.Errorf("allocations = %+v, want %+v", p.Allocations, wantAlloc)
	}
	if p.RemainingCredit != 5000 || p.UnassignedCredit != 0 {
		t.Errorf("remaining = %d unassigned = %d, want 5000/0", p.RemainingCredit, p.UnassignedCredit)
	}
	if len(p.Credits) != 2 || p.Credits[0].Amount != 2500 || p.Credits[1].Amount != 2500 {
		t.Errorf("credits = %+v, want 2500 each", p.Credits)
	}
	if p.ReceivedAt != env.svc.now().Unix() {
		t.Errorf("received_at = %d, want service clock", p.ReceivedAt)
	}

	st, err := env.store.GetStudent(ctx, "041")
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if st.Balance != -2500 || st.Status != models.StatusOverpaid {
		t.Errorf("041 = %+v, want balance -2500 OVERPAID", st)
	}
}

func TestProcessPayment_BalanceFirst(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced,
		&models.Student{AdmissionNo: "1", Balance: 100},
		&models.Student{AdmissionNo: "2", Balance: 300},
		&models.Student{AdmissionNo: "3", Balance: 200},
	)

	resp, err := env.client.ProcessPayment(context.Background(), connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "P1",
		Amount:    400,
		Reference: "1|2|3",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	want := []api.Allocation{{AdmissionNo: "2", Amount: 300}, {AdmissionNo: "3", Amount: 100}}
	got := resp.Msg.Payment.Allocations
	if len(got) != len(want) {
		t.Fatalf("allocations = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("allocations[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if resp.Msg.Payment.RemainingCredit != 0 {
		t.Errorf("remaining = %d, want 0", resp.Msg.Payment.RemainingCredit)
	}
}

func TestProcessPayment_Duplicate(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)
	ctx := context.Background()

	req := &api.ProcessPaymentRequest{PaymentID: "QJK1ABC", Amount: 3000, Reference: "041|1043"}
	if _, err := env.client.ProcessPayment(ctx, connect.NewRequest(req)); err != nil {
		t.Fatalf("first ProcessPayment failed: %v", err)
	}

	resp, err := env.client.ProcessPayment(ctx, connect.NewRequest(req))
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if !resp.Msg.Duplicate {
		t.Error("expected duplicate=true on redelivery")
	}
	if resp.Msg.Payment.Allocations[0].Amount != 3000 {
		t.Errorf("expected stored payment, got %+v", resp.Msg.Payment)
	}

	st, _ := env.store.GetStudent(ctx, "041")
	if st.Balance != 7000 {
		t.Errorf("balance = %d, want 7000 after a single booking", st.Balance)
	}

	expected := `
# HELP fees_payments_total Payments processed, by outcome.
# TYPE fees_payments_total counter
fees_payments_total{outcome="duplicate"} 1
fees_payments_total{outcome="recorded"} 1
`
	if err := testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected), "fees_payments_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestProcessPayment_InvalidInput(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)

	tests := []struct {
		name string
		req  *api.ProcessPaymentRequest
	}{
		{"missing payment id", &api.ProcessPaymentRequest{Amount: 100, Reference: "041"}},
		{"empty reference", &api.ProcessPaymentRequest{PaymentID: "X1", Amount: 100, Reference: "  "}},
		{"invalid character", &api.ProcessPaymentRequest{PaymentID: "X2", Amount: 100, Reference: "041 & 1043"}},
		{"duplicate reference", &api.ProcessPaymentRequest{PaymentID: "X3", Amount: 100, Reference: "041|041"}},
		{"negative amount", &api.ProcessPaymentRequest{PaymentID: "X4", Amount: -5, Reference: "041"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.ProcessPayment(context.Background(), connect.NewRequest(tt.req))
			if code := codeOf(err); code != connect.CodeInvalidArgument {
				t.Errorf("code = %v, want InvalidArgument (err: %v)", code, err)
			}
		})
	}

	students, _ := env.store.ListStudents(context.Background())
	for _, st := range students {
		if st.PaidTotal != 0 {
			t.Errorf("%s was booked by a rejected payment", st.AdmissionNo)
		}
	}
}

func TestProcessPayment_UnknownReferences(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)

	resp, err := env.client.ProcessPayment(context.Background(), connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "P9",
		Amount:    900,
		Reference: "205|999",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	p := resp.Msg.Payment
	if len(p.Allocations) != 1 || p.Allocations[0].AdmissionNo != "205" || p.Allocations[0].Amount != 700 {
		t.Errorf("allocations = %+v, want 205:700", p.Allocations)
	}
	// 999 is unknown so the only credit recipient is 205.
	if len(p.Credits) != 1 || p.Credits[0].AdmissionNo != "205" || p.Credits[0].Amount != 200 {
		t.Errorf("credits = %+v, want 205:200", p.Credits)
	}
	if p.UnassignedCredit != 0 {
		t.Errorf("unassigned = %d, want 0", p.UnassignedCredit)
	}
}

func TestProcessPayment_NoKnownReferences(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)

	resp, err := env.client.ProcessPayment(context.Background(), connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "P10",
		Amount:    500,
		Reference: "998,999",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	p := resp.Msg.Payment
	if len(p.Allocations) != 0 || len(p.Credits) != 0 {
		t.Errorf("expected nothing booked, got %+v", p)
	}
	if p.RemainingCredit != 500 || p.UnassignedCredit != 500 {
		t.Errorf("remaining = %d unassigned = %d, want 500/500", p.RemainingCredit, p.UnassignedCredit)
	}
}

func TestProcessPayment_SkipOverpaidPolicy(t *testing.T) {
	env := setupTestServer(t, calculator.CreditSkipOverpaid,
		&models.Student{AdmissionNo: "1", Balance: -100},
		&models.Student{AdmissionNo: "2", Balance: 300},
	)

	resp, err := env.client.ProcessPayment(context.Background(), connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "P1",
		Amount:    500,
		Reference: "1|2",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	p := resp.Msg.Payment
	if len(p.Credits) != 1 || p.Credits[0].AdmissionNo != "2" || p.Credits[0].Amount != 200 {
		t.Errorf("credits = %+v, want only 2:200", p.Credits)
	}
}

func TestPreviewAllocation(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)
	ctx := context.Background()

	resp, err := env.client.PreviewAllocation(ctx, connect.NewRequest(&api.PreviewAllocationRequest{
		Amount:    3000,
		Reference: "041|  1043",
	}))
	if err != nil {
		t.Fatalf("PreviewAllocation failed: %v", err)
	}

	if len(resp.Msg.Reference) != 2 || resp.Msg.Reference[1] != "1043" {
		t.Errorf("reference = %v, want [041 1043]", resp.Msg.Reference)
	}
	if len(resp.Msg.Allocations) != 1 || resp.Msg.Allocations[0].AdmissionNo != "041" || resp.Msg.Allocations[0].Amount != 3000 {
		t.Errorf("allocations = %+v, want 041:3000", resp.Msg.Allocations)
	}

	st, _ := env.store.GetStudent(ctx, "041")
	if st.Balance != 10000 {
		t.Errorf("preview changed the ledger: balance = %d", st.Balance)
	}

	_, err = env.client.PreviewAllocation(ctx, connect.NewRequest(&api.PreviewAllocationRequest{Amount: 1, Reference: "abc"}))
	if code := codeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", code)
	}
}

func TestGetPayment(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)
	ctx := context.Background()

	_, err := env.client.ProcessPayment(ctx, connect.NewRequest(&api.ProcessPaymentRequest{
		PaymentID: "QJK1ABC", Amount: 700, Reference: "205",
	}))
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	resp, err := env.client.GetPayment(ctx, connect.NewRequest(&api.GetPaymentRequest{PaymentID: "QJK1ABC"}))
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if resp.Msg.Payment.Amount != 700 || resp.Msg.Payment.Term != "2026-T3" {
		t.Errorf("payment = %+v", resp.Msg.Payment)
	}

	_, err = env.client.GetPayment(ctx, connect.NewRequest(&api.GetPaymentRequest{PaymentID: "missing"}))
	if code := codeOf(err); code != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", code)
	}

	_, err = env.client.GetPayment(ctx, connect.NewRequest(&api.GetPaymentRequest{}))
	if code := codeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", code)
	}
}

func TestListStudents(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)

	resp, err := env.client.ListStudents(context.Background(), connect.NewRequest(&api.ListStudentsRequest{}))
	if err != nil {
		t.Fatalf("ListStudents failed: %v", err)
	}
	if len(resp.Msg.Students) != 3 {
		t.Fatalf("expected 3 students, got %d", len(resp.Msg.Students))
	}
	if resp.Msg.Students[0].AdmissionNo != "041" || resp.Msg.Students[0].Name != "Amina" {
		t.Errorf("first student = %+v", resp.Msg.Students[0])
	}
}

func TestKnownStudents(t *testing.T) {
	env := setupTestServer(t, calculator.CreditSkipOverpaid,
		&models.Student{AdmissionNo: "041", Balance: -500, Status: models.StatusOverpaid},
		&models.Student{AdmissionNo: "205", Balance: 700},
	)
	ctx := context.Background()

	tests := []struct {
		name      string
		reference string
		want      []string
	}{
		{"overpaid student is known", "041", []string{"041"}},
		{"reference order kept", "205|999,041", []string{"205", "041"}},
		{"nobody known", "998|999", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.KnownStudents(ctx, tt.reference)
			if err != nil {
				t.Fatalf("KnownStudents failed: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("KnownStudents(%q) = %v, want %v", tt.reference, got, tt.want)
			}
		})
	}

	var verr *calculator.ValidationError
	if _, err := env.svc.KnownStudents(ctx, "041|041"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for duplicate parts, got %v", err)
	}
}

func TestGetDailySummary(t *testing.T) {
	env := setupTestServer(t, calculator.CreditAllReferenced, ledger()...)
	ctx := context.Background()

	for _, req := range []*api.ProcessPaymentRequest{
		{PaymentID: "A", Amount: 20000, Reference: "041|1043"},
		{PaymentID: "B", Amount: 900, Reference: "205|999"},
		{PaymentID: "C", Amount: 100, Reference: "205", ReceivedAt: 86400},
	} {
		if _, err := env.client.ProcessPayment(ctx, connect.NewRequest(req)); err != nil {
			t.Fatalf("ProcessPayment(%s) failed: %v", req.PaymentID, err)
		}
	}

	resp, err := env.client.GetDailySummary(ctx, connect.NewRequest(&api.GetDailySummaryRequest{}))
	if err != nil {
		t.Fatalf("GetDailySummary failed: %v", err)
	}
	got := resp.Msg
	if got.Date != "2026-10-18" {
		t.Errorf("date = %s, want today", got.Date)
	}
	if got.Count != 2 || got.Total != 20900 || got.Allocated != 15700 || got.Credited != 5200 || got.Unassigned != 0 {
		t.Errorf("summary = %+v", got)
	}

	_, err = env.client.GetDailySummary(ctx, connect.NewRequest(&api.GetDailySummaryRequest{Date: "18/10/2026"}))
	if code := codeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", code)
	}
}

func TestRequireAuth_OverRPC(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	jwtManager := auth.NewJWTManager("service-test-secret", time.Hour)
	svc := NewPaymentService(store, "2026-T3", calculator.CreditAllReferenced, nil)
	path, handler := apiconnect.NewPaymentServiceHandler(svc,
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor()),
	)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	client := apiconnect.NewPaymentServiceClient(http.DefaultClient, server.URL)

	_, err = client.ListStudents(context.Background(), connect.NewRequest(&api.ListStudentsRequest{}))
	if code := codeOf(err); code != connect.CodeUnauthenticated {
		t.Errorf("code = %v, want Unauthenticated", code)
	}

	token, err := jwtManager.Generate("bursar")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	req := connect.NewRequest(&api.ListStudentsRequest{})
	req.Header().Set("Authorization", "Bearer "+token)
	if _, err := client.ListStudents(context.Background(), req); err != nil {
		t.Errorf("authorized call failed: %v", err)
	}
}

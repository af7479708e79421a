// Package apiconnect wires the api messages to Connect handlers and clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/feeallocator/pkg/api"
)

// PaymentServiceName is the fully-qualified name of the PaymentService.
const PaymentServiceName = "feeallocator.v1.PaymentService"

// Procedure paths of the PaymentService.
const (
	PaymentServiceProcessPaymentProcedure    = "/feeallocator.v1.PaymentService/ProcessPayment"
	PaymentServicePreviewAllocationProcedure = "/feeallocator.v1.PaymentService/PreviewAllocation"
	PaymentServiceGetPaymentProcedure        = "/feeallocator.v1.PaymentService/GetPayment"
	PaymentServiceListStudentsProcedure      = "/feeallocator.v1.PaymentService/ListStudents"
	PaymentServiceGetDailySummaryProcedure   = "/feeallocator.v1.PaymentService/GetDailySummary"
)

// PaymentServiceHandler is implemented by the server side of the PaymentService.
type PaymentServiceHandler interface {
	ProcessPayment(context.Context, *connect.Request[api.ProcessPaymentRequest]) (*connect.Response[api.ProcessPaymentResponse], error)
	PreviewAllocation(context.Context, *connect.Request[api.PreviewAllocationRequest]) (*connect.Response[api.PreviewAllocationResponse], error)
	GetPayment(context.Context, *connect.Request[api.GetPaymentRequest]) (*connect.Response[api.GetPaymentResponse], error)
	ListStudents(context.Context, *connect.Request[api.ListStudentsRequest]) (*connect.Response[api.ListStudentsResponse], error)
	GetDailySummary(context.Context, *connect.Request[api.GetDailySummaryRequest]) (*connect.Response[api.GetDailySummaryResponse], error)
}

// NewPaymentServiceHandler builds an HTTP handler serving every PaymentService procedure.
// It returns the path prefix to mount the handler on.
func NewPaymentServiceHandler(svc PaymentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	handlers := map[string]http.Handler{
		PaymentServiceProcessPaymentProcedure:    connect.NewUnaryHandler(PaymentServiceProcessPaymentProcedure, svc.ProcessPayment, opts...),
		PaymentServicePreviewAllocationProcedure: connect.NewUnaryHandler(PaymentServicePreviewAllocationProcedure, svc.PreviewAllocation, opts...),
		PaymentServiceGetPaymentProcedure:        connect.NewUnaryHandler(PaymentServiceGetPaymentProcedure, svc.GetPayment, opts...),
		PaymentServiceListStudentsProcedure:      connect.NewUnaryHandler(PaymentServiceListStudentsProcedure, svc.ListStudents, opts...),
		PaymentServiceGetDailySummaryProcedure:   connect.NewUnaryHandler(PaymentServiceGetDailySummaryProcedure, svc.GetDailySummary, opts...),
	}

	prefix := "/" + PaymentServiceName + "/"
	return prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// PaymentServiceClient is a client for the PaymentService.
type PaymentServiceClient interface {
	ProcessPayment(context.Context, *connect.Request[api.ProcessPaymentRequest]) (*connect.Response[api.ProcessPaymentResponse], error)
	PreviewAllocation(context.Context, *connect.Request[api.PreviewAllocationRequest]) (*connect.Response[api.PreviewAllocationResponse], error)
	GetPayment(context.Context, *connect.Request[api.GetPaymentRequest]) (*connect.Response[api.GetPaymentResponse], error)
	ListStudents(context.Context, *connect.Request[api.ListStudentsRequest]) (*connect.Response[api.ListStudentsResponse], error)
	GetDailySummary(context.Context, *connect.Request[api.GetDailySummaryRequest]) (*connect.Response[api.GetDailySummaryResponse], error)
}

// NewPaymentServiceClient constructs a client for the PaymentService at baseURL
// (e.g. http://localhost:8080).
func NewPaymentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PaymentServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &paymentServiceClient{
		processPayment:    connect.NewClient[api.ProcessPaymentRequest, api.ProcessPaymentResponse](httpClient, baseURL+PaymentServiceProcessPaymentProcedure, opts...),
		previewAllocation: connect.NewClient[api.PreviewAllocationRequest, api.PreviewAllocationResponse](httpClient, baseURL+PaymentServicePreviewAllocationProcedure, opts...),
		getPayment:        connect.NewClient[api.GetPaymentRequest, api.GetPaymentResponse](httpClient, baseURL+PaymentServiceGetPaymentProcedure, opts...),
		listStudents:      connect.NewClient[api.ListStudentsRequest, api.ListStudentsResponse](httpClient, baseURL+PaymentServiceListStudentsProcedure, opts...),
		getDailySummary:   connect.NewClient[api.GetDailySummaryRequest, api.GetDailySummaryResponse](httpClient, baseURL+PaymentServiceGetDailySummaryProcedure, opts...),
	}
}

type paymentServiceClient struct {
	processPayment    *connect.Client[api.ProcessPaymentRequest, api.ProcessPaymentResponse]
	previewAllocation *connect.Client[api.PreviewAllocationRequest, api.PreviewAllocationResponse]
	getPayment        *connect.Client[api.GetPaymentRequest, api.GetPaymentResponse]
	listStudents      *connect.Client[api.ListStudentsRequest, api.ListStudentsResponse]
	getDailySummary   *connect.Client[api.GetDailySummaryRequest, api.GetDailySummaryResponse]
}

func (c *paymentServiceClient) ProcessPayment(ctx context.Context, req *connect.Request[api.ProcessPaymentRequest]) (*connect.Response[api.ProcessPaymentResponse], error) {
	return c.processPayment.CallUnary(ctx, req)
}

func (c *paymentServiceClient) PreviewAllocation(ctx context.Context, req *connect.Request[api.PreviewAllocationRequest]) (*connect.Response[api.PreviewAllocationResponse], error) {
	return c.previewAllocation.CallUnary(ctx, req)
}

func (c *paymentServiceClient) GetPayment(ctx context.Context, req *connect.Request[api.GetPaymentRequest]) (*connect.Response[api.GetPaymentResponse], error) {
	return c.getPayment.CallUnary(ctx, req)
}

func (c *paymentServiceClient) ListStudents(ctx context.Context, req *connect.Request[api.ListStudentsRequest]) (*connect.Response[api.ListStudentsResponse], error) {
	return c.listStudents.CallUnary(ctx, req)
}

func (c *paymentServiceClient) GetDailySummary(ctx context.Context, req *connect.Request[api.GetDailySummaryRequest]) (*connect.Response[api.GetDailySummaryResponse], error) {
	return c.getDailySummary.CallUnary(ctx, req)
}

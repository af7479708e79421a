package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/feeallocator/internal/auth"
	"github.com/mmynk/feeallocator/internal/config"
	"github.com/mmynk/feeallocator/internal/metrics"
	"github.com/mmynk/feeallocator/internal/middleware"
	"github.com/mmynk/feeallocator/internal/mpesa"
	"github.com/mmynk/feeallocator/internal/service"
	"github.com/mmynk/feeallocator/internal/storage/backend"
	"github.com/mmynk/feeallocator/pkg/api/apiconnect"
	"github.com/mmynk/feeallocator/pkg/logging"
)

const serviceName = "school-fees-automation"

func main() {
	envFile := flag.String("env", "", "path to a .env file (default: ./.env if present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := backend.Open(cfg.Store, false)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	verifier, err := auth.NewSecretVerifier(cfg.MPesa.WebhookSecretHash)
	if err != nil {
		slog.Error("Invalid MPESA_WEBHOOK_SECRET_HASH", "error", err)
		os.Exit(1)
	}
	if !verifier.Enabled() {
		slog.Warn("M-Pesa callbacks are not authenticated; set MPESA_WEBHOOK_SECRET_HASH")
	}

	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	paymentSvc := service.NewPaymentService(store, cfg.Term, cfg.CreditPolicy, m)

	mux := http.NewServeMux()

	// Connect services, authenticated per call
	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor())
	paymentPath, paymentHandler := apiconnect.NewPaymentServiceHandler(paymentSvc, interceptors)
	mux.Handle(paymentPath, paymentHandler)

	mux.Handle("/mpesa/", mpesa.NewHandler(paymentSvc, verifier, cfg.MPesa.Shortcode).Routes())
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /{$}", statusHandler)

	// Add logging and CORS middleware, then h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Connect server starting",
			"address", server.Addr,
			"store", cfg.Store.Backend,
			"term", cfg.Term,
			"credit_policy", cfg.CreditPolicy,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": serviceName})
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package http serves the finance JSON API, report downloads, health checks
// and Prometheus metrics.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "financas/internal/log"
	"financas/internal/metrics"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
	"financas/internal/session"
)

// CheckFunc is a readiness probe for one dependency.
type CheckFunc func(ctx context.Context) error

// Deps are the collaborators the server routes to.
type Deps struct {
	Service            *services.FinanceService
	Verifier           *session.Verifier
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
	RateLimitPerMinute int
	// ReadyChecks run on /readyz; the record store is always checked.
	ReadyChecks map[string]CheckFunc
	Now         func() time.Time
}

type Server struct {
	http.Server

	svc      *services.FinanceService
	verifier *session.Verifier
	metrics  *metrics.Metrics
	logger   *applog.Logger
	audit    *applog.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	checks   map[string]CheckFunc

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	base := deps.Logger
	if base == nil {
		base = slog.Default()
	}
	logger := applog.New(applog.Config{Handler: base.Handler(), Component: applog.ComponentHTTP})

	s := &Server{
		svc:      deps.Service,
		verifier: deps.Verifier,
		metrics:  deps.Metrics,
		logger:   logger,
		audit:    applog.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
		checks:   map[string]CheckFunc{},
		started:  now(),
		now:      now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	if deps.Service != nil {
		s.checks["store"] = deps.Service.Store().Ping
	}
	for name, check := range deps.ReadyChecks {
		s.checks[name] = check
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.GetRequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /healthz", s.public("GET /healthz", s.handleHealth))
	mux.Handle("GET /readyz", s.public("GET /readyz", s.handleReady))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.api(mux, "GET /api/dashboard", s.handleDashboard)

	s.api(mux, "POST /api/purchases", s.handleCreatePurchase)
	s.api(mux, "GET /api/purchases", s.handleListPurchases)

	s.api(mux, "POST /api/bills", s.handleCreateBill)
	s.api(mux, "GET /api/bills", s.handleListBills)
	s.api(mux, "GET /api/bills/upcoming", s.handleUpcomingBills)
	s.api(mux, "PUT /api/bills/{id}", s.handleUpdateBill)
	s.api(mux, "DELETE /api/bills/{id}", s.handleDeactivateBill)

	s.api(mux, "POST /api/salaries", s.handleRegisterSalary)
	s.api(mux, "GET /api/tithes", s.handleTitheOverview)
	s.api(mux, "POST /api/tithes/{id}/pay", s.handlePayTithe)

	s.api(mux, "GET /api/reports/consumption", s.handleReportJSON)
	s.api(mux, "GET /api/reports/consumption.txt", s.handleReportText)
	s.api(mux, "GET /api/reports/consumption.xlsx", s.handleReportXLSX)
}

// public wraps unauthenticated endpoints with metrics only.
func (s *Server) public(route string, h http.HandlerFunc) http.Handler {
	return s.metrics.Instrument(route, h)
}

// api registers an authenticated, rate limited route.
func (s *Server) api(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	handler = session.Middleware(s.verifier, nil)(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(handler)
	mux.Handle(pattern, s.metrics.Instrument(pattern, handler))
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited"})
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

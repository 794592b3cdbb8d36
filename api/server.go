// Package api provides the HTTP API server for the food-cost sentinel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pg-png/wwithai-foodcost-sentinel/db/clickhouse"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/report"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/sentinel"
	model "github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

const version = "1.0.0"

// Pinger reports backing store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunStore records analysis runs for later comparison.
type RunStore interface {
	SaveRun(ctx context.Context, kind string, period model.DateRange, impact float64, issues int, payload interface{}) (uuid.UUID, error)
	ListRuns(ctx context.Context, kind string, limit int) ([]clickhouse.Run, error)
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	svc        *sentinel.Service
	ready      []Pinger
	runs       RunStore
	config     *Config
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   90 * time.Second,
		RequestTimeout: 60 * time.Second,
		MaxRequestSize: 1 << 20,
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server
func NewServer(svc *sentinel.Service, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{svc: svc, config: config}
}

// WithReadiness adds stores checked by /ready.
func (s *Server) WithReadiness(p ...Pinger) *Server {
	s.ready = append(s.ready, p...)
	return s
}

// WithRuns records cost-impact and audit runs.
func (s *Server) WithRuns(rs RunStore) *Server {
	s.runs = rs
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/match", s.handleMatch)
		r.Post("/match/confirm", s.handleConfirm)
		r.Get("/cost-impact", s.handleCostImpact)
		r.Get("/audit", s.handleAudit)
		r.Get("/conversions", s.handleConversions)
		r.Post("/conversions/apply", s.handleApplyConversions)
		r.Post("/conversions/rules", s.handleAddRule)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/ingredients/fix", s.handleFix)
		r.Post("/ingredients/fix/bulk", s.handleBulkFix)
		r.Get("/report", s.handleReport)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	log.Info().Int("port", s.config.Port).Str("version", version).Msg("Starting food-cost API server")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		log.Info().Msg("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, p := range s.ready {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			s.jsonError(w, http.StatusServiceUnavailable, "store not ready", "")
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// MATCHING
// =============================================================================

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, serrors.NewInvalidInputError("limit", "limit must be an integer"))
			return
		}
		limit = n
	}
	rep, err := s.svc.Reconcile(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rep)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req sentinel.ConfirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.ConfirmMatch(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// =============================================================================
// REPORTS
// =============================================================================

func periodRequest(r *http.Request) sentinel.PeriodRequest {
	q := r.URL.Query()
	return sentinel.PeriodRequest{
		Period: q.Get("period"),
		Start:  q.Get("start_date"),
		End:    q.Get("end_date"),
	}
}

func (s *Server) handleCostImpact(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.CostImpact(r.Context(), periodRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveRun(r.Context(), "cost_impact", rep.Period, rep.Summary.TotalFinancialImpact, rep.Summary.CriticalRecipes, rep)
	s.jsonResponse(w, http.StatusOK, rep)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Audit(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveRun(r.Context(), "audit", model.DateRange{}, 0, rep.Summary.TotalIssues, rep)
	s.jsonResponse(w, http.StatusOK, rep)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Alerts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rep)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "cost-impact"
	}

	var md, title string
	switch kind {
	case "cost-impact":
		rep, err := s.svc.CostImpact(ctx, periodRequest(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		md, title = report.CostImpact(rep), "Food Cost Impact"
	case "audit":
		rep, err := s.svc.Audit(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		md, title = report.Audit(rep), "Ingredient Audit"
	case "alerts":
		rep, err := s.svc.Alerts(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		md, title = report.Alerts(rep), "Price Alerts"
	case "match":
		rep, err := s.svc.Reconcile(ctx, 0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		md, title = report.Reconcile(rep), "Invoice Reconciliation"
	case "conversions":
		plan, err := s.svc.Conversions(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		md, title = report.Conversions(plan), "Pack Conversions"
	default:
		s.writeError(w, serrors.NewInvalidInputError("kind", "unknown report kind "+kind))
		return
	}

	page, err := report.HTML(title, md)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.jsonError(w, http.StatusNotImplemented, "run history not configured", "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type RunResponse struct {
		ID          string `json:"id"`
		Kind        string `json:"kind"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
		TotalImpact string `json:"total_impact"`
		IssueCount  uint32 `json:"issue_count"`
		CreatedAt   string `json:"created_at"`
	}
	resp := make([]RunResponse, len(runs))
	for i, run := range runs {
		resp[i] = RunResponse{
			ID:          run.ID.String(),
			Kind:        run.Kind,
			PeriodStart: run.PeriodStart,
			PeriodEnd:   run.PeriodEnd,
			TotalImpact: run.TotalImpact.StringFixed(2),
			IssueCount:  run.IssueCount,
			CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// saveRun records a run. Failures are logged, never returned.
func (s *Server) saveRun(ctx context.Context, kind string, period model.DateRange, impact float64, issues int, payload interface{}) {
	if s.runs == nil {
		return
	}
	id, err := s.runs.SaveRun(ctx, kind, period, impact, issues, payload)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Failed to save analysis run")
		return
	}
	log.Debug().Str("kind", kind).Str("run_id", id.String()).Msg("Saved analysis run")
}

// =============================================================================
// UPDATES
// =============================================================================

func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.Conversions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, plan)
}

// ApplyConversionsResponse reports an apply run.
type ApplyConversionsResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"applied_count"`
	Written bool `json:"applied"`
	conversions.ApplyResult
}

func (s *Server) handleApplyConversions(w http.ResponseWriter, r *http.Request) {
	var req conversions.ApplyRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	res, applied, err := s.svc.ApplyConversions(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ApplyConversionsResponse{
		Success:     true,
		Count:       len(res.Applied),
		Written:     applied,
		ApplyResult: res,
	})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rule conversions.Rule
	if !s.decode(w, r, &rule) {
		return
	}
	res, err := s.svc.AddConversionRule(r.Context(), rule)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req sentinel.FixRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.FixIngredient(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// BulkFixRequest carries several fixes.
type BulkFixRequest struct {
	Fixes []sentinel.FixRequest `json:"fixes"`
}

func (s *Server) handleBulkFix(w http.ResponseWriter, r *http.Request) {
	var req BulkFixRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.FixIngredients(r.Context(), req.Fixes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body. Numbers stay json.Number so fix values keep
// their kind.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), serrors.ErrCodeInvalidInput)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var se *serrors.SentinelError
	switch {
	case serrors.IsValidation(err):
		errors.As(err, &se)
		s.jsonError(w, http.StatusBadRequest, err.Error(), se.Code)
	case serrors.IsNotFound(err):
		s.jsonError(w, http.StatusNotFound, err.Error(), serrors.ErrCodeNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		s.jsonError(w, http.StatusGatewayTimeout, "request timed out", "")
	default:
		log.Error().Err(err).Msg("Request failed")
		s.jsonError(w, http.StatusBadGateway, err.Error(), serrors.ErrCodeUpstream)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message, code string) {
	s.jsonResponse(w, status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	})
}

// Package api provides the HTTP server for fairvalue.
//
// It exposes company financials read from screener.in, the DCF inputs derived
// from them, and the FCFF projection, plus the embedded web UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/fairvalue/internal/config"
	"github.com/seenimoa/fairvalue/internal/screener"
	"github.com/seenimoa/fairvalue/internal/statement"
	"github.com/seenimoa/fairvalue/internal/valuation"
	"github.com/seenimoa/fairvalue/pkg/utils"
	"github.com/seenimoa/fairvalue/web"
)

// FinancialsService returns a company's statements and where they came from.
type FinancialsService interface {
	Financials(ctx context.Context, ticker string) (screener.Financials, screener.Source, error)
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     FinancialsService
	version string
	serveUI bool // when true, serve the embedded web UI at /
	log     *slog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc FinancialsService, version string) *Server {
	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		version: version,
		serveUI: cfg.API.ServeUI,
		log:     slog.Default().With("component", "api"),
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetServeUI controls whether the embedded web UI is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and blocks until SIGINT/SIGTERM or a
// server error, then shuts down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/financials", s.handleFinancials)
		r.Get("/inputs", s.handleInputs)
		r.Post("/dcf", s.handleDCF)
		r.Get("/value", s.handleValue)

		r.Get("/config", s.handleGetConfig)
		r.Get("/config/secrets", s.handleGetSecrets)
	})

	if s.serveUI {
		s.mountUI(r, web.StaticFS())
	}

	return r
}

// mountUI serves the embedded static UI. Unknown paths fall back to
// index.html.
func (s *Server) mountUI(r chi.Router, staticFS fs.FS) {
	fileServer := http.FileServerFS(staticFS)

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rPath := strings.TrimPrefix(r.URL.Path, "/")
		if rPath == "" {
			rPath = "index.html"
		}

		f, err := staticFS.Open(rPath)
		if err != nil {
			serveIndexHTML(w, staticFS)
			return
		}
		f.Close()

		if strings.HasSuffix(rPath, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}

// serveIndexHTML reads and serves the embedded index.html.
func serveIndexHTML(w http.ResponseWriter, staticFS fs.FS) {
	data, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		http.Error(w, "web UI not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// FinancialsResponse is the data of GET /api/financials.
type FinancialsResponse struct {
	Ticker       string             `json:"ticker"`
	Source       screener.Source    `json:"source"`
	ProfitLoss   statement.Table    `json:"profit_loss"`
	BalanceSheet statement.Table    `json:"balance_sheet"`
	CashFlow     statement.Table    `json:"cash_flow"`
	Reports      []statement.Report `json:"reports,omitempty"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// InputsResponse is the data of GET /api/inputs.
type InputsResponse struct {
	Ticker  string             `json:"ticker"`
	Source  screener.Source    `json:"source"`
	Inputs  valuation.Inputs   `json:"inputs"`
	Reports []statement.Report `json:"reports,omitempty"`
}

// DCFRequest is the body for POST /api/dcf.
type DCFRequest struct {
	valuation.Assumptions
	Detail bool `json:"detail,omitempty"` // return the year-by-year schedule
}

// ValueResponse is the data of GET /api/value.
type ValueResponse struct {
	Ticker      string                `json:"ticker"`
	Source      screener.Source       `json:"source"`
	Assumptions valuation.Assumptions `json:"assumptions"`
	Result      valuation.Result      `json:"result"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": s.version,
			"cache":   s.cfg.Cache.Backend,
		},
	})
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	fin, src, ok := s.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: FinancialsResponse{
			Ticker:       fin.Ticker,
			Source:       src,
			ProfitLoss:   fin.ProfitLoss,
			BalanceSheet: fin.BalanceSheet,
			CashFlow:     fin.CashFlow,
			Reports:      fin.Reports,
			FetchedAt:    fin.FetchedAt,
		},
	})
}

func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	fin, src, ok := s.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: InputsResponse{
			Ticker:  fin.Ticker,
			Source:  src,
			Inputs:  valuation.DeriveInputs(fin.ProfitLoss, fin.BalanceSheet, fin.CashFlow),
			Reports: fin.Reports,
		},
	})
}

func (s *Server) handleDCF(w http.ResponseWriter, r *http.Request) {
	var req DCFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Detail {
		proj, err := valuation.ProjectDetailed(req.Assumptions)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: proj})
		return
	}

	res, err := valuation.Project(req.Assumptions)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// handleValue fetches, derives and projects in one call. Assumptions omitted
// from the query use the configured defaults; shares is required.
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a := valuation.Assumptions{
		GrowthPath:     s.cfg.Valuation.GrowthPath,
		WACC:           s.cfg.Valuation.WACC,
		TerminalGrowth: s.cfg.Valuation.TerminalGrowth,
	}

	for name, dst := range map[string]*float64{
		"wacc":            &a.WACC,
		"terminal_growth": &a.TerminalGrowth,
		"shares":          &a.Shares,
	} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+name+": "+raw)
				return
			}
			*dst = v
		}
	}
	if raw := q.Get("growth"); raw != "" {
		path, err := ParseGrowthPath(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.GrowthPath = path
	}

	fin, src, ok := s.fetch(w, r)
	if !ok {
		return
	}
	a.Inputs = valuation.DeriveInputs(fin.ProfitLoss, fin.BalanceSheet, fin.CashFlow)

	res, err := valuation.Project(a)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ValueResponse{Ticker: fin.Ticker, Source: src, Assumptions: a, Result: res},
	})
}

// fetch reads the ticker query parameter and loads its financials, writing
// the error response itself when that fails.
func (s *Server) fetch(w http.ResponseWriter, r *http.Request) (screener.Financials, screener.Source, bool) {
	ticker := r.URL.Query().Get("ticker")
	if strings.TrimSpace(ticker) == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return screener.Financials{}, "", false
	}

	fin, src, err := s.svc.Financials(r.Context(), ticker)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("financials fetch failed", "ticker", ticker, "error", err)
		}
		writeError(w, status, err.Error())
		return screener.Financials{}, "", false
	}
	return fin, src, true
}

// ParseGrowthPath parses a comma-separated list of yearly growth rates.
func ParseGrowthPath(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	path := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.New("invalid growth rate: " + p)
		}
		path = append(path, v)
	}
	return path, nil
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalidTicker), errors.Is(err, valuation.ErrInvalidAssumptions):
		return http.StatusBadRequest
	case errors.Is(err, screener.ErrTickerNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// Package server exposes the stored dossiers over a small read-only JSON
// API. All analysis happens in the CLI; the API only serves what a run has
// already committed.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/triggers"
)

const (
	defaultRateLimitRPS   = 10
	defaultRateLimitBurst = 20
)

// Server serves committed reports, deltas, and trigger state.
type Server struct {
	store   store.Store
	limiter *rate.Limiter
	now     func() time.Time
}

// New builds a Server over the given store.
func New(st store.Store, cfg config.ServerConfig) *Server {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = defaultRateLimitRPS
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	return &Server{
		store:   st,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		now:     time.Now,
	}
}

// Handler assembles the chi router with CORS and rate limiting applied to
// every route.
func (s *Server) Handler(cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.throttle)

	r.Get("/health", s.handleHealth)
	r.Get("/reports/{ticker}", s.handleReport)
	r.Get("/reports/{ticker}/delta", s.handleDelta)
	r.Get("/triggers/{ticker}", s.handleTriggers)
	r.Get("/triggers/{ticker}/alerts", s.handleAlerts)
	return r
}

func allowedOrigins(cfg config.ServerConfig) []string {
	if len(cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.AllowedOrigins
}

// throttle applies one token bucket across all clients. The API fronts a
// single analyst team, not the public internet.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	report, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticker": report.Ticker,
		"delta":  report.Delta,
	})
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	defs, err := s.store.ListTriggers(r.Context(), ticker)
	if err != nil {
		s.serveFailure(w, r, err)
		return
	}
	if defs == nil {
		defs = []model.Trigger{}
	}
	writeJSON(w, http.StatusOK, defs)
}

// handleAlerts evaluates the ticker's covenants against the last committed
// report. With no report every watched metric is unconfirmed, which shows
// up as PENDING.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	defs, err := s.store.ListTriggers(r.Context(), ticker)
	if err != nil {
		s.serveFailure(w, r, err)
		return
	}

	values := map[string]float64{}
	report, err := s.store.GetReport(r.Context(), ticker)
	switch {
	case err == nil:
		for _, m := range report.Analyst.Metrics {
			if v, ok := m.Numeric(); ok {
				values[m.Name] = v
			}
		}
	case !store.IsNotFound(err):
		s.serveFailure(w, r, err)
		return
	}

	alerts := triggers.Evaluate(defs, values, s.now().UTC())
	if alerts == nil {
		alerts = []model.TriggerAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*model.Report, bool) {
	ticker := chi.URLParam(r, "ticker")
	report, err := s.store.GetReport(r.Context(), ticker)
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "no report for "+ticker)
		return nil, false
	}
	if err != nil {
		s.serveFailure(w, r, err)
		return nil, false
	}
	return report, true
}

func (s *Server) serveFailure(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("server: request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

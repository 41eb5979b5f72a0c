package http

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	applog "bankops/internal/log"
	"bankops/internal/margin"
	"bankops/internal/metrics"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleReady reports whether templates are loaded and the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "database": "ok"}
	ready := true
	if s.templates == nil {
		checks["templates"] = "not loaded"
		ready = false
	}
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Database not ready", applog.FieldError, err)
			checks["database"] = "unreachable"
			ready = false
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}

// handleMargins serves the demo margin report. A seed makes the generated
// data reproducible.
func (s *Server) handleMargins(w http.ResponseWriter, r *http.Request) {
	seed := s.now().UnixNano()
	if v := strings.TrimSpace(r.URL.Query().Get("seed")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.fail(w, r, &paramError{Name: "seed", Value: v})
			return
		}
		seed = n
	}
	ds := margin.Generate(rand.New(rand.NewSource(seed)), s.now())
	respondJSON(w, http.StatusOK, map[string]any{
		"totals":      margin.CalculateTotals(ds.Incomes, ds.Costs),
		"by_month":    margin.ByMonth(ds.Incomes, ds.Costs),
		"by_category": margin.ByCategory(ds.Incomes, ds.Costs),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"http":           s.tracer.GetMetrics(),
		"rate_limit":     s.limiter.GetMetrics(),
		"security":       s.detector.GetMetrics(),
		"cache":          s.analysis.CacheStats(),
	}
	if s.metrics != nil {
		out["app"] = s.metrics.Summary()
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	h := metrics.CheckSystemHealth(s.logsDir)
	status := http.StatusOK
	if h.Status == metrics.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, h)
}

// Package trace counts requests and exposes the request id assigned by the
// router.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware tracks request counts and latency.
type Middleware struct {
	totalRequests int64
	clientErrors  int64
	serverErrors  int64
	totalMicros   int64
	now           func() time.Time
}

// Metrics is a snapshot of the counters.
type Metrics struct {
	TotalRequests       int64 `json:"total_requests"`
	ClientErrors        int64 `json:"client_errors"`
	ServerErrors        int64 `json:"server_errors"`
	AverageResponseTime int64 `json:"average_response_us"`
}

func NewMiddleware() *Middleware {
	return &Middleware{now: time.Now}
}

// Middleware returns HTTP middleware recording each request.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		atomic.AddInt64(&m.totalRequests, 1)
		atomic.AddInt64(&m.totalMicros, m.now().Sub(start).Microseconds())
		switch status := ww.Status(); {
		case status >= 500:
			atomic.AddInt64(&m.serverErrors, 1)
		case status >= 400:
			atomic.AddInt64(&m.clientErrors, 1)
		}
	})
}

func (m *Middleware) GetMetrics() Metrics {
	total := atomic.LoadInt64(&m.totalRequests)
	metrics := Metrics{
		TotalRequests: total,
		ClientErrors:  atomic.LoadInt64(&m.clientErrors),
		ServerErrors:  atomic.LoadInt64(&m.serverErrors),
	}
	if total > 0 {
		metrics.AverageResponseTime = atomic.LoadInt64(&m.totalMicros) / total
	}
	return metrics
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// RequestID reads the request id of r.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

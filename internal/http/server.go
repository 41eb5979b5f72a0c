// Package http serves the dashboard and the JSON API.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bankops/internal/analysis"
	"bankops/internal/cache"
	"bankops/internal/core"
	applog "bankops/internal/log"
	"bankops/internal/metrics"
	"bankops/internal/middleware/ratelimit"
	"bankops/internal/middleware/security"
	"bankops/internal/middleware/trace"
	"bankops/internal/services"
	appweb "bankops/web"
)

type (
	// Analyzer is the analysis pipeline.
	Analyzer interface {
		Ingest(ctx context.Context, name string, content []byte) (core.Upload, error)
		Analyze(ctx context.Context, src services.Source, p services.Params) (*core.Analysis, error)
		RequestExport(ctx context.Context, hash string, threshold float64, sel analysis.Selection) (int64, error)
		DefaultParams() services.Params
		CacheStats() map[string]cache.Stats
	}

	History interface {
		Sum(ctx context.Context, a, b float64) (core.Calculation, error)
		Greet(ctx context.Context, name string) (core.Greeting, error)
		RecentCalculations(ctx context.Context, limit int) ([]core.Calculation, error)
		RecentGreetings(ctx context.Context, limit int) ([]core.Greeting, error)
	}

	UploadLister interface {
		ListUploads(ctx context.Context, limit int) ([]core.Upload, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps are the services the server delegates to. Metrics may be nil.
type Deps struct {
	Analysis Analyzer
	History  History
	Uploads  UploadLister
	DB       Pinger
	Metrics  *metrics.Metrics
}

// Options configures limits and middleware.
type Options struct {
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	LogsDir            string
	Logger             *slog.Logger
}

type Server struct {
	http.Server
	logger    *slog.Logger
	templates *template.Template

	analysis Analyzer
	history  History
	uploads  UploadLister
	db       Pinger
	metrics  *metrics.Metrics

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	maxUploadBytes int64
	corsOrigins    []string
	logsDir        string
	started        time.Time
	now            func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		logger:         logger.With(applog.FieldComponent, applog.ComponentHTTP),
		analysis:       deps.Analysis,
		history:        deps.History,
		uploads:        deps.Uploads,
		db:             deps.DB,
		metrics:        deps.Metrics,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:       security.NewDetector(),
		tracer:         trace.NewMiddleware(),
		maxUploadBytes: opts.MaxUploadBytes,
		corsOrigins:    opts.CORSAllowedOrigins,
		logsDir:        opts.LogsDir,
		started:        time.Now(),
		now:            time.Now,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger, trace.RequestID, s.detector.ExtractClientIP))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit, applog.FieldPath, r.URL.Path)
		s.fail(w, r, errRateLimited)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Get("/static/*", static.ServeHTTP)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.With(limited).Post("/uploads", s.handleUpload)
	r.With(limited).Post("/uploads/{hash}/export", s.handleExport)

	r.Route("/api", func(r chi.Router) {
		r.Use(newCORS(s.corsOrigins).Handler)

		r.Get("/analysis", s.handleAnalysis)
		r.Get("/uploads", s.handleListUploads)
		r.With(limited).Post("/uploads", s.handleUpload)
		r.With(limited).Post("/uploads/{hash}/export", s.handleExport)

		r.Get("/calculations", s.handleListCalculations)
		r.With(limited).Post("/calculations", s.handleCreateCalculation)
		r.Get("/greetings", s.handleListGreetings)
		r.With(limited).Post("/greetings", s.handleCreateGreeting)

		r.Get("/margins", s.handleMargins)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/health", s.handleSystemHealth)
	})

	return r
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func newCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Type", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

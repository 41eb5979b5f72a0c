package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"bankops/internal/amqp"
	"bankops/internal/analysis"
	"bankops/internal/cache"
	"bankops/internal/core"
	"bankops/internal/loader"
	applog "bankops/internal/log"
	"bankops/internal/metrics"
)

var (
	// ErrNoValidDates is returned when every row of a file was dropped
	// because its date did not parse.
	ErrNoValidDates = errors.New("no operation with a valid date")
	// ErrSchemaMismatch is wrapped by SchemaError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrExportsDisabled is returned when no export queue is configured.
	ErrExportsDisabled = errors.New("report exports are disabled")
)

// SchemaError carries the readable header diff of a rejected file.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return "schema mismatch: " + e.Message
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

type (
	UploadStore interface {
		SaveUpload(ctx context.Context, u core.Upload, content []byte) (core.Upload, error)
		GetUpload(ctx context.Context, hash string) (core.Upload, []byte, error)
	}

	ExportQueue interface {
		EnqueueExport(ctx context.Context, hash string, threshold float64, from, to core.Date) (int64, error)
	}

	ExportPublisher interface {
		PublishReportExport(ctx context.Context, msg *amqp.ReportExportMessage) error
	}
)

// AnalysisConfig holds the pipeline settings taken from config.Config.
type AnalysisConfig struct {
	Format           loader.Format
	DefaultFile      string
	DefaultThreshold float64
	PageSize         int
	CacheSize        int
	CacheTTL         time.Duration
	AutoExport       bool
}

// Source selects the operations file: a stored upload, or the configured
// default file when UploadHash is empty.
type Source struct {
	UploadHash string
}

// Params are the per-request analysis knobs.
type Params struct {
	Threshold float64 // fraction in [0, 1]
	Selection analysis.Selection
	Page      int
	PageSize  int // 0 uses the configured size
	ByDate    bool
}

// AnalysisService runs the load, filter and aggregate pipeline with
// content-addressed caching.
type AnalysisService struct {
	cfg       AnalysisConfig
	loader    *loader.Loader
	uploads   UploadStore
	exports   ExportQueue
	publisher ExportPublisher
	metrics   *metrics.Metrics

	tableStore  *cache.LRUCache[core.OperationTable]
	filterStore *cache.LRUCache[[]core.Expense]
	tables      *cache.Memo[core.OperationTable]
	filtered    *cache.Memo[[]core.Expense]

	now func() time.Time
}

// NewAnalysisService wires the pipeline. exports, publisher and m may be nil.
func NewAnalysisService(cfg AnalysisConfig, uploads UploadStore, exports ExportQueue, publisher ExportPublisher, m *metrics.Metrics) *AnalysisService {
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	tableStore := cache.NewLRUCache[core.OperationTable](cfg.CacheSize, cfg.CacheTTL)
	filterStore := cache.NewLRUCache[[]core.Expense](cfg.CacheSize, cfg.CacheTTL)
	return &AnalysisService{
		cfg:         cfg,
		loader:      loader.New(cfg.Format),
		uploads:     uploads,
		exports:     exports,
		publisher:   publisher,
		metrics:     m,
		tableStore:  tableStore,
		filterStore: filterStore,
		tables:      cache.NewMemo(tableStore),
		filtered:    cache.NewMemo(filterStore),
		now:         time.Now,
	}
}

// DefaultParams returns the first page at the configured threshold.
func (s *AnalysisService) DefaultParams() Params {
	return Params{Threshold: s.cfg.DefaultThreshold, Page: 1}
}

// Caches exposes the memo stores for periodic cleanup.
func (s *AnalysisService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.tableStore, s.filterStore}
}

// CacheStats reports hit counters for the load and filter caches.
func (s *AnalysisService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"tables":   s.tables.Stats(),
		"filtered": s.filtered.Stats(),
	}
}

// Ingest validates, loads and stores an uploaded file. Uploading the same
// bytes twice yields the same hash and reuses the cached table.
func (s *AnalysisService) Ingest(ctx context.Context, name string, content []byte) (core.Upload, error) {
	logger := applog.FromContext(ctx).With(applog.FieldComponent, applog.ComponentAnalysis, applog.FieldOperation, applog.OpUpload)
	name = filepath.Base(name)

	if len(bytes.TrimSpace(content)) == 0 {
		s.recordError(loader.ErrEmptyData, map[string]any{"filename": name})
		return core.Upload{}, loader.ErrEmptyData
	}
	if ok, msg := loader.ValidateSchema(bytes.NewReader(content), s.cfg.Format); !ok {
		err := &SchemaError{Message: msg}
		s.recordError(err, map[string]any{"filename": name})
		return core.Upload{}, err
	}

	hash := cache.ContentHash(content)
	table, err := s.table(hash, content)
	if err != nil {
		s.recordError(err, map[string]any{"filename": name})
		return core.Upload{}, err
	}
	if len(table.Operations) == 0 && table.DroppedDates > 0 {
		s.recordError(ErrNoValidDates, map[string]any{"filename": name})
		return core.Upload{}, ErrNoValidDates
	}

	upload, err := s.uploads.SaveUpload(ctx, core.Upload{
		Hash:         hash,
		Filename:     name,
		SizeBytes:    int64(len(content)),
		Rows:         len(table.Operations),
		DroppedDates: table.DroppedDates,
		CreatedAt:    s.now().UTC(),
	}, content)
	if err != nil {
		s.recordError(err, map[string]any{"filename": name})
		return core.Upload{}, fmt.Errorf("save upload: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordUpload(name, upload.SizeBytes)
	}
	logger.InfoContext(ctx, "Upload stored", applog.NewFields().
		WithUpload(hash, name, upload.SizeBytes).
		WithOperation(applog.OpUpload).ToSlice()...)

	if s.cfg.AutoExport && s.exports != nil {
		if _, err := s.RequestExport(ctx, hash, s.cfg.DefaultThreshold, analysis.Selection{}); err != nil {
			logger.WarnContext(ctx, "Automatic report export failed", applog.FieldUploadHash, hash, applog.FieldError, err)
		}
	}
	return upload, nil
}

// Analyze runs the full pipeline for src.
func (s *AnalysisService) Analyze(ctx context.Context, src Source, p Params) (*core.Analysis, error) {
	a, _, err := s.run(ctx, src, p)
	return a, err
}

// BuildReport runs the pipeline on an upload and returns the unpaged
// summary together with the statistics and pivot.
func (s *AnalysisService) BuildReport(ctx context.Context, hash string, threshold float64, sel analysis.Selection) (core.Report, error) {
	a, rows, err := s.run(ctx, Source{UploadHash: hash}, Params{Threshold: threshold, Selection: sel, Page: 1})
	if err != nil {
		return core.Report{}, err
	}
	return core.Report{
		UploadHash:        hash,
		QuantileThreshold: threshold,
		GeneratedAt:       s.now().UTC(),
		Statistics:        a.Statistics,
		Pivot:             a.Pivot,
		Summary:           rows,
	}, nil
}

// RequestExport queues a report export for an upload and, when a publisher
// is configured, notifies the worker. A failed publish leaves the job
// pending for the worker's sweep.
func (s *AnalysisService) RequestExport(ctx context.Context, hash string, threshold float64, sel analysis.Selection) (int64, error) {
	if s.exports == nil {
		return 0, ErrExportsDisabled
	}
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	if threshold < 0 || threshold > 1 {
		return 0, analysis.ErrInvalidThreshold
	}
	if _, _, err := s.uploads.GetUpload(ctx, hash); err != nil {
		return 0, err
	}

	id, err := s.exports.EnqueueExport(ctx, hash, threshold, sel.From, sel.To)
	if err != nil {
		return 0, fmt.Errorf("enqueue export: %w", err)
	}
	if s.publisher != nil {
		msg := amqp.NewReportExportMessage(id, hash, threshold, sel.From, sel.To)
		if err := s.publisher.PublishReportExport(ctx, msg); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Export queued but not published", applog.FieldExportID, id, applog.FieldError, err)
		}
	}
	return id, nil
}

func (s *AnalysisService) run(ctx context.Context, src Source, p Params) (*core.Analysis, []core.SummaryRow, error) {
	start := s.now()
	logger := applog.FromContext(ctx).With(applog.FieldComponent, applog.ComponentAnalysis)

	if err := p.Selection.Validate(); err != nil {
		return nil, nil, err
	}

	content, label, err := s.source(ctx, src)
	if err != nil {
		s.recordError(err, map[string]any{"source": src.UploadHash})
		return nil, nil, err
	}
	hash := cache.ContentHash(content)
	table, err := s.table(hash, content)
	if err != nil {
		s.recordError(err, map[string]any{"source": label})
		return nil, nil, err
	}
	if len(table.Operations) == 0 && table.DroppedDates > 0 {
		return nil, nil, ErrNoValidDates
	}

	sel := p.Selection
	key := cache.Key("filter", hash, p.Threshold, sel.From, sel.To)
	expenses, hit, err := s.filtered.Do(key, func() ([]core.Expense, error) {
		return analysis.FilterExpenses(sel.ByDate(table.Operations), p.Threshold)
	})
	if err != nil {
		return nil, nil, err
	}
	narrowed := sel.ByCategory(expenses)

	rows := analysis.SummaryTable(narrowed, expenses, analysis.SummaryOptions{ByDate: p.ByDate})
	size := p.PageSize
	if size == 0 {
		size = s.cfg.PageSize
	}

	a := &core.Analysis{
		Source:            label,
		QuantileThreshold: p.Threshold,
		DroppedDates:      table.DroppedDates,
		Operations:        len(table.Operations),
		Statistics:        analysis.ComputeStatistics(expenses),
		Chart:             analysis.ChartData(narrowed),
		CategoryTotals:    analysis.CategoryTotals(narrowed),
		Summary:           analysis.Paginate(rows, p.Page, size),
		Pivot:             analysis.CategoryMonthPivot(narrowed),
		Options:           sel.Options(table.Operations, expenses),
	}
	a.Duration = s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.RecordProcessingTime(a.Duration)
	}
	logger.DebugContext(ctx, "Analysis computed",
		"source", label,
		applog.FieldThreshold, p.Threshold,
		"expenses", len(expenses),
		"narrowed", len(narrowed),
		"filter_cache_hit", hit,
		applog.FieldDuration, a.Duration.Milliseconds())
	return a, rows, nil
}

// source returns the bytes and display label of src.
func (s *AnalysisService) source(ctx context.Context, src Source) ([]byte, string, error) {
	if src.UploadHash != "" {
		u, content, err := s.uploads.GetUpload(ctx, src.UploadHash)
		if err != nil {
			return nil, "", err
		}
		return content, u.Filename, nil
	}

	content, err := os.ReadFile(s.cfg.DefaultFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", loader.ErrNotFound, s.cfg.DefaultFile)
		}
		return nil, "", fmt.Errorf("read operations file: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, "", loader.ErrEmptyData
	}
	if ok, msg := loader.ValidateSchema(bytes.NewReader(content), s.cfg.Format); !ok {
		return nil, "", &SchemaError{Message: msg}
	}
	return content, filepath.Base(s.cfg.DefaultFile), nil
}

func (s *AnalysisService) table(hash string, content []byte) (core.OperationTable, error) {
	table, _, err := s.tables.Do(cache.Key("load", hash), func() (core.OperationTable, error) {
		return s.loader.Load(bytes.NewReader(content))
	})
	return table, err
}

func (s *AnalysisService) recordError(err error, context map[string]any) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordError(ErrorType(err), err.Error(), context)
}

// ErrorType classifies err for metrics and logs.
func ErrorType(err error) string {
	var parseErr *loader.ParseError
	switch {
	case errors.Is(err, loader.ErrEmptyData):
		return applog.ErrorTypeEmpty
	case errors.Is(err, loader.ErrNotFound):
		return applog.ErrorTypeNotFound
	case errors.As(err, &parseErr), errors.Is(err, loader.ErrEncoding):
		return applog.ErrorTypeParse
	case errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrNoValidDates),
		errors.Is(err, analysis.ErrInvalidThreshold), errors.Is(err, analysis.ErrInvalidDateRange):
		return applog.ErrorTypeValidation
	}
	return applog.ErrorTypeInternal
}

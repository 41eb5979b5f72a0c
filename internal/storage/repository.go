package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bankops/internal/core"

	_ "modernc.org/sqlite"
)

const (
	timestampLayout = time.RFC3339Nano

	// MaxExportAttempts is the number of failures after which an export is
	// marked failed and no longer swept.
	MaxExportAttempts = 5
)

var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrExportNotFound = errors.New("report export not found")
)

// ExportStatus is the lifecycle state of a report export.
type ExportStatus string

const (
	ExportPending ExportStatus = "pending"
	ExportDone    ExportStatus = "done"
	ExportFailed  ExportStatus = "failed"
)

// ExportJob is one queued report export.
type ExportJob struct {
	ID                int64
	UploadHash        string
	QuantileThreshold float64
	From              core.Date
	To                core.Date
	Status            ExportStatus
	Attempts          int
	LastError         string
	SheetRef          string
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Database schema ready", "component", "storage", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SaveCalculation(ctx context.Context, a, b, result float64) (core.Calculation, error) {
	row, err := r.queries.CreateCalculation(ctx, CreateCalculationParams{
		Operand1:  a,
		Operand2:  b,
		Result:    result,
		Timestamp: r.stamp(),
	})
	if err != nil {
		return core.Calculation{}, fmt.Errorf("create calculation: %w", err)
	}
	slog.DebugContext(ctx, "Calculation saved", "component", "storage", "id", row.ID)
	return toCalculation(row), nil
}

func (r *SQLiteRepository) RecentCalculations(ctx context.Context, limit int) ([]core.Calculation, error) {
	rows, err := r.queries.ListCalculations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	out := make([]core.Calculation, len(rows))
	for i, row := range rows {
		out[i] = toCalculation(row)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveGreeting(ctx context.Context, name string) (core.Greeting, error) {
	row, err := r.queries.CreateGreeting(ctx, name, r.stamp())
	if err != nil {
		return core.Greeting{}, fmt.Errorf("create greeting: %w", err)
	}
	slog.DebugContext(ctx, "Greeting saved", "component", "storage", "id", row.ID)
	return toGreeting(row), nil
}

func (r *SQLiteRepository) RecentGreetings(ctx context.Context, limit int) ([]core.Greeting, error) {
	rows, err := r.queries.ListGreetings(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	out := make([]core.Greeting, len(rows))
	for i, row := range rows {
		out[i] = toGreeting(row)
	}
	return out, nil
}

// SaveUpload stores the upload bytes under their content hash. Saving the
// same content again only refreshes the filename.
func (r *SQLiteRepository) SaveUpload(ctx context.Context, u core.Upload, content []byte) (core.Upload, error) {
	row, err := r.queries.UpsertUpload(ctx, Upload{
		Hash:         u.Hash,
		Filename:     u.Filename,
		SizeBytes:    int64(len(content)),
		RowCount:     int64(u.Rows),
		DroppedDates: int64(u.DroppedDates),
		Content:      content,
		CreatedAt:    r.stamp(),
	})
	if err != nil {
		return core.Upload{}, fmt.Errorf("save upload: %w", err)
	}
	slog.InfoContext(ctx, "Upload stored",
		"component", "storage",
		"hash", row.Hash,
		"filename", row.Filename,
		"size_bytes", row.SizeBytes)
	return toUpload(row), nil
}

func (r *SQLiteRepository) GetUpload(ctx context.Context, hash string) (core.Upload, []byte, error) {
	row, err := r.queries.GetUpload(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Upload{}, nil, fmt.Errorf("%w: %s", ErrUploadNotFound, hash)
	}
	if err != nil {
		return core.Upload{}, nil, fmt.Errorf("get upload: %w", err)
	}
	return toUpload(row), row.Content, nil
}

func (r *SQLiteRepository) ListUploads(ctx context.Context, limit int) ([]core.Upload, error) {
	rows, err := r.queries.ListUploads(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	out := make([]core.Upload, len(rows))
	for i, row := range rows {
		out[i] = toUpload(row)
	}
	return out, nil
}

// EnqueueExport records a pending export and returns its id.
func (r *SQLiteRepository) EnqueueExport(ctx context.Context, hash string, threshold float64, from, to core.Date) (int64, error) {
	id, err := r.queries.CreateReportExport(ctx, CreateReportExportParams{
		UploadHash:        hash,
		QuantileThreshold: threshold,
		DateFrom:          dateText(from),
		DateTo:            dateText(to),
		Now:               r.stamp(),
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue export: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id int64) (ExportJob, error) {
	row, err := r.queries.GetReportExport(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportJob{}, fmt.Errorf("%w: %d", ErrExportNotFound, id)
	}
	if err != nil {
		return ExportJob{}, fmt.Errorf("get export: %w", err)
	}
	return toExportJob(row), nil
}

// PendingExports returns exports still waiting, oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]ExportJob, error) {
	rows, err := r.queries.GetPendingReportExports(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	out := make([]ExportJob, len(rows))
	for i, row := range rows {
		out[i] = toExportJob(row)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkExportDone(ctx context.Context, id int64, sheetRef string) error {
	if err := r.queries.MarkReportExportDone(ctx, id, sheetRef, r.stamp()); err != nil {
		return fmt.Errorf("mark export %d done: %w", id, err)
	}
	return nil
}

// MarkExportError records a failed attempt. After MaxExportAttempts the job
// is marked failed.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.queries.MarkReportExportError(ctx, id, msg, MaxExportAttempts, r.stamp()); err != nil {
		return fmt.Errorf("mark export %d error: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().Format(timestampLayout)
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dateText(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDateText(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(core.DateLayout, s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func toCalculation(row Calculation) core.Calculation {
	return core.Calculation{
		ID:        row.ID,
		Operand1:  row.Operand1,
		Operand2:  row.Operand2,
		Result:    row.Result,
		Timestamp: parseStamp(row.Timestamp),
	}
}

func toGreeting(row Greeting) core.Greeting {
	return core.Greeting{
		ID:        row.ID,
		Name:      row.Name,
		Message:   core.GreetingMessage(row.Name),
		Timestamp: parseStamp(row.Timestamp),
	}
}

func toUpload(row Upload) core.Upload {
	return core.Upload{
		Hash:         row.Hash,
		Filename:     row.Filename,
		SizeBytes:    row.SizeBytes,
		Rows:         int(row.RowCount),
		DroppedDates: int(row.DroppedDates),
		CreatedAt:    parseStamp(row.CreatedAt),
	}
}

func toExportJob(row ReportExport) ExportJob {
	return ExportJob{
		ID:                row.ID,
		UploadHash:        row.UploadHash,
		QuantileThreshold: row.QuantileThreshold,
		From:              parseDateText(row.DateFrom),
		To:                parseDateText(row.DateTo),
		Status:            ExportStatus(row.Status),
		Attempts:          int(row.Attempts),
		LastError:         row.LastError,
		SheetRef:          row.SheetRef,
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bankops/internal/amqp"
	"bankops/internal/analysis"
	"bankops/internal/core"
	applog "bankops/internal/log"
	"bankops/internal/sheets"
	"bankops/internal/storage"
)

// ExportStore is the report_exports queue.
type ExportStore interface {
	GetExport(ctx context.Context, id int64) (storage.ExportJob, error)
	PendingExports(ctx context.Context, limit int) ([]storage.ExportJob, error)
	MarkExportDone(ctx context.Context, id int64, sheetRef string) error
	MarkExportError(ctx context.Context, id int64, cause error) error
}

// ReportBuilder runs the analysis pipeline for a stored upload.
type ReportBuilder interface {
	BuildReport(ctx context.Context, hash string, threshold float64, sel analysis.Selection) (core.Report, error)
}

// ExportWorker writes queued reports to the sheet sink.
type ExportWorker struct {
	store     ExportStore
	reports   ReportBuilder
	writer    sheets.ReportWriter
	batchSize int
	logger    *slog.Logger
}

func NewExportWorker(store ExportStore, reports ReportBuilder, writer sheets.ReportWriter, batchSize int, logger *slog.Logger) *ExportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		store:     store,
		reports:   reports,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleExportMessage processes one export event from AMQP. Jobs that are no
// longer pending, or that do not exist, are acknowledged without work. A failed export is recorded
// on the job and left for the sweep; only a failure to record it is returned,
// so the message is redelivered.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ReportExportMessage) error {
	w.logger.InfoContext(ctx, "Processing export message",
		"message_id", msg.ID,
		applog.FieldExportID, msg.ExportID,
		applog.FieldUploadHash, msg.UploadHash)

	job, err := w.store.GetExport(ctx, msg.ExportID)
	if errors.Is(err, storage.ErrExportNotFound) {
		// Redelivery cannot make the row appear.
		w.logger.WarnContext(ctx, "Dropping message for unknown export",
			applog.FieldExportID, msg.ExportID, applog.FieldError, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get export: %w", err)
	}
	if job.Status != storage.ExportPending {
		w.logger.DebugContext(ctx, "Export already handled", applog.FieldExportID, job.ID, "status", job.Status)
		return nil
	}
	_, err = w.process(ctx, job)
	return err
}

// ProcessPending exports up to one batch of pending jobs. It backs up the
// AMQP path when messages are lost or the broker is down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.sweep(ctx, w.batchSize)
}

// StartupCheck runs a larger sweep when the worker starts.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	n, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup export check completed", "exported", n)
	return nil
}

func (w *ExportWorker) sweep(ctx context.Context, limit int) (int, error) {
	jobs, err := w.store.PendingExports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(jobs))

	done := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		ok, err := w.process(ctx, job)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to record export result", applog.FieldExportID, job.ID, applog.FieldError, err)
			continue
		}
		if ok {
			done++
		}
	}
	return done, nil
}

// process exports job and reports whether it succeeded. The error is only
// set when the outcome could not be stored.
func (w *ExportWorker) process(ctx context.Context, job storage.ExportJob) (bool, error) {
	sel := analysis.Selection{From: job.From, To: job.To}
	report, err := w.reports.BuildReport(ctx, job.UploadHash, job.QuantileThreshold, sel)
	if err == nil {
		var ref string
		ref, err = w.writer.WriteReport(ctx, report)
		if err == nil {
			if markErr := w.store.MarkExportDone(ctx, job.ID, ref); markErr != nil {
				return false, markErr
			}
			w.logger.InfoContext(ctx, "Report exported",
				applog.FieldExportID, job.ID,
				applog.FieldUploadHash, job.UploadHash,
				applog.FieldSheetRef, ref,
				applog.FieldRows, len(report.Summary))
			return true, nil
		}
		err = fmt.Errorf("write report: %w", err)
	} else {
		err = fmt.Errorf("build report: %w", err)
	}

	w.logger.WarnContext(ctx, "Report export failed",
		applog.FieldExportID, job.ID,
		"attempt", job.Attempts+1,
		applog.FieldError, err)
	return false, w.store.MarkExportError(ctx, job.ID, err)
}

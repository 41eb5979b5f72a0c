package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	applog "bankops/internal/log"
)

// ScheduleSweep registers ProcessPending on a standard five-field cron
// schedule. Overlapping runs are skipped. The caller starts and stops the
// returned scheduler.
func (w *ExportWorker) ScheduleSweep(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		n, err := w.ProcessPending(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Export sweep failed", applog.FieldError, err)
			return
		}
		if n > 0 {
			w.logger.InfoContext(ctx, "Export sweep completed", "exported", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule export sweep %q: %w", spec, err)
	}
	return c, nil
}

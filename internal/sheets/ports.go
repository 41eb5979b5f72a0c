package sheets

import (
	"context"

	"bankops/internal/core"
)

// ReportWriter is the outbound port for exported reports. It returns a
// reference to where the report was written.
type ReportWriter interface {
	WriteReport(ctx context.Context, r core.Report) (ref string, err error)
}

package backend

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"

	"bankops/internal/sheets"
	gsheet "bankops/internal/sheets/google"
	mem "bankops/internal/sheets/memory"
)

// DefaultFactory builds the concrete report writers. Options are passed to
// the Google Sheets client.
type DefaultFactory struct {
	Options []option.ClientOption
}

func NewFactory(opts ...option.ClientOption) *DefaultFactory {
	return &DefaultFactory{Options: opts}
}

// CreateWriter creates a report writer for the resolved sink type.
func (f *DefaultFactory) CreateWriter(ctx context.Context, config Config) (sheets.ReportWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sink configuration: %w", err)
	}

	switch config.Type {
	case SheetsSink:
		client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.SheetBase, f.Options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Sheets client: %w", err)
		}
		slog.InfoContext(ctx, "Google Sheets report sink initialized", "spreadsheet_id", config.GoogleSpreadsheetID)
		return client, nil
	default:
		slog.InfoContext(ctx, "Memory report sink initialized", "sheet_base", config.SheetBase)
		return mem.New(config.SheetBase), nil
	}
}

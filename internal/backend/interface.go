// Package backend selects where exported reports are written.
package backend

import (
	"context"
	"fmt"

	"bankops/internal/config"
	"bankops/internal/sheets"
)

// SinkType represents the type of report sink
type SinkType string

const (
	AutoSink   SinkType = "auto"
	SheetsSink SinkType = "sheets"
	MemorySink SinkType = "memory"
)

// IsValid checks if the sink type is valid
func (t SinkType) IsValid() bool {
	switch t {
	case AutoSink, SheetsSink, MemorySink:
		return true
	}
	return false
}

// Config holds configuration for sink creation
type Config struct {
	Type SinkType

	GoogleSpreadsheetID string
	SheetBase           string
}

// FromAppConfig converts the application config to a sink config. Auto
// resolves to sheets when a spreadsheet is configured.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	sinkType := SinkType(appConfig.ReportSink)
	if !sinkType.IsValid() {
		return Config{}, fmt.Errorf("invalid report sink in config: %s", appConfig.ReportSink)
	}
	if sinkType == AutoSink {
		sinkType = MemorySink
		if appConfig.GoogleSpreadsheetID != "" {
			sinkType = SheetsSink
		}
	}
	return Config{
		Type:                sinkType,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		SheetBase:           appConfig.ReportSheetName,
	}, nil
}

// Validate validates the sink configuration
func (c Config) Validate() error {
	switch c.Type {
	case SheetsSink:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets sink")
		}
	case MemorySink:
	default:
		return fmt.Errorf("unresolved sink type: %s", c.Type)
	}
	return nil
}

// Factory creates report writers based on configuration
type Factory interface {
	CreateWriter(ctx context.Context, config Config) (sheets.ReportWriter, error)
}

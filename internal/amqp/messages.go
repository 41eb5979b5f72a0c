package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bankops/internal/core"
)

// ReportExportMessage asks the worker to export one queued report. It carries
// the queue row id; the worker reloads the job from the database.
type ReportExportMessage struct {
	ID                uuid.UUID `json:"id"`
	ExportID          int64     `json:"export_id"`
	UploadHash        string    `json:"upload_hash"`
	QuantileThreshold float64   `json:"quantile_threshold"`
	From              core.Date `json:"from"`
	To                core.Date `json:"to"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewReportExportMessage creates a message with a fresh id and timestamp.
func NewReportExportMessage(exportID int64, uploadHash string, threshold float64, from, to core.Date) *ReportExportMessage {
	return &ReportExportMessage{
		ID:                uuid.New(),
		ExportID:          exportID,
		UploadHash:        uploadHash,
		QuantileThreshold: threshold,
		From:              from,
		To:                to,
		Timestamp:         time.Now(),
	}
}

func (m *ReportExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportExportMessageFromJSON(data []byte) (*ReportExportMessage, error) {
	var msg ReportExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Package metrics tracks application counters and timings in a JSON file
// and reports host health. A single Metrics value is created at startup and
// passed to the components that record into it.
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	maxTimings = 100
	maxErrors  = 50
)

// Timing is one recorded processing duration.
type Timing struct {
	Duration  float64   `json:"duration"` // seconds
	Timestamp time.Time `json:"timestamp"`
}

// ErrorRecord is one recorded application error.
type ErrorRecord struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context"`
}

type snapshot struct {
	AppStarts       int           `json:"app_starts"`
	FilesUploaded   int           `json:"files_uploaded"`
	ProcessingTimes []Timing      `json:"data_processing_time"`
	Errors          []ErrorRecord `json:"errors"`
	Sessions        int           `json:"users_sessions"`
}

// Summary is the performance overview served by the API.
type Summary struct {
	TotalAppStarts     int          `json:"total_app_starts"`
	TotalFilesUploaded int          `json:"total_files_uploaded"`
	TotalErrors        int          `json:"total_errors"`
	TotalSessions      int          `json:"total_sessions"`
	AvgProcessingTime  float64      `json:"avg_processing_time"`
	LastError          *ErrorRecord `json:"last_error"`
}

type Metrics struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
	data   snapshot
}

// Open loads metrics from path. A missing file starts from zero; an
// unreadable one is logged and replaced on the next save.
func Open(path string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{path: path, logger: logger.With("component", "metrics"), now: time.Now}
	m.load()
	return m
}

func (m *Metrics) load() {
	if m.path == "" {
		return
	}
	b, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		err = json.Unmarshal(b, &m.data)
	}
	if err != nil {
		m.logger.Error("Failed to load metrics", "path", m.path, "error", err)
		m.data = snapshot{}
	}
}

// save writes the snapshot through a temp file. Caller holds mu.
func (m *Metrics) save() {
	if m.path == "" {
		return
	}
	if err := m.write(); err != nil {
		m.logger.Error("Failed to save metrics", "path", m.path, "error", err)
	}
}

func (m *Metrics) write() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".metrics-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}

func (m *Metrics) IncrementAppStarts() {
	m.mu.Lock()
	m.data.AppStarts++
	total := m.data.AppStarts
	m.save()
	m.mu.Unlock()
	m.logger.Info(fmt.Sprintf("Application started (total starts: %d)", total), "app_starts", total)
}

func (m *Metrics) IncrementSessions() {
	m.mu.Lock()
	m.data.Sessions++
	m.save()
	m.mu.Unlock()
}

// RecordUpload counts an accepted upload.
func (m *Metrics) RecordUpload(filename string, size int64) {
	m.mu.Lock()
	m.data.FilesUploaded++
	m.save()
	m.mu.Unlock()
	m.logger.Info(fmt.Sprintf("File uploaded: %s (%d bytes)", filename, size), "filename", filename, "size_bytes", size)
}

// RecordProcessingTime keeps the last 100 pipeline durations.
func (m *Metrics) RecordProcessingTime(d time.Duration) {
	m.mu.Lock()
	m.data.ProcessingTimes = append(m.data.ProcessingTimes, Timing{Duration: d.Seconds(), Timestamp: m.now()})
	if n := len(m.data.ProcessingTimes); n > maxTimings {
		m.data.ProcessingTimes = append([]Timing(nil), m.data.ProcessingTimes[n-maxTimings:]...)
	}
	m.save()
	m.mu.Unlock()
	m.logger.Info(fmt.Sprintf("Data processing completed in %.2fs", d.Seconds()), "duration_s", d.Seconds())
}

// RecordError keeps the last 50 errors.
func (m *Metrics) RecordError(errorType, message string, context map[string]any) {
	if context == nil {
		context = map[string]any{}
	}
	m.mu.Lock()
	m.data.Errors = append(m.data.Errors, ErrorRecord{Type: errorType, Message: message, Timestamp: m.now(), Context: context})
	if n := len(m.data.Errors); n > maxErrors {
		m.data.Errors = append([]ErrorRecord(nil), m.data.Errors[n-maxErrors:]...)
	}
	m.save()
	m.mu.Unlock()
	m.logger.Error(fmt.Sprintf("Error recorded: %s - %s", errorType, message), "error_type", errorType)
}

func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		TotalAppStarts:     m.data.AppStarts,
		TotalFilesUploaded: m.data.FilesUploaded,
		TotalErrors:        len(m.data.Errors),
		TotalSessions:      m.data.Sessions,
	}
	if n := len(m.data.ProcessingTimes); n > 0 {
		var total float64
		for _, t := range m.data.ProcessingTimes {
			total += t.Duration
		}
		s.AvgProcessingTime = total / float64(n)
	}
	if n := len(m.data.Errors); n > 0 {
		last := m.data.Errors[n-1]
		s.LastError = &last
	}
	return s
}

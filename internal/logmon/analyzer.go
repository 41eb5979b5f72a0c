// Package logmon analyzes and tails the daily application log files written
// by internal/log.
package logmon

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	applog "bankops/internal/log"
)

var (
	errorPattern      = regexp.MustCompile(`\blevel=ERROR\b`)
	warnPattern       = regexp.MustCompile(`\blevel=WARN\b`)
	uploadPattern     = regexp.MustCompile(`File uploaded: (.+?) \((\d+) bytes\)`)
	processingPattern = regexp.MustCompile(`Data processing completed in ([\d.]+)s`)
	appStartPattern   = regexp.MustCompile(`Application started`)
	timePattern       = regexp.MustCompile(`^time=(\S+)`)
)

// LineRef points at one log line.
type LineRef struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type UploadEntry struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Summary struct {
	ErrorCount        int     `json:"error_count"`
	WarningCount      int     `json:"warning_count"`
	UploadCount       int     `json:"upload_count"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	MaxProcessingTime float64 `json:"max_processing_time"`
	TotalAppStarts    int     `json:"total_app_starts"`
}

type Report struct {
	Period          string        `json:"period"`
	FilesAnalyzed   int           `json:"files_analyzed"`
	TotalLines      int           `json:"total_lines"`
	Errors          []LineRef     `json:"errors"`
	Warnings        []LineRef     `json:"warnings"`
	Uploads         []UploadEntry `json:"uploads"`
	ProcessingTimes []float64     `json:"processing_times"`
	AppStarts       int           `json:"app_starts"`
	Summary         Summary       `json:"summary"`
}

type Analyzer struct {
	LogsDir string
	now     func() time.Time
}

func NewAnalyzer(logsDir string) *Analyzer {
	return &Analyzer{LogsDir: logsDir, now: time.Now}
}

// Files returns the existing log files for the last days, newest first.
func (a *Analyzer) Files(days int) []string {
	var files []string
	today := a.now()
	for i := 0; i < days; i++ {
		path := filepath.Join(a.LogsDir, applog.FileName(today.AddDate(0, 0, -i)))
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	return files
}

// TodayFile is the path of the current day's log.
func (a *Analyzer) TodayFile() string {
	return filepath.Join(a.LogsDir, applog.FileName(a.now()))
}

// Analyze scans the last days of logs. Unreadable files are reported in
// the returned error but do not stop the scan.
func (a *Analyzer) Analyze(days int) (Report, error) {
	if days < 1 {
		return Report{}, fmt.Errorf("days must be positive, got %d", days)
	}
	r := Report{
		Period:          fmt.Sprintf("Last %d days", days),
		Errors:          []LineRef{},
		Warnings:        []LineRef{},
		Uploads:         []UploadEntry{},
		ProcessingTimes: []float64{},
	}

	var errs []error
	files := a.Files(days)
	r.FilesAnalyzed = len(files)
	for _, path := range files {
		if err := r.scan(path); err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", filepath.Base(path), err))
		}
	}

	r.Summary = Summary{
		ErrorCount:     len(r.Errors),
		WarningCount:   len(r.Warnings),
		UploadCount:    len(r.Uploads),
		TotalAppStarts: r.AppStarts,
	}
	if n := len(r.ProcessingTimes); n > 0 {
		var total float64
		for _, d := range r.ProcessingTimes {
			total += d
			if d > r.Summary.MaxProcessingTime {
				r.Summary.MaxProcessingTime = d
			}
		}
		r.Summary.AvgProcessingTime = total / float64(n)
	}
	return r, errors.Join(errs...)
}

func (r *Report) scan(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		r.TotalLines++
		line := strings.TrimSpace(sc.Text())

		switch {
		case errorPattern.MatchString(line):
			r.Errors = append(r.Errors, LineRef{File: name, Line: lineNum, Message: line})
		case warnPattern.MatchString(line):
			r.Warnings = append(r.Warnings, LineRef{File: name, Line: lineNum, Message: line})
		}

		if m := uploadPattern.FindStringSubmatch(line); m != nil {
			size, _ := strconv.ParseInt(m[2], 10, 64)
			entry := UploadEntry{Filename: m[1], Size: size}
			if ts := timePattern.FindStringSubmatch(line); ts != nil {
				entry.Timestamp = ts[1]
			}
			r.Uploads = append(r.Uploads, entry)
		}
		if m := processingPattern.FindStringSubmatch(line); m != nil {
			if d, err := strconv.ParseFloat(m[1], 64); err == nil {
				r.ProcessingTimes = append(r.ProcessingTimes, d)
			}
		}
		if appStartPattern.MatchString(line) {
			r.AppStarts++
		}
	}
	return sc.Err()
}

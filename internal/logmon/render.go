package logmon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"bankops/internal/metrics"
)

const tailLines = 50

var (
	errorColor = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	infoColor  = color.New(color.FgGreen)
	titleColor = color.New(color.Bold)
)

func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText prints the human summary with the five most recent errors.
func WriteText(w io.Writer, r Report) {
	titleColor.Fprintf(w, "Log Analysis - %s\n", r.Period)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Files analyzed: %d\n", r.FilesAnalyzed)
	fmt.Fprintf(w, "Total log lines: %d\n", r.TotalLines)
	fmt.Fprintf(w, "App starts: %d\n", r.Summary.TotalAppStarts)
	fmt.Fprintf(w, "File uploads: %d\n", r.Summary.UploadCount)
	fmt.Fprintf(w, "Errors: %d\n", r.Summary.ErrorCount)
	fmt.Fprintf(w, "Warnings: %d\n", r.Summary.WarningCount)
	fmt.Fprintf(w, "Avg processing time: %.2fs\n", r.Summary.AvgProcessingTime)
	fmt.Fprintf(w, "Max processing time: %.2fs\n", r.Summary.MaxProcessingTime)

	if len(r.Errors) > 0 {
		errorColor.Fprintln(w, "\nRecent Errors:")
		recent := r.Errors
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, e := range recent {
			fmt.Fprintf(w, "  - %s:%d - %s\n", e.File, e.Line, e.Message)
		}
	}
}

// WriteHealth prints host health together with the persisted counters.
func WriteHealth(w io.Writer, h metrics.Health, s metrics.Summary) {
	titleColor.Fprintln(w, "Application Health Check")
	fmt.Fprintln(w, strings.Repeat("=", 30))
	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(h.Status))
	fmt.Fprintf(w, "Timestamp: %s\n", h.Timestamp.Format(time.RFC3339))

	fmt.Fprintln(w, "\nPerformance Metrics:")
	fmt.Fprintf(w, "  Total app starts: %d\n", s.TotalAppStarts)
	fmt.Fprintf(w, "  Total files uploaded: %d\n", s.TotalFilesUploaded)
	fmt.Fprintf(w, "  Total errors: %d\n", s.TotalErrors)
	fmt.Fprintf(w, "  Avg processing time: %.2fs\n", s.AvgProcessingTime)

	fmt.Fprintln(w, "\nSystem Checks:")
	for _, name := range []string{"memory", "disk", "logs_directory"} {
		c, ok := h.Checks[name]
		if !ok {
			continue
		}
		paint := infoColor
		switch c.Status {
		case metrics.CheckWarning:
			paint = warnColor
		case metrics.CheckError:
			paint = errorColor
		}
		paint.Fprintf(w, "  %s: %s\n", name, c.Status)
	}
}

func colorize(line string) string {
	switch {
	case errorPattern.MatchString(line):
		return errorColor.Sprint(line)
	case warnPattern.MatchString(line):
		return warnColor.Sprint(line)
	case strings.Contains(line, "level=INFO"):
		return infoColor.Sprint(line)
	}
	return line
}

// Tail prints the last lines of path. With follow it keeps polling for
// appended lines until ctx is done.
func Tail(ctx context.Context, w io.Writer, path string, follow bool, interval time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("no log file found: %w", err)
	}
	defer f.Close()

	var last []string
	rd := bufio.NewReader(f)
	var offset int64
	for {
		line, err := rd.ReadString('\n')
		if len(line) > 0 && strings.HasSuffix(line, "\n") {
			offset += int64(len(line))
			last = append(last, strings.TrimRight(line, "\r\n"))
			if len(last) > tailLines {
				last = last[1:]
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	for _, line := range last {
		fmt.Fprintln(w, colorize(line))
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}
		rd.Reset(f)
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				// Partial line; picked up on the next tick.
				break
			}
			offset += int64(len(line))
			fmt.Fprintln(w, colorize(strings.TrimRight(line, "\r\n")))
		}
	}
}

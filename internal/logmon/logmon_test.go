package logmon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bankops/internal/metrics"
)

const sampleLog = `time=2024-03-10T09:00:00.000+01:00 level=INFO msg="Application started (total starts: 3)" component=metrics app_starts=3
time=2024-03-10T09:01:00.000+01:00 level=INFO msg="File uploaded: ops.csv (2048 bytes)" component=metrics filename=ops.csv size_bytes=2048
time=2024-03-10T09:01:01.000+01:00 level=INFO msg="Data processing completed in 0.50s" component=metrics duration_s=0.5
time=2024-03-10T09:02:00.000+01:00 level=WARN msg="Dropped operations with unparseable dates" component=loader dropped=2
time=2024-03-10T09:03:00.000+01:00 level=INFO msg="Data processing completed in 1.50s" component=metrics duration_s=1.5
time=2024-03-10T09:04:00.000+01:00 level=ERROR msg="Error recorded: parse_error - bad amount" component=metrics error_type=parse_error
`

func writeLog(t *testing.T, dir string, day time.Time, content string) string {
	t.Helper()
	path := filepath.Join(dir, "app_"+day.Format("2006-01-02")+".log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	today := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	writeLog(t, dir, today, sampleLog)
	writeLog(t, dir, today.AddDate(0, 0, -1), "time=2024-03-09T10:00:00.000+01:00 level=INFO msg=\"Application started (total starts: 2)\"\n")
	// Outside a 2 day window.
	writeLog(t, dir, today.AddDate(0, 0, -5), "time=x level=ERROR msg=old\n")

	a := NewAnalyzer(dir)
	a.now = func() time.Time { return today }

	r, err := a.Analyze(2)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.Period != "Last 2 days" || r.FilesAnalyzed != 2 || r.TotalLines != 7 {
		t.Fatalf("unexpected report header %+v", r)
	}
	s := r.Summary
	if s.ErrorCount != 1 || s.WarningCount != 1 || s.UploadCount != 1 || s.TotalAppStarts != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AvgProcessingTime != 1.0 || s.MaxProcessingTime != 1.5 {
		t.Fatalf("processing times %+v", s)
	}
	up := r.Uploads[0]
	if up.Filename != "ops.csv" || up.Size != 2048 || up.Timestamp != "2024-03-10T09:01:00.000+01:00" {
		t.Fatalf("upload %+v", up)
	}
	if r.Errors[0].Line != 6 || !strings.HasSuffix(r.Errors[0].File, "2024-03-10.log") {
		t.Fatalf("error ref %+v", r.Errors[0])
	}

	wide, err := a.Analyze(7)
	if err != nil || wide.FilesAnalyzed != 3 || wide.Summary.ErrorCount != 2 {
		t.Fatalf("7 day window: %+v, %v", wide.Summary, err)
	}
}

func TestAnalyze_NoFiles(t *testing.T) {
	r, err := NewAnalyzer(t.TempDir()).Analyze(7)
	if err != nil {
		t.Fatal(err)
	}
	if r.FilesAnalyzed != 0 || r.Summary.AvgProcessingTime != 0 || r.Errors == nil {
		t.Fatalf("unexpected empty report %+v", r)
	}
	if _, err := NewAnalyzer(t.TempDir()).Analyze(0); err == nil {
		t.Fatal("expected error for zero days")
	}
}

func TestWriteTextAndJSON(t *testing.T) {
	dir := t.TempDir()
	today := time.Now()
	writeLog(t, dir, today, sampleLog)
	r, _ := NewAnalyzer(dir).Analyze(1)

	var text bytes.Buffer
	WriteText(&text, r)
	for _, want := range []string{"Files analyzed: 1", "File uploads: 1", "Avg processing time: 1.00s", "Recent Errors:", "bad amount"} {
		if !strings.Contains(text.String(), want) {
			t.Fatalf("text report missing %q:\n%s", want, text.String())
		}
	}

	var js bytes.Buffer
	if err := WriteJSON(&js, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"upload_count": 1`) {
		t.Fatalf("json report: %s", js.String())
	}
}

func TestWriteHealth(t *testing.T) {
	h := metrics.CheckSystemHealth(t.TempDir())
	var buf bytes.Buffer
	WriteHealth(&buf, h, metrics.Summary{TotalAppStarts: 4})
	if !strings.Contains(buf.String(), "Total app starts: 4") || !strings.Contains(buf.String(), "logs_directory: ok") {
		t.Fatalf("health output:\n%s", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTail(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, "level=INFO msg=line-"+string(rune('A'+i%26))+"-"+time.Duration(i).String())
	}
	path := writeLog(t, dir, time.Now(), strings.Join(lines, "\n")+"\n")

	var out syncBuffer
	if err := Tail(context.Background(), &out, path, false, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(got) != tailLines {
		t.Fatalf("printed %d lines", len(got))
	}
	if strings.Contains(out.String(), "-9ns\n") || !strings.Contains(out.String(), "-59ns") {
		t.Fatal("tail did not keep the most recent lines")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var follow syncBuffer
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, &follow, path, true, 5*time.Millisecond) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("level=ERROR msg=appended\n")
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(follow.String(), "msg=appended") {
		if time.Now().After(deadline) {
			t.Fatal("appended line never printed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Tail: %v", err)
	}
}

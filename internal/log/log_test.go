package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestSetup_WritesStdoutAndDailyFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	var stdout bytes.Buffer
	logger, closer, err := Setup(Options{Level: slog.LevelInfo, Component: ComponentApp, Dir: dir, Stdout: &stdout})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Debug("debug only in file")
	logger.Info("File uploaded: ops.csv (10 bytes)")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(stdout.String(), "debug only in file") {
		t.Fatal("debug record reached stdout at info level")
	}
	if !strings.Contains(stdout.String(), "component=app") {
		t.Fatalf("missing component attr: %s", stdout.String())
	}

	raw, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"debug only in file", "File uploaded: ops.csv (10 bytes)", "level=INFO"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("log file missing %q:\n%s", want, raw)
		}
	}
}

func TestDailyFile_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	f, err := NewDailyFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)
	f.now = func() time.Time { return day }
	if _, err := f.Write([]byte("first\n")); err != nil {
		t.Fatal(err)
	}
	day = day.Add(2 * time.Minute)
	if _, err := f.Write([]byte("second\n")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	for name, want := range map[string]string{
		"app_2024-03-01.log": "first\n",
		"app_2024-03-02.log": "second\n",
	} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(got) != want {
			t.Fatalf("%s = %q, %v", name, got, err)
		}
	}
}

func TestMiddleware_LogsStatusAndAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var fromCtx *slog.Logger
	h := Middleware(logger,
		func(*http.Request) string { return "req-1" },
		func(*http.Request) string { return "10.0.0.1" },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/analysis?x=1", nil))

	if fromCtx == nil || fromCtx == slog.Default() {
		t.Fatal("request logger not stored in context")
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "status_code=404", "request_id=req-1", "path=/api/analysis"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"bankops/internal/core"
)

type fakeSheets struct {
	mu       sync.Mutex
	existing []string
	calls    []string
	updated  [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/sid"):
		var sheets []map[string]any
		for _, title := range f.existing {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "sheets": sheets})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"spreadsheetId":"sid"}`))
	case strings.HasSuffix(r.URL.Path, ":clear"):
		w.Write([]byte(`{"spreadsheetId":"sid"}`))
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.updated = vr.Values
		w.Write([]byte(`{"spreadsheetId":"sid"}`))
	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sid", "Report",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "Report")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sid", "Report")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteReport_CreatesTabAndWritesRows(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Other"}}
	c := newTestClient(t, fake)

	ref, err := c.WriteReport(context.Background(), core.Report{UploadHash: "abcdef0123456789"})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.HasPrefix(ref, "'Report abcdef01'!A1:") {
		t.Fatalf("unexpected ref %q", ref)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	joined := strings.Join(fake.calls, "\n")
	for _, want := range []string{":batchUpdate", ":clear", "PUT "} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing call %q in:\n%s", want, joined)
		}
	}
	if len(fake.updated) == 0 || fake.updated[1][1] != "abcdef0123456789" {
		t.Fatalf("unexpected values %v", fake.updated)
	}
}

func TestWriteReport_ReusesExistingTab(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Report abcdef01"}}
	c := newTestClient(t, fake)

	if _, err := c.WriteReport(context.Background(), core.Report{UploadHash: "abcdef0123456789"}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if strings.Contains(strings.Join(fake.calls, "\n"), ":batchUpdate") {
		t.Fatal("existing tab should not be re-created")
	}
}

func TestWriteReport_NilService(t *testing.T) {
	if _, err := (&Client{}).WriteReport(context.Background(), core.Report{}); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's report"); got != "'Bob''s report'" {
		t.Fatalf("got %q", got)
	}
}

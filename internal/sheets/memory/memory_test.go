package memory

import (
	"context"
	"strings"
	"testing"

	"bankops/internal/core"
)

func TestStore_WriteReport(t *testing.T) {
	s := New("")
	r := core.Report{UploadHash: "abcdef0123456789"}

	ref, err := s.WriteReport(context.Background(), r)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.HasPrefix(ref, "mem:Report abcdef01!A1:") {
		t.Fatalf("unexpected ref %q", ref)
	}
	rows, ok := s.Tab("Report abcdef01")
	if !ok || len(rows) == 0 || rows[1][1] != "abcdef0123456789" {
		t.Fatalf("tab rows %v", rows)
	}

	// Re-export replaces the tab.
	if _, err := s.WriteReport(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if len(s.Refs()) != 2 {
		t.Fatalf("refs %v", s.Refs())
	}
}

func TestStore_WriteReportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("R").WriteReport(ctx, core.Report{}); err == nil {
		t.Fatal("expected context error")
	}
}

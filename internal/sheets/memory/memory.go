// Package memory keeps exported reports in process, for local runs without
// Google credentials and for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bankops/internal/core"
	ports "bankops/internal/sheets"
)

var _ ports.ReportWriter = (*Store)(nil)

type Store struct {
	base string

	mu   sync.Mutex
	tabs map[string][][]any
	refs []string
}

func New(base string) *Store {
	if base == "" {
		base = "Report"
	}
	return &Store{base: base, tabs: make(map[string][][]any)}
}

// WriteReport replaces the report's tab with a fresh layout.
func (s *Store) WriteReport(ctx context.Context, r core.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title := ports.TabTitle(s.base, r)
	rows := ports.ReportRows(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[title] = rows
	ref := fmt.Sprintf("mem:%s!A1:%s%d", title, ports.ColumnLetter(ports.Width(rows)), len(rows))
	s.refs = append(s.refs, ref)
	return ref, nil
}

// Tab returns a copy of the rows written to title.
func (s *Store) Tab(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[title]
	if !ok {
		return nil, false
	}
	return append([][]any(nil), rows...), true
}

// Refs lists the references returned so far, oldest first.
func (s *Store) Refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.refs...)
}

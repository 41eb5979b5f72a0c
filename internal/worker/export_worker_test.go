package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"bankops/internal/amqp"
	"bankops/internal/analysis"
	"bankops/internal/core"
	"bankops/internal/sheets/memory"
	"bankops/internal/storage"
)

type fakeStore struct {
	mu   sync.Mutex
	jobs map[int64]*storage.ExportJob
}

func newFakeStore(jobs ...storage.ExportJob) *fakeStore {
	s := &fakeStore{jobs: map[int64]*storage.ExportJob{}}
	for i := range jobs {
		j := jobs[i]
		s.jobs[j.ID] = &j
	}
	return s
}

func (s *fakeStore) GetExport(_ context.Context, id int64) (storage.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return storage.ExportJob{}, fmt.Errorf("%w: %d", storage.ErrExportNotFound, id)
	}
	return *j, nil
}

func (s *fakeStore) PendingExports(_ context.Context, limit int) ([]storage.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ExportJob
	for id := int64(1); id <= int64(len(s.jobs)) && len(out) < limit; id++ {
		if j, ok := s.jobs[id]; ok && j.Status == storage.ExportPending {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkExportDone(_ context.Context, id int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = storage.ExportDone
	s.jobs[id].SheetRef = ref
	return nil
}

func (s *fakeStore) MarkExportError(_ context.Context, id int64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Attempts++
	j.LastError = cause.Error()
	if j.Attempts >= storage.MaxExportAttempts {
		j.Status = storage.ExportFailed
	}
	return nil
}

type fakeReports struct {
	fail map[string]bool
	sel  analysis.Selection
}

func (f *fakeReports) BuildReport(_ context.Context, hash string, threshold float64, sel analysis.Selection) (core.Report, error) {
	f.sel = sel
	if f.fail[hash] {
		return core.Report{}, errors.New("upload not found")
	}
	return core.Report{UploadHash: hash, QuantileThreshold: threshold}, nil
}

func pending(id int64, hash string) storage.ExportJob {
	return storage.ExportJob{ID: id, UploadHash: hash, Status: storage.ExportPending}
}

func TestHandleExportMessage(t *testing.T) {
	store := newFakeStore(pending(1, "aaaaaaaaaa"))
	store.jobs[1].From = core.NewDate(2024, 1, 1)
	reports := &fakeReports{}
	writer := memory.New("Report")
	w := NewExportWorker(store, reports, writer, 10, nil)

	msg := amqp.NewReportExportMessage(1, "aaaaaaaaaa", 0.1, core.Date{}, core.Date{})
	if err := w.HandleExportMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}
	if store.jobs[1].Status != storage.ExportDone || store.jobs[1].SheetRef == "" {
		t.Fatalf("job %+v", store.jobs[1])
	}
	if reports.sel.From.String() != "2024-01-01" {
		t.Fatalf("selection taken from the job, got %+v", reports.sel)
	}
	if _, ok := writer.Tab("Report aaaaaaaa"); !ok {
		t.Fatal("report tab not written")
	}

	// A redelivered message is a no-op.
	if err := w.HandleExportMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(writer.Refs()) != 1 {
		t.Fatalf("report written %d times", len(writer.Refs()))
	}
}

func TestHandleExportMessage_UnknownJob(t *testing.T) {
	sink := memory.New("R")
	w := NewExportWorker(newFakeStore(), &fakeReports{}, sink, 10, nil)
	msg := amqp.NewReportExportMessage(9, "x", 0, core.Date{}, core.Date{})
	// nil acks the delivery; an error would requeue it forever.
	if err := w.HandleExportMessage(context.Background(), msg); err != nil {
		t.Fatalf("unknown export should be acknowledged, got %v", err)
	}
	if refs := sink.Refs(); len(refs) != 0 {
		t.Fatalf("nothing should be written, got %v", refs)
	}
}

func TestHandleExportMessage_FailureRecorded(t *testing.T) {
	store := newFakeStore(pending(1, "gone"))
	w := NewExportWorker(store, &fakeReports{fail: map[string]bool{"gone": true}}, memory.New("R"), 10, nil)

	msg := amqp.NewReportExportMessage(1, "gone", 0, core.Date{}, core.Date{})
	if err := w.HandleExportMessage(context.Background(), msg); err != nil {
		t.Fatalf("failure should be recorded, not returned: %v", err)
	}
	j := store.jobs[1]
	if j.Attempts != 1 || j.Status != storage.ExportPending || j.LastError == "" {
		t.Fatalf("job %+v", j)
	}
}

func TestProcessPending(t *testing.T) {
	store := newFakeStore(pending(1, "one"), pending(2, "bad"), pending(3, "three"))
	w := NewExportWorker(store, &fakeReports{fail: map[string]bool{"bad": true}}, memory.New("R"), 10, nil)

	n, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("exported %d, want 2", n)
	}

	for i := 1; i < storage.MaxExportAttempts; i++ {
		if _, err := w.ProcessPending(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if store.jobs[2].Status != storage.ExportFailed {
		t.Fatalf("job should fail after %d attempts: %+v", storage.MaxExportAttempts, store.jobs[2])
	}
	if n, _ := w.ProcessPending(context.Background()); n != 0 {
		t.Fatalf("nothing left to export, got %d", n)
	}
}

func TestProcessPending_BatchSize(t *testing.T) {
	store := newFakeStore(pending(1, "a"), pending(2, "b"), pending(3, "c"))
	w := NewExportWorker(store, &fakeReports{}, memory.New("R"), 2, nil)

	if n, _ := w.ProcessPending(context.Background()); n != 2 {
		t.Fatalf("exported %d, want 2", n)
	}
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.jobs[3].Status != storage.ExportDone {
		t.Fatalf("job 3 %+v", store.jobs[3])
	}
}

func TestScheduleSweep(t *testing.T) {
	w := NewExportWorker(newFakeStore(), &fakeReports{}, memory.New("R"), 1, nil)
	if _, err := w.ScheduleSweep(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	c, err := w.ScheduleSweep(context.Background(), "*/5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("entries %d", len(c.Entries()))
	}
}

package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mt4110/vsplit/internal/batch"
)

func openTest(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func sampleReport(t *testing.T, state batch.State, started time.Time) *batch.Report {
	t.Helper()
	dir := t.TempDir()
	seg := filepath.Join(dir, "a_000.mp4")
	os.WriteFile(seg, []byte("12345"), 0644)

	return &batch.Report{
		RunID:     uuid.New(),
		State:     state,
		InputDir:  "/in",
		OutputDir: dir,
		Total:     1,
		Files: []batch.FileReport{{
			Path:      "/in/a.mp4",
			Duration:  3,
			Planned:   1,
			Artifacts: []batch.Artifact{{Path: seg}},
		}},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	_, dbPath := openTest(t)

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("migration count = %d, want 1", count)
	}

	var journalMode string
	s2.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	rep := sampleReport(t, batch.StateCompleted, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	if err := s.Begin(ctx, rep.RunID.String(), rep.InputDir, false, rep.StartedAt); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatal(err)
	}
	// Saving twice replaces segments instead of duplicating them.
	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, rep.RunID.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "completed" || got.Segments != 1 || len(got.Outputs) != 1 {
		t.Errorf("run = %+v", got)
	}
	if got.Outputs[0].SizeBytes != 5 || got.Outputs[0].Source != "/in/a.mp4" {
		t.Errorf("segment = %+v", got.Outputs[0])
	}
	if got.FinishedAt == nil || !got.StartedAt.Equal(rep.StartedAt) {
		t.Errorf("times = %v / %v", got.StartedAt, got.FinishedAt)
	}

	if _, err := s.GetRun(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run error = %v", err)
	}
}

func TestListRunsAndTotals(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	states := []batch.State{batch.StateCompleted, batch.StateStopped, batch.StateFailed, batch.StateCompleted}
	var last string
	for i, st := range states {
		rep := sampleReport(t, st, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveReport(ctx, rep); err != nil {
			t.Fatal(err)
		}
		last = rep.RunID.String()
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != last {
		t.Errorf("ListRuns() = %+v", runs)
	}

	tot, err := s.Totals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Totals{Runs: 4, Completed: 2, Stopped: 1, Failed: 1, Segments: 4, Bytes: 20}
	if tot != want {
		t.Errorf("Totals() = %+v, want %+v", tot, want)
	}
}

func TestMarkInterruptedRuns(t *testing.T) {
	s, dbPath := openTest(t)
	ctx := context.Background()
	id := uuid.NewString()
	if err := s.Begin(ctx, id, "/in", false, time.Now()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "failed" || got.Message != "interrupted by restart" {
		t.Errorf("run = %+v", got)
	}
}

// Package history keeps a SQLite record of batch runs and the segments
// they produced.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mt4110/vsplit/internal/batch"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("run not found")

const timeLayout = time.RFC3339

// Run is one stored batch run.
type Run struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	InputDir   string     `json:"inputDir"`
	OutputDir  string     `json:"outputDir"`
	TotalFiles int        `json:"totalFiles"`
	Failed     int        `json:"failedFiles"`
	Segments   int        `json:"segments"`
	Message    string     `json:"message"`
	DryRun     bool       `json:"dryRun"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Segment is one produced file of a run.
type Segment struct {
	Source    string `json:"source"`
	Path      string `json:"path"`
	Sidecar   string `json:"sidecar,omitempty"`
	SizeBytes int64  `json:"sizeBytes"`
}

// RunDetail is a run with its segments.
type RunDetail struct {
	Run
	Outputs []Segment `json:"outputs"`
}

// Totals aggregates every stored run.
type Totals struct {
	Runs      int   `json:"runs"`
	Completed int   `json:"completed"`
	Stopped   int   `json:"stopped"`
	Failed    int   `json:"failed"`
	Segments  int   `json:"segments"`
	Bytes     int64 `json:"bytes"`
}

type Store struct {
	conn *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := s.markInterruptedRuns(); err != nil {
		log.Printf("⚠️ 中断されたランの更新に失敗: %v", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// markInterruptedRuns fails runs left "running" by a process that died.
func (s *Store) markInterruptedRuns() error {
	_, err := s.conn.ExecContext(context.Background(),
		`UPDATE runs SET state = 'failed', message = 'interrupted by restart', finished_at = ? WHERE state = 'running'`,
		time.Now().UTC().Format(timeLayout))
	return err
}

// Begin records a run as running before its first file.
func (s *Store) Begin(ctx context.Context, id, inputDir string, dryRun bool, startedAt time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO runs (id, state, input_dir, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(batch.StateRunning), inputDir, dryRun, startedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// SaveReport stores the final state of a run and its segments, replacing
// any earlier row for the same id.
func (s *Store) SaveReport(ctx context.Context, rep *batch.Report) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !rep.FinishedAt.IsZero() {
		finished = rep.FinishedAt.UTC().Format(timeLayout)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, state, input_dir, output_dir, total_files, failed_files, message, dry_run, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			output_dir = excluded.output_dir,
			total_files = excluded.total_files,
			failed_files = excluded.failed_files,
			message = excluded.message,
			finished_at = excluded.finished_at`,
		rep.RunID.String(), string(rep.State), rep.InputDir, rep.OutputDir, rep.Total, rep.Failed(),
		rep.Status(), rep.DryRun, rep.StartedAt.UTC().Format(timeLayout), finished)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE run_id = ?`, rep.RunID.String()); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (run_id, source, path, sidecar, size_bytes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range rep.Files {
		for _, a := range f.Artifacts {
			var size int64
			if info, err := os.Stat(a.Path); err == nil {
				size = info.Size()
			}
			if _, err := stmt.ExecContext(ctx, rep.RunID.String(), f.Path, a.Path, a.Sidecar, size); err != nil {
				return fmt.Errorf("failed to insert segment: %w", err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `r.id, r.state, r.input_dir, r.output_dir, r.total_files, r.failed_files, r.message, r.dry_run,
	r.started_at, r.finished_at, (SELECT COUNT(*) FROM segments s WHERE s.run_id = r.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.State, &r.InputDir, &r.OutputDir, &r.TotalFiles, &r.Failed,
		&r.Message, &r.DryRun, &started, &finished, &r.Segments); err != nil {
		return Run{}, err
	}
	r.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		if t, err := time.Parse(timeLayout, finished.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its segments.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	r, err := scanRun(s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT source, path, sidecar, size_bytes FROM segments WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	detail := &RunDetail{Run: r, Outputs: []Segment{}}
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Source, &seg.Path, &seg.Sidecar, &seg.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		detail.Outputs = append(detail.Outputs, seg)
	}
	return detail, rows.Err()
}

// Totals aggregates all runs.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'stopped' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(&t.Runs, &t.Completed, &t.Stopped, &t.Failed)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to count runs: %w", err)
	}

	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM segments`).Scan(&t.Segments, &t.Bytes)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to count segments: %w", err)
	}
	return t, nil
}

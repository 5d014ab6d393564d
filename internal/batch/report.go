package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State of a batch run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// ErrProcess marks an ffmpeg run that exited non-zero.
var ErrProcess = errors.New("external process failed")

// ProcessError identifies the file and segment whose ffmpeg run failed.
// Segment is -1 for a native run that covers the whole file.
type ProcessError struct {
	File     string
	Segment  int
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	where := e.File
	if e.Segment >= 0 {
		where = fmt.Sprintf("%s segment %03d", e.File, e.Segment)
	}
	return fmt.Sprintf("ffmpeg failed on %s (exit %d): %s", where, e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return ErrProcess }

// Artifact is one produced segment and its optional caption sidecar.
type Artifact struct {
	Path    string `json:"path"`
	Sidecar string `json:"sidecar,omitempty"`
}

// FileReport is the outcome for one input file.
type FileReport struct {
	Path      string     `json:"path"`
	Duration  float64    `json:"duration"`
	Planned   int        `json:"planned"`
	Artifacts []Artifact `json:"artifacts"`
	// Skipped is set for files shorter than one chunk.
	Skipped bool `json:"skipped"`
	// Partial is set when a stop arrived between segments of this file.
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
	err     error
}

func (f *FileReport) Err() error { return f.err }

func (f *FileReport) fail(err error) {
	f.err = err
	f.Error = err.Error()
}

// Report summarises a batch run.
type Report struct {
	RunID      uuid.UUID    `json:"runId"`
	State      State        `json:"state"`
	InputDir   string       `json:"inputDir"`
	OutputDir  string       `json:"outputDir"`
	Total      int          `json:"total"`
	Files      []FileReport `json:"files"`
	Message    string       `json:"message"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	DryRun     bool         `json:"dryRun"`
	err        error
}

// Err returns the error that failed the batch, or nil.
func (r *Report) Err() error { return r.err }

// Segments counts produced artifacts across files.
func (r *Report) Segments() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Artifacts)
	}
	return n
}

// Failed counts files that did not complete.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.err != nil || f.Error != "" {
			n++
		}
	}
	return n
}

// Status is the single user-facing line describing the run.
func (r *Report) Status() string {
	switch r.State {
	case StateCompleted:
		if r.Message != "" {
			return r.Message
		}
		s := fmt.Sprintf("✅ 完了: %d ファイル, %d セグメント -> %s", len(r.Files), r.Segments(), r.OutputDir)
		if n := r.Failed(); n > 0 {
			s += fmt.Sprintf(" (%d 件失敗)", n)
		}
		return s
	case StateStopped:
		return fmt.Sprintf("⏹ ユーザーにより停止: %d/%d ファイル処理済み -> %s", r.done(), r.Total, r.OutputDir)
	case StateFailed:
		return "❌ エラー: " + r.Message
	case StateRunning:
		return fmt.Sprintf("▶ 処理中: %d/%d", r.done(), r.Total)
	default:
		return "待機中"
	}
}

func (r *Report) done() int {
	n := 0
	for _, f := range r.Files {
		if f.err == nil && f.Error == "" && !f.Partial {
			n++
		}
	}
	return n
}

func (r *Report) finish(state State, msg string, err error, now time.Time) *Report {
	r.State = state
	r.Message = msg
	r.err = err
	r.FinishedAt = now
	return r
}

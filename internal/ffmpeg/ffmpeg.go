// Package ffmpeg locates the ffmpeg/ffprobe binaries and runs them as
// subprocesses.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// ErrToolNotFound is returned when ffmpeg or ffprobe cannot be found or
// cannot be started.
var ErrToolNotFound = errors.New("tool not found")

// Tools holds resolved binary paths for one batch invocation.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// Locate resolves ffmpeg and ffprobe. An empty dir means "search PATH";
// otherwise both binaries must live in dir and be executable.
func Locate(dir string) (Tools, error) {
	ffmpegPath, err := locateOne(dir, "ffmpeg")
	if err != nil {
		return Tools{}, err
	}
	ffprobePath, err := locateOne(dir, "ffprobe")
	if err != nil {
		return Tools{}, err
	}
	return Tools{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

func locateOne(dir, name string) (string, error) {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if strings.TrimSpace(dir) == "" {
		p, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s is not on PATH", ErrToolNotFound, name)
		}
		return p, nil
	}

	p := filepath.Join(dir, name)
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, p, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrToolNotFound, p)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return "", fmt.Errorf("%w: %s is not executable", ErrToolNotFound, p)
	}
	return p, nil
}

// Result is the outcome of one subprocess run.
type Result struct {
	Stdout     []byte
	StderrTail string
	ExitCode   int
	Duration   time.Duration
}

// IsSuccess reports whether the process exited with status 0.
func (r Result) IsSuccess() bool {
	return r.ExitCode == 0
}

// Runner executes an external binary. A non-zero exit is reported through
// Result.ExitCode; the error is reserved for processes that could not be
// started at all.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) (Result, error)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, bin string, args []string) (Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	err := cmd.Run()
	res := Result{
		Stdout:     stdout.Bytes(),
		StderrTail: stderrBuf.String(),
		Duration:   time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("%w: %s: %v", ErrToolNotFound, bin, err)
	}
	return res, fmt.Errorf("failed to start %s: %w", bin, err)
}

// HasEncoder reports whether the ffmpeg build lists the named encoder.
func HasEncoder(ctx context.Context, r Runner, ffmpegBin, name string) bool {
	res, err := r.Run(ctx, ffmpegBin, []string{"-hide_banner", "-encoders"})
	if err != nil || !res.IsSuccess() {
		return false
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// Truncate keeps the last maxLen bytes of s.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

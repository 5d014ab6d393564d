// Package batch drives one split run over a directory of videos:
// probe, plan, build and execute, one ffmpeg process at a time.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mt4110/vsplit/internal/command"
	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/ffmpeg"
	"github.com/mt4110/vsplit/internal/plan"
	"github.com/mt4110/vsplit/internal/probe"
	"github.com/mt4110/vsplit/internal/split"
)

const outputDirLayout = "20060102_150405"

var outputDirRe = regexp.MustCompile(`^output_\d{8}_\d{6}$`)

var errStopped = errors.New("stopped by user")

// OutputDirName is the per-run directory name for a run started at t.
func OutputDirName(t time.Time) string {
	return "output_" + t.Format(outputDirLayout)
}

// Runner executes batches. The zero value is not usable; call New.
type Runner struct {
	Exec   ffmpeg.Runner
	Locate func(dir string) (ffmpeg.Tools, error)
	Now    func() time.Time
	// Events is optional. Sends never block; slow readers miss events.
	Events chan<- interface{}
}

func New(exec ffmpeg.Runner) *Runner {
	if exec == nil {
		exec = ffmpeg.ExecRunner{}
	}
	return &Runner{
		Exec:   exec,
		Locate: ffmpeg.Locate,
		Now:    time.Now,
	}
}

// Run processes every file of opts and always returns a report. Cancelling
// ctx stops the batch before the next file (or the next segment when
// StopBetweenSegments is set); an ffmpeg process already running is left to
// finish.
func (r *Runner) Run(ctx context.Context, opts Options) *Report {
	id := opts.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}
	rep := &Report{
		RunID:     id,
		State:     StateRunning,
		InputDir:  opts.InputDir,
		StartedAt: r.Now(),
		DryRun:    opts.DryRun,
	}
	r.run(ctx, opts, rep)

	log.Println(rep.Status())
	r.emitFinished(rep)
	return rep
}

func (r *Runner) run(ctx context.Context, opts Options, rep *Report) {
	if err := normalize(&opts); err != nil {
		rep.finish(StateFailed, err.Error(), err, r.Now())
		return
	}

	tools, err := r.Locate(opts.FFmpegDir)
	if err != nil {
		rep.finish(StateFailed, err.Error(), err, r.Now())
		return
	}

	// ffmpeg and ffprobe are never killed by a stop request.
	detached := context.WithoutCancel(ctx)

	var fixed *encoding.Profile
	if !opts.UseSource {
		p, err := r.resolveFixed(detached, tools, opts)
		if err != nil {
			rep.finish(StateFailed, err.Error(), err, r.Now())
			return
		}
		fixed = &p
	}

	var files []string
	if len(opts.Files) > 0 {
		files = filterExplicit(opts.Files, opts.Keywords, opts.IgnoreKeywords)
	} else {
		files, err = Discover(opts.InputDir, opts.Recursive, opts.Keywords, opts.IgnoreKeywords)
		if err != nil {
			rep.finish(StateFailed, err.Error(), err, r.Now())
			return
		}
	}
	rep.Total = len(files)
	if len(files) == 0 {
		rep.finish(StateCompleted, fmt.Sprintf("動画ファイルが見つかりません: %s", opts.InputDir), nil, r.Now())
		return
	}

	outDir := filepath.Join(opts.OutputRoot, OutputDirName(rep.StartedAt))
	rep.OutputDir = outDir
	if !opts.DryRun {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			err = fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
			rep.finish(StateFailed, err.Error(), err, r.Now())
			return
		}
	}

	log.Printf("分割対象: %d件", len(files))
	log.Printf("出力先: %s", outDir)

	prober := probe.New(tools.FFprobe, r.Exec)

	for i, path := range files {
		if ctx.Err() != nil {
			log.Printf("⏹ 停止要求を受け付けました (%d/%d 処理済み)", i, len(files))
			rep.finish(StateStopped, "", nil, r.Now())
			return
		}

		r.emit(FileStartEvent{RunID: rep.RunID, Path: path, Index: i, Total: len(files)})
		log.Printf("▶ [%d/%d] %s", i+1, len(files), filepath.Base(path))

		fr, err := r.processFile(ctx, detached, prober, tools, fixed, path, outDir, opts, rep.RunID)
		if errors.Is(err, errStopped) {
			rep.Files = append(rep.Files, fr)
			log.Printf("⏹ セグメント間で停止しました: %s", filepath.Base(path))
			rep.finish(StateStopped, "", nil, r.Now())
			return
		}
		if err != nil {
			fr.fail(err)
			rep.Files = append(rep.Files, fr)
			r.emit(FileFailedEvent{RunID: rep.RunID, Path: path, Err: err})
			log.Printf("❌ 分割失敗: %s -> %v", path, err)

			if errors.Is(err, ffmpeg.ErrToolNotFound) || opts.OnError == OnErrorAbort {
				rep.finish(StateFailed, err.Error(), err, r.Now())
				return
			}
			continue
		}

		rep.Files = append(rep.Files, fr)
		r.emit(FileDoneEvent{RunID: rep.RunID, Path: path, Segments: len(fr.Artifacts), Skipped: fr.Skipped})
	}

	rep.finish(StateCompleted, "", nil, r.Now())
}

func normalize(opts *Options) error {
	if math.IsNaN(opts.ChunkDuration) || math.IsInf(opts.ChunkDuration, 0) || opts.ChunkDuration <= 0 {
		return fmt.Errorf("%w: %w", encoding.ErrInvalidInput, plan.ErrInvalidChunk)
	}
	if opts.Policy == "" {
		opts.Policy = plan.PolicyManual
	}
	if _, err := plan.ParsePolicy(string(opts.Policy)); err != nil {
		return fmt.Errorf("%w: %v", encoding.ErrInvalidInput, err)
	}
	if opts.OnError == "" {
		opts.OnError = OnErrorAbort
	}
	if _, err := ParseFailurePolicy(string(opts.OnError)); err != nil {
		return err
	}
	if opts.Container == "" {
		opts.Container = "mp4"
	}
	if !slices.Contains(config.Containers, opts.Container) {
		return fmt.Errorf("%w: container %q must be one of %s",
			encoding.ErrInvalidInput, opts.Container, strings.Join(config.Containers, ", "))
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = opts.InputDir
	}
	return nil
}

func (r *Runner) resolveFixed(ctx context.Context, tools ffmpeg.Tools, opts Options) (encoding.Profile, error) {
	s := opts.Settings
	available := false
	if s.HWAccel {
		if enc, ok := encoding.HardwareEncoder(strings.ToLower(s.Codec), s.HWAccelKind); ok {
			available = ffmpeg.HasEncoder(ctx, r.Exec, tools.FFmpeg, enc)
			if !available {
				log.Printf("⚠️ ハードウェアエンコーダ %s が使えないためソフトウェアで処理します", enc)
			}
		}
	}
	return encoding.Resolver{HWAvailable: available}.Fixed(s, opts.ChunkDuration, opts.Policy)
}

func (r *Runner) processFile(
	ctx, detached context.Context,
	prober *probe.Prober,
	tools ffmpeg.Tools,
	fixed *encoding.Profile,
	path, outDir string,
	opts Options,
	runID uuid.UUID,
) (FileReport, error) {
	fr := FileReport{Path: path}

	total, err := prober.Duration(detached, path)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	fr.Duration = total

	var profile encoding.Profile
	if fixed != nil {
		profile = *fixed
	} else {
		info, err := prober.VideoStream(detached, path)
		if err != nil {
			return fr, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if profile, err = (encoding.Resolver{}).FromSource(info, opts.Settings); err != nil {
			return fr, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}

	segs, err := plan.Plan(opts.Policy, path, total, opts.ChunkDuration)
	if err != nil {
		return fr, err
	}
	if len(segs) == 0 {
		fr.Skipped = true
		log.Printf("⏭ %gs 未満のためスキップ: %s (%.2fs)", opts.ChunkDuration, filepath.Base(path), total)
		return fr, nil
	}
	if !segs[0].Whole {
		fr.Planned = len(segs)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := command.Output{Dir: outDir, Base: base, Ext: opts.Container, ChunkDuration: opts.ChunkDuration}

	for _, seg := range segs {
		if opts.StopBetweenSegments && ctx.Err() != nil {
			fr.Partial = true
			return fr, errStopped
		}

		inv := command.Build(seg, profile, path, out)

		if opts.DryRun {
			log.Printf("[DryRun] Command: %s", inv.String(tools.FFmpeg))
			if !seg.Whole {
				fr.Artifacts = append(fr.Artifacts, Artifact{Path: inv.Output})
			}
			continue
		}

		res, err := r.Exec.Run(detached, tools.FFmpeg, inv.Args)
		if err != nil {
			return fr, err
		}
		if !res.IsSuccess() {
			idx := seg.Index
			if seg.Whole {
				idx = -1
			}
			return fr, &ProcessError{
				File:     path,
				Segment:  idx,
				ExitCode: res.ExitCode,
				Stderr:   ffmpeg.Truncate(strings.TrimSpace(res.StderrTail), 1000),
			}
		}

		if !seg.Whole {
			r.record(&fr, runID, inv.Output, seg.Index, len(segs), opts.Caption, res.Duration)
			continue
		}

		chunks, err := split.Collect(outDir, base, opts.Container)
		if err != nil {
			return fr, err
		}
		for _, c := range chunks {
			r.record(&fr, runID, c.Path, c.Index, 0, opts.Caption, res.Duration)
		}
	}

	return fr, nil
}

// record adds one produced segment to fr, writes its caption sidecar and
// logs a JSON result line.
func (r *Runner) record(fr *FileReport, runID uuid.UUID, out string, idx, planned int, caption string, elapsed time.Duration) {
	a := Artifact{Path: out}
	sidecar, err := writeCaption(out, caption)
	if err != nil {
		log.Printf("⚠️ キャプションの書き込みに失敗: %s -> %v", sidecar, err)
	} else {
		a.Sidecar = sidecar
	}
	fr.Artifacts = append(fr.Artifacts, a)

	r.emit(SegmentDoneEvent{RunID: runID, Path: fr.Path, Output: out, Index: idx, Planned: planned})

	var size int64
	if info, err := os.Stat(out); err == nil {
		size = info.Size()
	}

	logEntry := struct {
		Type       string  `json:"type"`
		RunID      string  `json:"run_id"`
		Input      string  `json:"input"`
		Output     string  `json:"output"`
		Index      int     `json:"index"`
		ElapsedSec float64 `json:"elapsed_sec"`
		SizeBytes  int64   `json:"size_bytes"`
		Timestamp  string  `json:"timestamp"`
	}{
		Type:       "segment_result",
		RunID:      runID.String(),
		Input:      fr.Path,
		Output:     out,
		Index:      idx,
		ElapsedSec: elapsed.Seconds(),
		SizeBytes:  size,
		Timestamp:  r.Now().Format(time.RFC3339),
	}
	if jsonBytes, err := json.Marshal(logEntry); err == nil {
		log.Println(string(jsonBytes))
	}
}

// writeCaption writes caption next to a segment as <base>_<NNN>.txt.
// A blank caption writes nothing.
func writeCaption(segment, caption string) (string, error) {
	if strings.TrimSpace(caption) == "" {
		return "", nil
	}
	path := strings.TrimSuffix(segment, filepath.Ext(segment)) + ".txt"
	if err := os.WriteFile(path, []byte(caption), 0644); err != nil {
		return path, err
	}
	return path, nil
}

// Package probe queries ffprobe for the container duration and the first
// video stream of a media file.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mt4110/vsplit/internal/ffmpeg"
)

var (
	// ErrProbeFailed means ffprobe ran but reported an error.
	ErrProbeFailed = errors.New("ffprobe reported an error")

	// ErrUnparseable means ffprobe succeeded but its output made no sense.
	ErrUnparseable = errors.New("unparseable ffprobe output")
)

// StreamInfo is the subset of video stream metadata needed to reuse the
// source settings.
type StreamInfo struct {
	Width     int
	Height    int
	FrameRate Rational
}

// Prober runs ffprobe through an ffmpeg.Runner.
type Prober struct {
	bin    string
	runner ffmpeg.Runner
}

func New(ffprobeBin string, runner ffmpeg.Runner) *Prober {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Prober{bin: ffprobeBin, runner: runner}
}

// Duration returns the container duration of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, err := p.run(ctx, path, args)
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(string(out))
	duration, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: could not parse duration %q", ErrUnparseable, text)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %v", ErrUnparseable, duration)
	}
	return duration, nil
}

type streamsOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// VideoStream returns the geometry and frame rate of the first video stream.
func (p *Prober) VideoStream(ctx context.Context, path string) (*StreamInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate",
		"-of", "json",
		path,
	}

	out, err := p.run(ctx, path, args)
	if err != nil {
		return nil, err
	}

	var parsed streamsOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if len(parsed.Streams) == 0 {
		return nil, fmt.Errorf("%w: no video stream in %s", ErrUnparseable, path)
	}

	s := parsed.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid video size %dx%d", ErrUnparseable, s.Width, s.Height)
	}

	// avg_frame_rate is 0/0 for some containers; fall back to r_frame_rate.
	rate, err := ParseRational(s.AvgFrameRate)
	if err != nil || rate.Num == 0 {
		rate, err = ParseRational(s.RFrameRate)
		if err != nil {
			return nil, fmt.Errorf("%w: frame rate: %v", ErrUnparseable, err)
		}
	}

	return &StreamInfo{Width: s.Width, Height: s.Height, FrameRate: rate}, nil
}

func (p *Prober) run(ctx context.Context, path string, args []string) ([]byte, error) {
	res, err := p.runner.Run(ctx, p.bin, args)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w for %s (exit %d): %s",
			ErrProbeFailed, path, res.ExitCode, strings.TrimSpace(res.StderrTail))
	}
	return res.Stdout, nil
}

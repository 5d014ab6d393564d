// Package command assembles ffmpeg arguments for a planned segment.
// Nothing here touches the filesystem or spawns processes.
package command

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/plan"
)

// Output describes where and how segments of one source are named.
type Output struct {
	Dir  string
	Base string
	Ext  string
	// ChunkDuration is passed to the segment muxer for native runs.
	ChunkDuration float64
}

// Invocation is one ffmpeg run. Output is the concrete file for manual
// segments and the %03d pattern for native runs.
type Invocation struct {
	Args   []string
	Output string
}

// String renders the invocation for logs and dry runs.
func (inv Invocation) String(bin string) string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, quote(bin))
	for _, a := range inv.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// Build returns the ffmpeg arguments for seg of input encoded with p.
func Build(seg plan.Segment, p encoding.Profile, input string, out Output) Invocation {
	var outPath string
	if seg.Whole {
		outPath = filepath.Join(out.Dir, plan.OutputPattern(out.Base, out.Ext))
	} else {
		outPath = filepath.Join(out.Dir, plan.OutputName(out.Base, seg.Index, out.Ext))
	}

	args := []string{"-hide_banner", "-nostdin", "-y"}

	if p.HWAccel && !p.Copy {
		args = append(args, "-hwaccel", p.HWAccelKind)
	}

	args = append(args, "-i", input)

	// -ss after -i seeks accurately in the decoded output.
	if !seg.Whole {
		args = append(args,
			"-ss", seconds(seg.Start),
			"-t", seconds(seg.Length),
		)
	}

	args = append(args, "-map", "0:v:0")
	if p.IncludeAudio {
		// Trailing "?" keeps files without an audio track from failing.
		args = append(args, "-map", "0:a?")
	}

	args = append(args, videoArgs(p)...)
	args = append(args, audioArgs(p)...)

	if seg.Whole {
		args = append(args,
			"-f", "segment",
			"-segment_time", seconds(out.ChunkDuration),
			"-reset_timestamps", "1",
		)
		if muxer := segmentFormat(out.Ext); muxer != "" {
			args = append(args, "-segment_format", muxer)
		}
	}

	args = append(args, "-avoid_negative_ts", "make_zero")

	if out.Ext == "mp4" || out.Ext == "mov" {
		if seg.Whole {
			args = append(args, "-segment_format_options", "movflags=+faststart")
		} else {
			args = append(args, "-movflags", "+faststart")
		}
	}

	args = append(args, outPath)
	return Invocation{Args: args, Output: outPath}
}

func videoArgs(p encoding.Profile) []string {
	if p.Copy {
		return []string{"-c:v", "copy"}
	}

	args := []string{"-c:v", p.Encoder}
	if p.FrameRate > 0 {
		args = append(args, "-r", strconv.FormatFloat(p.FrameRate, 'f', -1, 64))
	}
	if p.Width > 0 && p.Height > 0 {
		args = append(args, "-s", strconv.Itoa(p.Width)+"x"+strconv.Itoa(p.Height))
	}

	if p.UseCRF {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
		if p.Encoder == "libvpx-vp9" {
			// libvpx only runs in constant quality mode with a zero bitrate.
			args = append(args, "-b:v", "0")
		}
	} else if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate)
	}

	if p.KeyInterval > 0 {
		gop := strconv.Itoa(p.KeyInterval)
		args = append(args, "-g", gop, "-keyint_min", gop, "-sc_threshold", "0")
	}
	return args
}

func audioArgs(p encoding.Profile) []string {
	if !p.IncludeAudio {
		return []string{"-an"}
	}
	if p.Copy || p.AudioCopy {
		return []string{"-c:a", "copy"}
	}
	args := []string{"-c:a", p.AudioCodec}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	return args
}

func segmentFormat(ext string) string {
	switch ext {
	case "mp4":
		return "mp4"
	case "mov":
		return "mov"
	case "mkv":
		return "matroska"
	}
	return ""
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t'\"$\\*?()") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

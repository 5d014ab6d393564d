// Package plan computes where each input file is cut.
//
// Two policies exist and they intentionally behave differently:
//
//   - PolicyManual issues one ffmpeg run per segment and drops any remainder
//     shorter than one chunk, so every output has exactly the requested length.
//   - PolicyNative hands the whole file to ffmpeg's segment muxer, which keeps
//     a short final segment.
package plan

import (
	"errors"
	"fmt"
	"math"
)

type Policy string

const (
	PolicyManual Policy = "manual"
	PolicyNative Policy = "native"
)

// ErrInvalidChunk is returned for a non-positive chunk duration.
var ErrInvalidChunk = errors.New("chunk duration must be positive")

// ParsePolicy maps a config value to a Policy. Empty means manual.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyManual:
		return PolicyManual, nil
	case PolicyNative:
		return PolicyNative, nil
	default:
		return "", fmt.Errorf("unknown segmenter %q (want manual or native)", s)
	}
}

// Segment is one planned cut of a source file. Whole marks the single
// descriptor of a native run, where ffmpeg decides the boundaries.
type Segment struct {
	Source string
	Index  int
	Start  float64
	Length float64
	Whole  bool
}

func (s Segment) End() float64 {
	return s.Start + s.Length
}

// Plan dispatches to the policy's planner.
func Plan(policy Policy, source string, total, chunk float64) ([]Segment, error) {
	switch policy {
	case PolicyNative:
		return Native(source, total, chunk)
	case PolicyManual, "":
		return Manual(source, total, chunk)
	default:
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
}

// Manual returns floor(total/chunk) back-to-back segments of exactly chunk
// seconds. A file shorter than one chunk yields no segments.
func Manual(source string, total, chunk float64) ([]Segment, error) {
	if !(chunk > 0) || math.IsInf(chunk, 0) {
		return nil, ErrInvalidChunk
	}
	if !(total > 0) {
		return nil, nil
	}

	n := int(math.Floor(total / chunk))
	// Division can round up to the next integer.
	for n > 0 && float64(n)*chunk > total {
		n--
	}
	if n == 0 {
		return nil, nil
	}

	segments := make([]Segment, 0, n)
	for idx := 0; idx < n; idx++ {
		segments = append(segments, Segment{
			Source: source,
			Index:  idx,
			Start:  float64(idx) * chunk,
			Length: chunk,
		})
	}
	return segments, nil
}

// Native returns a single descriptor spanning the whole file.
func Native(source string, total, chunk float64) ([]Segment, error) {
	if !(chunk > 0) || math.IsInf(chunk, 0) {
		return nil, ErrInvalidChunk
	}
	if !(total > 0) {
		return nil, nil
	}
	return []Segment{{Source: source, Index: 0, Start: 0, Length: total, Whole: true}}, nil
}

// OutputName is the file name of segment idx: <base>_<NNN>.<ext>.
func OutputName(base string, idx int, ext string) string {
	return fmt.Sprintf("%s_%03d.%s", base, idx, ext)
}

// OutputPattern is the printf-style pattern handed to ffmpeg's segment muxer.
func OutputPattern(base, ext string) string {
	return base + "_%03d." + ext
}

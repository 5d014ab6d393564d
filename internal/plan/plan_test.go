package plan

import (
	"errors"
	"math"
	"testing"
)

func TestManual_Properties(t *testing.T) {
	tests := []struct {
		total float64
		chunk float64
	}{
		{10, 3},
		{10, 1},
		{9, 3},
		{3600.5, 60},
		{0.7, 0.1},
		{123.456, 7.89},
		{59.94, 2},
		{1, 1},
	}

	for _, tt := range tests {
		segs, err := Manual("in.mp4", tt.total, tt.chunk)
		if err != nil {
			t.Fatalf("Manual(%v, %v) error = %v", tt.total, tt.chunk, err)
		}

		want := int(math.Floor(tt.total / tt.chunk))
		if float64(want)*tt.chunk > tt.total {
			want--
		}
		if len(segs) != want {
			t.Errorf("Manual(%v, %v) = %d segments, want %d", tt.total, tt.chunk, len(segs), want)
		}

		for i, s := range segs {
			if s.Index != i {
				t.Errorf("segment %d has index %d", i, s.Index)
			}
			if s.Length != tt.chunk {
				t.Errorf("segment %d length = %v, want %v", i, s.Length, tt.chunk)
			}
			if s.Whole {
				t.Errorf("segment %d marked whole", i)
			}
			if i > 0 {
				prev := segs[i-1]
				if s.Start <= prev.Start {
					t.Errorf("start offsets not increasing at %d", i)
				}
				if prev.End() > s.Start+1e-9 {
					t.Errorf("segments %d and %d overlap", i-1, i)
				}
			}
		}
		if len(segs) > 0 {
			if last := segs[len(segs)-1]; last.End() > tt.total {
				t.Errorf("last segment ends at %v past total %v", last.End(), tt.total)
			}
		}
	}
}

func TestManual_RemainderDropped(t *testing.T) {
	segs, err := Manual("clip.mp4", 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	wantStarts := []float64{0, 3, 6}
	for i, s := range segs {
		if s.Start != wantStarts[i] || s.Length != 3 {
			t.Errorf("segment %d = [%v +%v], want [%v +3]", i, s.Start, s.Length, wantStarts[i])
		}
	}
}

func TestManual_TooShort(t *testing.T) {
	segs, err := Manual("short.mp4", 2.5, 3)
	if err != nil {
		t.Fatalf("Manual() error = %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("got %d segments, want 0", len(segs))
	}
}

func TestInvalidChunk(t *testing.T) {
	for _, chunk := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Manual("a.mp4", 10, chunk); !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("Manual(chunk=%v) error = %v, want ErrInvalidChunk", chunk, err)
		}
		if _, err := Native("a.mp4", 10, chunk); !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("Native(chunk=%v) error = %v, want ErrInvalidChunk", chunk, err)
		}
	}
}

func TestNative_SingleWholeDescriptor(t *testing.T) {
	segs, err := Native("in.mkv", 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	s := segs[0]
	if !s.Whole || s.Start != 0 || s.Length != 10 {
		t.Errorf("Native() = %+v, want whole [0 +10]", s)
	}
}

func TestPlan_Dispatch(t *testing.T) {
	manual, _ := Plan(PolicyManual, "a.mp4", 10, 3)
	native, _ := Plan(PolicyNative, "a.mp4", 10, 3)
	if len(manual) != 3 || len(native) != 1 {
		t.Errorf("Plan() manual=%d native=%d, want 3 and 1", len(manual), len(native))
	}
	if _, err := Plan("bogus", "a.mp4", 10, 3); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyManual, false},
		{"manual", PolicyManual, false},
		{"native", PolicyNative, false},
		{"fast", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOutputNaming(t *testing.T) {
	if got := OutputName("holiday", 7, "mp4"); got != "holiday_007.mp4" {
		t.Errorf("OutputName() = %q", got)
	}
	if got := OutputPattern("holiday", "mkv"); got != "holiday_%03d.mkv" {
		t.Errorf("OutputPattern() = %q", got)
	}
}

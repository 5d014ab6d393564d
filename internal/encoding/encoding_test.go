package encoding

import (
	"errors"
	"testing"

	"github.com/mt4110/vsplit/internal/plan"
	"github.com/mt4110/vsplit/internal/probe"
)

func baseSettings() Settings {
	return Settings{
		FrameRate:    "30",
		Resolution:   "1920x1080",
		Codec:        "hevc",
		Quality:      QualityBitrate,
		CRF:          23,
		Bitrate:      "20000k",
		IncludeAudio: true,
		AudioCodec:   "copy",
		AudioBitrate: "128k",
	}
}

func TestFixed_CustomResolution(t *testing.T) {
	s := baseSettings()
	s.Resolution = Custom
	s.CustomResolution = "720x1280"

	p, err := Resolver{}.Fixed(s, 2, plan.PolicyManual)
	if err != nil {
		t.Fatalf("Fixed() error = %v", err)
	}
	if p.Width != 720 || p.Height != 1280 {
		t.Errorf("size = %dx%d, want 720x1280", p.Width, p.Height)
	}
}

func TestFixed_MalformedResolution(t *testing.T) {
	for _, custom := range []string{"abc", "720x", "x1280", "720*1280", "0x720", ""} {
		s := baseSettings()
		s.Resolution = Custom
		s.CustomResolution = custom

		_, err := Resolver{}.Fixed(s, 2, plan.PolicyManual)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("custom %q: error = %v, want ErrInvalidInput", custom, err)
		}
	}
}

func TestFixed_VerticalSwap(t *testing.T) {
	s := baseSettings()
	s.Vertical = true

	p, err := Resolver{}.Fixed(s, 2, plan.PolicyManual)
	if err != nil {
		t.Fatal(err)
	}
	if p.Width != 1080 || p.Height != 1920 {
		t.Errorf("size = %dx%d, want 1080x1920", p.Width, p.Height)
	}

	if w, h := Swap(1280, 720); w != 720 || h != 1280 {
		t.Errorf("Swap() = %d,%d", w, h)
	}
}

func TestFixed_KeyInterval(t *testing.T) {
	s := baseSettings()

	p, err := Resolver{}.Fixed(s, 2, plan.PolicyManual)
	if err != nil {
		t.Fatal(err)
	}
	if p.KeyInterval != 60 {
		t.Errorf("KeyInterval = %d, want 60", p.KeyInterval)
	}

	native, err := Resolver{}.Fixed(s, 2, plan.PolicyNative)
	if err != nil {
		t.Fatal(err)
	}
	if native.KeyInterval != 0 {
		t.Errorf("native KeyInterval = %d, want 0", native.KeyInterval)
	}

	if got := KeyframeInterval(29.97, 3); got != 90 {
		t.Errorf("KeyframeInterval(29.97, 3) = %d, want 90", got)
	}
}

func TestFixed_CustomFrameRate(t *testing.T) {
	tests := []struct {
		custom  string
		want    float64
		wantErr bool
	}{
		{"48", 48, false},
		{"12.5", 12.5, false},
		{"60000/1001", 60000.0 / 1001.0, false},
		{"fast", 0, true},
		{"-5", 0, true},
		{"0", 0, true},
		{"1/0", 0, true},
	}
	for _, tt := range tests {
		s := baseSettings()
		s.FrameRate = Custom
		s.CustomFrameRate = tt.custom

		p, err := Resolver{}.Fixed(s, 1, plan.PolicyManual)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("custom fps %q: error = %v, want ErrInvalidInput", tt.custom, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("custom fps %q: error = %v", tt.custom, err)
			continue
		}
		if p.FrameRate != tt.want {
			t.Errorf("custom fps %q = %v, want %v", tt.custom, p.FrameRate, tt.want)
		}
	}
}

func TestFixed_HardwareSubstitution(t *testing.T) {
	tests := []struct {
		name        string
		codec       string
		kind        string
		hwRequested bool
		hwAvailable bool
		want        string
	}{
		{"hevc on cuda", "hevc", "", true, true, "hevc_nvenc"},
		{"h264 on videotoolbox", "h264", "videotoolbox", true, true, "h264_videotoolbox"},
		{"not available", "h264", "", true, false, "libx264"},
		{"not requested", "hevc", "", false, true, "libx265"},
		{"vp9 has no hw variant", "vp9", "", true, true, "libvpx-vp9"},
		{"av1 has no hw variant", "av1", "", true, true, "libsvtav1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSettings()
			s.Codec = tt.codec
			s.HWAccel = tt.hwRequested
			s.HWAccelKind = tt.kind

			p, err := Resolver{HWAvailable: tt.hwAvailable}.Fixed(s, 1, plan.PolicyManual)
			if err != nil {
				t.Fatal(err)
			}
			if p.Encoder != tt.want {
				t.Errorf("Encoder = %q, want %q", p.Encoder, tt.want)
			}
			if p.HWAccel != (tt.want != softwareEncoders[tt.codec]) {
				t.Errorf("HWAccel = %v for encoder %q", p.HWAccel, p.Encoder)
			}
		})
	}
}

func TestFixed_QualityControl(t *testing.T) {
	s := baseSettings()
	s.Quality = QualityCRF
	s.CRF = 28

	p, err := Resolver{}.Fixed(s, 1, plan.PolicyManual)
	if err != nil {
		t.Fatal(err)
	}
	if !p.UseCRF || p.CRF != 28 || p.Bitrate != "" {
		t.Errorf("software CRF profile = %+v", p)
	}

	// nvenc has no CRF: bitrate is used instead.
	s.HWAccel = true
	p, err = Resolver{HWAvailable: true}.Fixed(s, 1, plan.PolicyManual)
	if err != nil {
		t.Fatal(err)
	}
	if p.UseCRF || p.Bitrate != "20000k" {
		t.Errorf("hardware profile = %+v, want bitrate 20000k", p)
	}

	s = baseSettings()
	s.Quality = QualityCRF
	s.CRF = 52
	if _, err := (Resolver{}).Fixed(s, 1, plan.PolicyManual); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("CRF 52: error = %v, want ErrInvalidInput", err)
	}

	s = baseSettings()
	s.Bitrate = "1k"
	if _, err := (Resolver{}).Fixed(s, 1, plan.PolicyManual); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bitrate 1k: error = %v, want ErrInvalidInput", err)
	}
}

func TestFixed_Audio(t *testing.T) {
	s := baseSettings()
	s.AudioCodec = "opus"
	s.AudioBitrate = "96k"

	p, err := Resolver{}.Fixed(s, 1, plan.PolicyManual)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IncludeAudio || p.AudioCopy || p.AudioCodec != "libopus" || p.AudioBitrate != "96k" {
		t.Errorf("audio profile = %+v", p)
	}

	s.IncludeAudio = false
	p, _ = Resolver{}.Fixed(s, 1, plan.PolicyManual)
	if p.IncludeAudio {
		t.Error("IncludeAudio should be false")
	}

	s = baseSettings()
	s.AudioCodec = "mp3"
	if _, err := (Resolver{}).Fixed(s, 1, plan.PolicyManual); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("mp3: error = %v, want ErrInvalidInput", err)
	}
}

func TestFixed_UnknownCodec(t *testing.T) {
	s := baseSettings()
	s.Codec = "mpeg2"
	if _, err := (Resolver{}).Fixed(s, 1, plan.PolicyManual); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestFromSource(t *testing.T) {
	info := &probe.StreamInfo{Width: 1280, Height: 720, FrameRate: probe.Rational{Num: 25, Den: 1}}
	s := baseSettings()

	p, err := Resolver{}.FromSource(info, s)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Copy || !p.AudioCopy {
		t.Errorf("expected pass-through profile, got %+v", p)
	}
	if p.Width != 1280 || p.Height != 720 || p.FrameRate != 25 {
		t.Errorf("source params = %dx%d@%v", p.Width, p.Height, p.FrameRate)
	}
	if p.KeyInterval != 0 {
		t.Errorf("KeyInterval = %d, want 0 for copy", p.KeyInterval)
	}

	if _, err := (Resolver{}).FromSource(nil, s); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil info: error = %v", err)
	}
}

func TestHardwareEncoder(t *testing.T) {
	tests := []struct {
		codec, kind string
		want        string
		ok          bool
	}{
		{"hevc", "", "hevc_nvenc", true},
		{"h264", "qsv", "h264_qsv", true},
		{"hevc", "videotoolbox", "hevc_videotoolbox", true},
		{"vp9", "cuda", "", false},
		{"h264", "vaapi", "", false},
	}
	for _, tt := range tests {
		got, ok := HardwareEncoder(tt.codec, tt.kind)
		if got != tt.want || ok != tt.ok {
			t.Errorf("HardwareEncoder(%q, %q) = %q, %v", tt.codec, tt.kind, got, ok)
		}
	}
}

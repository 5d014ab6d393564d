// Package encoding resolves user encoding settings into a concrete Profile.
package encoding

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mt4110/vsplit/internal/plan"
	"github.com/mt4110/vsplit/internal/probe"
)

// ErrInvalidInput marks malformed user settings.
var ErrInvalidInput = errors.New("invalid input")

const Custom = "custom"

var (
	FrameRates    = []string{"16", "18", "23.976", "24", "25", "29.97", "30", "50", "60", Custom}
	Resolutions   = []string{"1280x720", "720x1280", "1920x1080", "1080x1920", "3840x2160", "2160x3840", "2160x2160", "1536x1536", "1280x1280", "1024x1024", "720x720", Custom}
	Codecs        = []string{"h264", "hevc", "vp9", "av1"}
	Bitrates      = []string{"5000k", "10000k", "20000k", "50000k"}
	AudioCodecs   = []string{"copy", "aac", "opus"}
	AudioBitrates = []string{"96k", "128k", "192k", "256k", "320k"}
	HWAccelKinds  = []string{"cuda", "videotoolbox", "qsv"}
)

const (
	QualityCRF     = "crf"
	QualityBitrate = "bitrate"
)

var resolutionRe = regexp.MustCompile(`^\d+x\d+$`)

var softwareEncoders = map[string]string{
	"h264": "libx264",
	"hevc": "libx265",
	"vp9":  "libvpx-vp9",
	"av1":  "libsvtav1",
}

var hwSuffix = map[string]string{
	"cuda":         "nvenc",
	"videotoolbox": "videotoolbox",
	"qsv":          "qsv",
}

// Settings are the encoding choices as a user expresses them.
type Settings struct {
	FrameRate        string `json:"frameRate"`
	CustomFrameRate  string `json:"customFrameRate"`
	Resolution       string `json:"resolution"`
	CustomResolution string `json:"customResolution"`
	Vertical         bool   `json:"vertical"`
	Codec            string `json:"codec"`
	Quality          string `json:"quality"`
	CRF              int    `json:"crf"`
	Bitrate          string `json:"bitrate"`
	IncludeAudio     bool   `json:"includeAudio"`
	AudioCodec       string `json:"audioCodec"`
	AudioBitrate     string `json:"audioBitrate"`
	HWAccel          bool   `json:"hwaccel"`
	HWAccelKind      string `json:"hwaccelKind"`
}

// Profile is the resolved, immutable set of parameters for one file or batch.
type Profile struct {
	Copy bool

	FrameRate float64
	Width     int
	Height    int

	VideoCodec  string // user codec family: h264, hevc, vp9, av1
	Encoder     string // ffmpeg encoder name
	HWAccel     bool
	HWAccelKind string

	UseCRF  bool
	CRF     int
	Bitrate string

	IncludeAudio bool
	AudioCopy    bool
	AudioCodec   string // ffmpeg encoder name when not copying
	AudioBitrate string

	// KeyInterval is the GOP size in frames; 0 leaves it to the encoder.
	KeyInterval int
}

// Resolver turns Settings into a Profile. HWAvailable says whether the
// hardware encoder for the requested kind is usable on this machine.
type Resolver struct {
	HWAvailable bool
}

// Fixed resolves user settings for a re-encoding run. The key-frame
// interval is only set for PolicyManual, where every chunk boundary must
// land on a key frame.
func (r Resolver) Fixed(s Settings, chunk float64, policy plan.Policy) (Profile, error) {
	fps, err := ParseFrameRate(s.FrameRate, s.CustomFrameRate)
	if err != nil {
		return Profile{}, err
	}

	w, h, err := resolveResolution(s.Resolution, s.CustomResolution)
	if err != nil {
		return Profile{}, err
	}
	if s.Vertical {
		w, h = Swap(w, h)
	}

	codec := strings.ToLower(s.Codec)
	encoder, ok := softwareEncoders[codec]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown video codec %q (want one of %s)",
			ErrInvalidInput, s.Codec, strings.Join(Codecs, ", "))
	}

	p := Profile{
		FrameRate:  fps,
		Width:      w,
		Height:     h,
		VideoCodec: codec,
		Encoder:    encoder,
	}

	if s.HWAccel && r.HWAvailable {
		kind := s.HWAccelKind
		if kind == "" {
			kind = "cuda"
		}
		if _, ok := hwSuffix[kind]; !ok {
			return Profile{}, fmt.Errorf("%w: unknown hwaccel kind %q", ErrInvalidInput, kind)
		}
		if hw, ok := HardwareEncoder(codec, kind); ok {
			p.Encoder = hw
			p.HWAccel = true
			p.HWAccelKind = kind
		}
	}

	if err := applyQuality(&p, s); err != nil {
		return Profile{}, err
	}
	if err := applyAudio(&p, s); err != nil {
		return Profile{}, err
	}

	if policy == plan.PolicyManual {
		p.KeyInterval = KeyframeInterval(fps, chunk)
	}
	return p, nil
}

// FromSource builds a pass-through profile from probed stream metadata.
func (r Resolver) FromSource(info *probe.StreamInfo, s Settings) (Profile, error) {
	if info == nil {
		return Profile{}, fmt.Errorf("%w: missing stream info", ErrInvalidInput)
	}
	return Profile{
		Copy:         true,
		FrameRate:    info.FrameRate.Float(),
		Width:        info.Width,
		Height:       info.Height,
		Encoder:      "copy",
		IncludeAudio: s.IncludeAudio,
		AudioCopy:    true,
	}, nil
}

func applyQuality(p *Profile, s Settings) error {
	quality := s.Quality
	if quality == "" {
		quality = QualityBitrate
	}

	switch quality {
	case QualityCRF:
		if s.CRF < 0 || s.CRF > 51 {
			return fmt.Errorf("%w: CRF must be between 0 and 51, got %d", ErrInvalidInput, s.CRF)
		}
		if SupportsCRF(p.Encoder) {
			p.UseCRF = true
			p.CRF = s.CRF
			return nil
		}
		// Hardware encoders have no CRF; fall back to the bitrate setting.
	case QualityBitrate:
	default:
		return fmt.Errorf("%w: unknown quality mode %q", ErrInvalidInput, s.Quality)
	}

	if !slices.Contains(Bitrates, s.Bitrate) {
		return fmt.Errorf("%w: bitrate %q not in %s", ErrInvalidInput, s.Bitrate, strings.Join(Bitrates, ", "))
	}
	p.Bitrate = s.Bitrate
	return nil
}

func applyAudio(p *Profile, s Settings) error {
	if !s.IncludeAudio {
		return nil
	}
	p.IncludeAudio = true

	switch s.AudioCodec {
	case "", "copy":
		p.AudioCopy = true
		return nil
	case "aac":
		p.AudioCodec = "aac"
	case "opus":
		p.AudioCodec = "libopus"
	default:
		return fmt.Errorf("%w: unknown audio codec %q", ErrInvalidInput, s.AudioCodec)
	}

	if !slices.Contains(AudioBitrates, s.AudioBitrate) {
		return fmt.Errorf("%w: audio bitrate %q not in %s", ErrInvalidInput, s.AudioBitrate, strings.Join(AudioBitrates, ", "))
	}
	p.AudioBitrate = s.AudioBitrate
	return nil
}

// HardwareEncoder returns the ffmpeg encoder for codec on the given
// hwaccel kind. Only h264 and hevc have hardware variants.
func HardwareEncoder(codec, kind string) (string, bool) {
	if codec != "h264" && codec != "hevc" {
		return "", false
	}
	if kind == "" {
		kind = "cuda"
	}
	suffix, ok := hwSuffix[kind]
	if !ok {
		return "", false
	}
	return codec + "_" + suffix, true
}

// SupportsCRF reports whether an ffmpeg encoder accepts -crf.
func SupportsCRF(encoder string) bool {
	switch encoder {
	case "libx264", "libx265", "libvpx-vp9", "libsvtav1", "libaom-av1":
		return true
	}
	return false
}

// ParseFrameRate accepts a preset, or "custom" with a positive decimal or
// integer fraction in custom.
func ParseFrameRate(preset, custom string) (float64, error) {
	value := preset
	if preset == Custom {
		value = custom
	} else if !slices.Contains(FrameRates, preset) {
		return 0, fmt.Errorf("%w: frame rate %q not in %s", ErrInvalidInput, preset, strings.Join(FrameRates, ", "))
	}

	r, err := probe.ParseRational(value)
	if err != nil {
		return 0, fmt.Errorf("%w: custom frame rate %q: %v", ErrInvalidInput, value, err)
	}
	fps := r.Float()
	if !(fps > 0) || fps > 1000 {
		return 0, fmt.Errorf("%w: frame rate %q out of range", ErrInvalidInput, value)
	}
	return fps, nil
}

// ParseResolution parses a "WxH" string.
func ParseResolution(s string) (int, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !resolutionRe.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: resolution %q must look like WxH (e.g. 720x1280)", ErrInvalidInput, s)
	}
	ws, hs, _ := strings.Cut(s, "x")
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: resolution %q out of range", ErrInvalidInput, s)
	}
	return w, h, nil
}

func resolveResolution(preset, custom string) (int, int, error) {
	if preset == Custom {
		return ParseResolution(custom)
	}
	if !slices.Contains(Resolutions, preset) {
		return 0, 0, fmt.Errorf("%w: resolution %q not in presets", ErrInvalidInput, preset)
	}
	return ParseResolution(preset)
}

// Swap transposes a resolution for vertical output.
func Swap(w, h int) (int, int) {
	return h, w
}

// KeyframeInterval is round(fps*chunk) frames.
func KeyframeInterval(fps, chunk float64) int {
	return int(math.Round(fps * chunk))
}

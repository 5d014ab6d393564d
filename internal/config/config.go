package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/plan"
)

const (
	EnvFFmpegDir = "VSPLIT_FFMPEG_DIR"
	EnvLogFile   = "VSPLIT_LOG_FILE"
	EnvHistoryDB = "VSPLIT_HISTORY_DB"
	EnvListen    = "VSPLIT_LISTEN"

	DefaultListen = "127.0.0.1:8790"
)

var (
	Containers = []string{"mp4", "mkv", "mov"}
	OnErrors   = []string{"abort", "skip"}
)

// Profile is a named encoding preset. Empty fields leave the base config
// untouched.
type Profile struct {
	FrameRate    string `yaml:"frameRate"`
	Resolution   string `yaml:"resolution"`
	Vertical     *bool  `yaml:"vertical"`
	Codec        string `yaml:"codec"`
	Quality      string `yaml:"quality"`
	CRF          *int   `yaml:"crf"`
	Bitrate      string `yaml:"bitrate"`
	Container    string `yaml:"container"`
	AudioCodec   string `yaml:"audioCodec"`
	AudioBitrate string `yaml:"audioBitrate"`
}

type Config struct {
	InputDir  string `yaml:"inputDir,omitempty" json:"inputDir"`
	OutputDir string `yaml:"outputDir,omitempty" json:"outputDir"`

	ChunkDuration int    `yaml:"chunkDuration" json:"chunkDuration"`
	Segmenter     string `yaml:"segmenter" json:"segmenter"`
	UseOriginal   bool   `yaml:"useOriginal" json:"useOriginal"`

	FrameRate        string `yaml:"frameRate" json:"frameRate"`
	CustomFrameRate  string `yaml:"customFrameRate" json:"customFrameRate"`
	Resolution       string `yaml:"resolution" json:"resolution"`
	CustomResolution string `yaml:"customResolution" json:"customResolution"`
	Vertical         bool   `yaml:"vertical" json:"vertical"`
	Codec            string `yaml:"codec" json:"codec"`
	Quality          string `yaml:"quality" json:"quality"`
	CRF              int    `yaml:"crf" json:"crf"`
	Bitrate          string `yaml:"bitrate" json:"bitrate"`
	Container        string `yaml:"container" json:"container"`

	IncludeAudio bool   `yaml:"includeAudio" json:"includeAudio"`
	AudioCodec   string `yaml:"audioCodec" json:"audioCodec"`
	AudioBitrate string `yaml:"audioBitrate" json:"audioBitrate"`

	HWAccel     bool   `yaml:"hwaccel" json:"hwaccel"`
	HWAccelKind string `yaml:"hwaccelKind" json:"hwaccelKind"`

	Caption             string   `yaml:"caption" json:"caption"`
	FFmpegDir           string   `yaml:"ffmpegDir" json:"ffmpegDir"`
	OnError             string   `yaml:"onError" json:"onError"`
	StopBetweenSegments bool     `yaml:"stopBetweenSegments" json:"stopBetweenSegments"`
	Recursive           bool     `yaml:"recursive" json:"recursive"`
	Keywords            []string `yaml:"keywords" json:"keywords"`
	IgnoreKeywords      []string `yaml:"ignoreKeywords" json:"ignoreKeywords"`
	DryRun              bool     `yaml:"dryRun" json:"dryRun"`

	Notify    bool               `yaml:"notify" json:"-"`
	LogFile   string             `yaml:"logFile" json:"-"`
	HistoryDB string             `yaml:"historyDB" json:"-"`
	Listen    string             `yaml:"listen" json:"-"`
	Profiles  map[string]Profile `yaml:"profiles" json:"-"`
}

func NewDefault() *Config {
	cwd, _ := os.Getwd()

	return &Config{
		InputDir:      cwd,
		OutputDir:     cwd,
		ChunkDuration: 1,
		Segmenter:     string(plan.PolicyManual),
		UseOriginal:   true,
		FrameRate:     "30",
		Resolution:    "2160x2160",
		Codec:         "hevc",
		Quality:       encoding.QualityBitrate,
		CRF:           23,
		Bitrate:       "20000k",
		Container:     "mp4",
		IncludeAudio:  true,
		AudioCodec:    "copy",
		AudioBitrate:  "128k",
		HWAccelKind:   "cuda",
		OnError:       "abort",
		Notify:        false,
		Listen:        DefaultListen,
	}
}

// Dir is ~/.config/vsplit.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vsplit"), nil
}

// Path is the YAML config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryDB is the SQLite file used when historyDB is unset.
func DefaultHistoryDB() string {
	dir, err := Dir()
	if err != nil {
		return "vsplit-history.db"
	}
	return filepath.Join(dir, "history.db")
}

// Load reads the YAML file (if any), then .env and the environment.
func Load() (*Config, error) {
	cfg := NewDefault()

	configPath, err := Path()
	if err != nil {
		applyEnv(cfg)
		return cfg, nil // ホームディレクトリが取れなくてもデフォルトで進む
	}

	if err := loadFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadFile(cfg *Config, configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

// applyEnv loads ./.env without overriding variables that are already set.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv(EnvFFmpegDir); v != "" {
		cfg.FFmpegDir = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvHistoryDB); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
}

// Save writes cfg as YAML, creating the parent directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a copy that shares no slices or maps with c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Keywords = slices.Clone(c.Keywords)
	cp.IgnoreKeywords = slices.Clone(c.IgnoreKeywords)
	cp.Profiles = maps.Clone(c.Profiles)
	return &cp
}

// ApplyProfile overlays the named profile onto cfg.
func (c *Config) ApplyProfile(name string) error {
	p, ok := c.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	if p.FrameRate != "" {
		c.FrameRate = p.FrameRate
	}
	if p.Resolution != "" {
		c.Resolution = p.Resolution
	}
	if p.Vertical != nil {
		c.Vertical = *p.Vertical
	}
	if p.Codec != "" {
		c.Codec = p.Codec
	}
	if p.Quality != "" {
		c.Quality = p.Quality
	}
	if p.CRF != nil {
		c.CRF = *p.CRF
	}
	if p.Bitrate != "" {
		c.Bitrate = p.Bitrate
	}
	if p.Container != "" {
		c.Container = p.Container
	}
	if p.AudioCodec != "" {
		c.AudioCodec = p.AudioCodec
	}
	if p.AudioBitrate != "" {
		c.AudioBitrate = p.AudioBitrate
	}
	// Presets only make sense when re-encoding.
	c.UseOriginal = false
	return nil
}

// Settings extracts the encoding choices.
func (c *Config) Settings() encoding.Settings {
	return encoding.Settings{
		FrameRate:        c.FrameRate,
		CustomFrameRate:  c.CustomFrameRate,
		Resolution:       c.Resolution,
		CustomResolution: c.CustomResolution,
		Vertical:         c.Vertical,
		Codec:            c.Codec,
		Quality:          c.Quality,
		CRF:              c.CRF,
		Bitrate:          c.Bitrate,
		IncludeAudio:     c.IncludeAudio,
		AudioCodec:       c.AudioCodec,
		AudioBitrate:     c.AudioBitrate,
		HWAccel:          c.HWAccel,
		HWAccelKind:      c.HWAccelKind,
	}
}

// Validate checks the surface-level constraints and reports every problem
// at once. Custom frame rate and resolution strings are parsed later by the
// encoding resolver.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.InputDir) == "" {
		errs = append(errs, errors.New("inputDir is required"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("outputDir is required"))
	}
	if c.ChunkDuration < 1 {
		errs = append(errs, fmt.Errorf("chunkDuration must be an integer >= 1, got %d", c.ChunkDuration))
	}
	if _, err := plan.ParsePolicy(c.Segmenter); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(Containers, c.Container) {
		errs = append(errs, fmt.Errorf("container %q must be one of %s", c.Container, strings.Join(Containers, ", ")))
	}
	if c.OnError != "" && !slices.Contains(OnErrors, c.OnError) {
		errs = append(errs, fmt.Errorf("onError %q must be one of %s", c.OnError, strings.Join(OnErrors, ", ")))
	}

	if !c.UseOriginal {
		if !slices.Contains(encoding.Codecs, c.Codec) {
			errs = append(errs, fmt.Errorf("codec %q must be one of %s", c.Codec, strings.Join(encoding.Codecs, ", ")))
		}
		if c.Quality != encoding.QualityCRF && c.Quality != encoding.QualityBitrate && c.Quality != "" {
			errs = append(errs, fmt.Errorf("quality %q must be crf or bitrate", c.Quality))
		}
		if c.CRF < 0 || c.CRF > 51 {
			errs = append(errs, fmt.Errorf("crf must be between 0 and 51, got %d", c.CRF))
		}
		if c.HWAccel && !slices.Contains(encoding.HWAccelKinds, c.HWAccelKind) && c.HWAccelKind != "" {
			errs = append(errs, fmt.Errorf("hwaccelKind %q must be one of %s", c.HWAccelKind, strings.Join(encoding.HWAccelKinds, ", ")))
		}
	}
	if c.IncludeAudio && !slices.Contains(encoding.AudioCodecs, c.AudioCodec) && c.AudioCodec != "" {
		errs = append(errs, fmt.Errorf("audioCodec %q must be one of %s", c.AudioCodec, strings.Join(encoding.AudioCodecs, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", encoding.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

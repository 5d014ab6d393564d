package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mt4110/vsplit/internal/encoding"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	if cfg.ChunkDuration != 1 {
		t.Errorf("expected chunkDuration 1, got %d", cfg.ChunkDuration)
	}
	if !cfg.UseOriginal {
		t.Error("expected useOriginal default true")
	}
	if cfg.Resolution != "2160x2160" || cfg.Codec != "hevc" || cfg.Bitrate != "20000k" {
		t.Errorf("unexpected encoding defaults: %s %s %s", cfg.Resolution, cfg.Codec, cfg.Bitrate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Container != "mp4" {
		t.Errorf("expected default container 'mp4', got %s", cfg.Container)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("expected default listen %s, got %s", DefaultListen, cfg.Listen)
	}
}

func TestLoad_WithFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Chdir(t.TempDir())

	configDir := filepath.Join(tempDir, ".config", "vsplit")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	yamlContent := `
chunkDuration: 5
useOriginal: false
codec: h264
keywords:
  - test
profiles:
  reels:
    resolution: 1080x1920
    crf: 20
    quality: crf
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ChunkDuration != 5 {
		t.Errorf("expected chunkDuration 5, got %d", cfg.ChunkDuration)
	}
	if cfg.Codec != "h264" {
		t.Errorf("expected codec h264, got %s", cfg.Codec)
	}
	if cfg.Bitrate != "20000k" {
		t.Errorf("unset keys should keep defaults, got bitrate %s", cfg.Bitrate)
	}
	if len(cfg.Keywords) != 1 || cfg.Keywords[0] != "test" {
		t.Errorf("expected keywords [test], got %v", cfg.Keywords)
	}

	if err := cfg.ApplyProfile("reels"); err != nil {
		t.Fatal(err)
	}
	if cfg.Resolution != "1080x1920" || cfg.CRF != 20 || cfg.Quality != "crf" {
		t.Errorf("profile not applied: %s crf=%d quality=%s", cfg.Resolution, cfg.CRF, cfg.Quality)
	}
	if err := cfg.ApplyProfile("missing"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoad_BrokenFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Chdir(t.TempDir())

	configDir := filepath.Join(tempDir, ".config", "vsplit")
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("chunkDuration: [1, 2"), 0644)

	if _, err := Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	work := t.TempDir()
	t.Chdir(work)

	t.Setenv(EnvListen, "0.0.0.0:9000")
	os.WriteFile(filepath.Join(work, ".env"), []byte(EnvFFmpegDir+"=/opt/ffmpeg/bin\n"), 0644)
	t.Cleanup(func() { os.Unsetenv(EnvFFmpegDir) })

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %s", cfg.Listen)
	}
	if cfg.FFmpegDir != "/opt/ffmpeg/bin" {
		t.Errorf("ffmpegDir from .env = %q", cfg.FFmpegDir)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := NewDefault()
	cfg.ChunkDuration = 0
	cfg.Container = "avi"
	cfg.OnError = "retry"
	cfg.Segmenter = "fast"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, encoding.ErrInvalidInput) {
		t.Errorf("error should wrap ErrInvalidInput: %v", err)
	}
	for _, want := range []string{"chunkDuration", "container", "onError", "fast"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_EncodeSettings(t *testing.T) {
	cfg := NewDefault()
	cfg.UseOriginal = false
	cfg.Codec = "mpeg2"
	cfg.CRF = 60

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "codec") || !strings.Contains(err.Error(), "crf") {
		t.Errorf("Validate() = %v", err)
	}

	// Encoding keys are ignored in copy mode.
	cfg.UseOriginal = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("copy mode should ignore encoding keys, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := NewDefault()
	cfg.Caption = "#shorts"

	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	loaded := &Config{}
	if err := loadFile(loaded, path); err != nil {
		t.Fatal(err)
	}
	if loaded.Caption != "#shorts" || loaded.ChunkDuration != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestClone(t *testing.T) {
	cfg := NewDefault()
	cfg.Keywords = []string{"keep", "also"}
	cfg.IgnoreKeywords = []string{"draft"}
	cfg.Profiles = map[string]Profile{"reels": {Codec: "h264"}}

	cp := cfg.Clone()
	cp.Keywords[0] = "changed"
	cp.IgnoreKeywords[0] = "changed"
	cp.Profiles["extra"] = Profile{}
	cp.ChunkDuration = 9

	if cfg.Keywords[0] != "keep" || cfg.IgnoreKeywords[0] != "draft" {
		t.Errorf("slices shared: %v %v", cfg.Keywords, cfg.IgnoreKeywords)
	}
	if _, ok := cfg.Profiles["extra"]; ok {
		t.Error("profiles map shared")
	}
	if cfg.ChunkDuration != 1 {
		t.Errorf("ChunkDuration = %d", cfg.ChunkDuration)
	}
}

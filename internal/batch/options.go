package batch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/plan"
)

// FailurePolicy decides what a failing file does to the rest of the batch.
type FailurePolicy string

const (
	// OnErrorAbort stops the batch at the first failing file.
	OnErrorAbort FailurePolicy = "abort"
	// OnErrorSkip records the failure and moves on to the next file.
	OnErrorSkip FailurePolicy = "skip"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", OnErrorAbort:
		return OnErrorAbort, nil
	case OnErrorSkip:
		return OnErrorSkip, nil
	default:
		return "", fmt.Errorf("%w: unknown onError %q (want abort or skip)", encoding.ErrInvalidInput, s)
	}
}

// Options is everything one batch run needs.
type Options struct {
	// RunID is generated when zero.
	RunID uuid.UUID

	InputDir   string
	OutputRoot string
	// Files, when set, replaces directory discovery.
	Files []string

	ChunkDuration float64
	Policy        plan.Policy
	UseSource     bool
	Settings      encoding.Settings
	Container     string
	Caption       string

	OnError             FailurePolicy
	StopBetweenSegments bool

	Recursive      bool
	Keywords       []string
	IgnoreKeywords []string

	DryRun    bool
	FFmpegDir string
}

// OptionsFromConfig maps the configuration surface onto batch options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := plan.ParsePolicy(cfg.Segmenter)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", encoding.ErrInvalidInput, err)
	}
	onError, err := ParseFailurePolicy(cfg.OnError)
	if err != nil {
		return Options{}, err
	}

	return Options{
		InputDir:            cfg.InputDir,
		OutputRoot:          cfg.OutputDir,
		ChunkDuration:       float64(cfg.ChunkDuration),
		Policy:              policy,
		UseSource:           cfg.UseOriginal,
		Settings:            cfg.Settings(),
		Container:           cfg.Container,
		Caption:             cfg.Caption,
		OnError:             onError,
		StopBetweenSegments: cfg.StopBetweenSegments,
		Recursive:           cfg.Recursive,
		Keywords:            cfg.Keywords,
		IgnoreKeywords:      cfg.IgnoreKeywords,
		DryRun:              cfg.DryRun,
		FFmpegDir:           cfg.FFmpegDir,
	}, nil
}

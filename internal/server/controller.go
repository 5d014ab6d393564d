package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/history"
	"github.com/mt4110/vsplit/internal/notify"
)

// ErrBusy is returned when a batch is already running.
var ErrBusy = errors.New("a batch is already running")

// BatchRunner is satisfied by *batch.Runner.
type BatchRunner interface {
	Run(ctx context.Context, opts batch.Options) *batch.Report
}

// RunStore is satisfied by *history.Store.
type RunStore interface {
	Begin(ctx context.Context, id, inputDir string, dryRun bool, startedAt time.Time) error
	SaveReport(ctx context.Context, rep *batch.Report) error
	ListRuns(ctx context.Context, limit int) ([]history.Run, error)
	GetRun(ctx context.Context, id string) (*history.RunDetail, error)
}

// Controller owns the single running batch.
type Controller struct {
	runner BatchRunner
	store  RunStore

	mu        sync.Mutex
	running   bool
	runID     uuid.UUID
	startedAt time.Time
	cancel    context.CancelFunc
	stopping  bool
	last      *batch.Report
	done      chan struct{}
}

func NewController(runner BatchRunner, store RunStore) *Controller {
	return &Controller{runner: runner, store: store}
}

// Start launches a batch for cfg in the background.
func (c *Controller) Start(cfg *config.Config) (uuid.UUID, error) {
	if err := cfg.Validate(); err != nil {
		return uuid.Nil, err
	}
	opts, err := batch.OptionsFromConfig(cfg)
	if err != nil {
		return uuid.Nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return uuid.Nil, ErrBusy
	}

	opts.RunID = uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	c.running = true
	c.stopping = false
	c.runID = opts.RunID
	c.startedAt = time.Now()
	c.cancel = cancel
	c.done = make(chan struct{})

	if c.store != nil {
		if err := c.store.Begin(ctx, opts.RunID.String(), opts.InputDir, opts.DryRun, c.startedAt); err != nil {
			log.Printf("⚠️ 履歴の記録に失敗: %v", err)
		}
	}

	go c.run(ctx, opts, cfg.Notify, c.done)
	return opts.RunID, nil
}

func (c *Controller) run(ctx context.Context, opts batch.Options, notifyDone bool, done chan struct{}) {
	defer close(done)

	rep := c.runner.Run(ctx, opts)

	if c.store != nil {
		if err := c.store.SaveReport(context.Background(), rep); err != nil {
			log.Printf("⚠️ 履歴の保存に失敗: %v", err)
		}
	}
	if notifyDone {
		notify.Report(rep)
	}

	c.mu.Lock()
	c.running = false
	c.last = rep
	c.cancel()
	c.cancel = nil
	c.mu.Unlock()
}

// Stop requests cancellation of the running batch. It reports whether a
// batch was running.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.cancel == nil {
		return false
	}
	c.stopping = true
	c.cancel()
	return true
}

// Wait blocks until the current batch, if any, has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Status is a snapshot of the controller.
type Status struct {
	State     batch.State   `json:"state"`
	RunID     string        `json:"runId,omitempty"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	Stopping  bool          `json:"stopping,omitempty"`
	Message   string        `json:"message"`
	Last      *batch.Report `json:"last,omitempty"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		started := c.startedAt
		msg := "▶ 処理中"
		if c.stopping {
			msg = "⏹ 停止要求済み (現在のセグメント完了後に停止します)"
		}
		return Status{
			State:     batch.StateRunning,
			RunID:     c.runID.String(),
			StartedAt: &started,
			Stopping:  c.stopping,
			Message:   msg,
			Last:      c.last,
		}
	}
	if c.last != nil {
		return Status{
			State:   c.last.State,
			RunID:   c.last.RunID.String(),
			Message: c.last.Status(),
			Last:    c.last,
		}
	}
	return Status{State: batch.StateIdle, Message: "待機中"}
}

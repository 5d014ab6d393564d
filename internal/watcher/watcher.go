package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/config"
)

// BatchRunner is satisfied by *batch.Runner.
type BatchRunner interface {
	Run(ctx context.Context, opts batch.Options) *batch.Report
}

type Watcher struct {
	Cfg    *config.Config
	Runner BatchRunner
	// OnReport is called after every batch, e.g. to store history.
	OnReport func(*batch.Report)
	// EventChan is optional: FileFoundEvent is sent for the TUI.
	EventChan chan<- interface{}
	// SettleDelay is how long a new file must stop growing before it is split.
	SettleDelay time.Duration

	mu         sync.Mutex
	processing map[string]bool
}

// FileFoundEvent is sent when a new video is queued.
type FileFoundEvent struct {
	Path string
	Name string
}

func New(cfg *config.Config, runner BatchRunner) *Watcher {
	return &Watcher{
		Cfg:         cfg,
		Runner:      runner,
		SettleDelay: 2 * time.Second,
		processing:  make(map[string]bool),
	}
}

// Run watches the input directory until ctx is cancelled. Each new video
// is split as its own batch; batches never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if w.Cfg.InputDir == "" {
		return fmt.Errorf("監視対象のディレクトリが設定されていません")
	}
	absDir, err := filepath.Abs(w.Cfg.InputDir)
	if err != nil {
		return fmt.Errorf("ディレクトリパスの解決に失敗: %w", err)
	}
	if err := fw.Add(absDir); err != nil {
		return fmt.Errorf("監視エラー: %s -> %w", absDir, err)
	}
	log.Printf("監視を開始しました: %s", absDir)

	queue := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx, queue)
	}()
	defer wg.Wait()
	defer close(queue)

	for {
		select {
		case <-ctx.Done():
			log.Println("監視を終了します")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event, queue)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Println("監視エラー:", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, queue chan<- string) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.shouldQueue(event.Name) {
		return
	}

	w.mu.Lock()
	if w.processing[event.Name] {
		w.mu.Unlock()
		log.Printf("すでに処理中です: %s", event.Name)
		return
	}
	w.processing[event.Name] = true
	w.mu.Unlock()

	log.Printf("新規ファイルを検知: %s", event.Name)
	if w.EventChan != nil {
		select {
		case w.EventChan <- FileFoundEvent{Path: event.Name, Name: filepath.Base(event.Name)}:
		default:
		}
	}

	select {
	case queue <- event.Name:
	case <-ctx.Done():
	}
}

func (w *Watcher) shouldQueue(path string) bool {
	fName := filepath.Base(path)
	if strings.HasPrefix(fName, ".") {
		return false
	}
	if !batch.IsVideo(fName) {
		return false
	}
	return batch.MatchKeywords(fName, w.Cfg.Keywords, w.Cfg.IgnoreKeywords)
}

func (w *Watcher) worker(ctx context.Context, queue <-chan string) {
	for path := range queue {
		if ctx.Err() == nil {
			w.process(ctx, path)
		}
		w.mu.Lock()
		delete(w.processing, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if !w.waitSettled(ctx, path) {
		return
	}

	opts, err := batch.OptionsFromConfig(w.Cfg)
	if err != nil {
		log.Printf("❌ 設定エラー: %v", err)
		return
	}
	opts.Files = []string{path}

	rep := w.Runner.Run(ctx, opts)
	if w.OnReport != nil {
		w.OnReport(rep)
	}
}

// waitSettled waits until the file size stops changing across SettleDelay.
func (w *Watcher) waitSettled(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("ファイルが見つかりません (削除または移動されました): %s", path)
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.SettleDelay):
		}
	}
}

package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/history"
)

func historyPath(c *config.Config) string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return config.DefaultHistoryDB()
}

// openHistory returns nil when the store cannot be opened; batches still run.
func openHistory(c *config.Config) *history.Store {
	path := historyPath(c)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("⚠️ 履歴ディレクトリを作成できません: %v", err)
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		log.Printf("⚠️ 履歴DBを開けません (履歴なしで続行します): %v", err)
		return nil
	}
	return store
}

// recordingRunner stores every batch it runs in the history database.
type recordingRunner struct {
	runner *batch.Runner
	store  *history.Store
}

func (r *recordingRunner) Run(ctx context.Context, opts batch.Options) *batch.Report {
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	if r.store == nil {
		return r.runner.Run(ctx, opts)
	}

	// History writes must outlive a cancelled batch.
	dbCtx := context.WithoutCancel(ctx)
	if err := r.store.Begin(dbCtx, opts.RunID.String(), opts.InputDir, opts.DryRun, r.runner.Now()); err != nil {
		log.Printf("⚠️ 履歴の記録に失敗: %v", err)
	}
	rep := r.runner.Run(ctx, opts)
	if err := r.store.SaveReport(dbCtx, rep); err != nil {
		log.Printf("⚠️ 履歴の保存に失敗: %v", err)
	}
	return rep
}

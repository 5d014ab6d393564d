package cmd

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/logger"
	"github.com/mt4110/vsplit/internal/notify"
	"github.com/mt4110/vsplit/internal/tui"
	"github.com/mt4110/vsplit/internal/watcher"
)

var flagTUIWatch bool

var tuiCmd = &cobra.Command{
	Use:   "tui [inputDir]",
	Short: "TUIで進捗を見ながら分割します (Interactive)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Mute stdout logging to prevent TUI corruption
		logger.MuteStdout()

		store := openHistory(cfg)
		if store != nil {
			defer store.Close()
		}

		eventChan := make(chan interface{}, 100)
		br := batch.New(nil)
		br.Events = eventChan
		runner := &recordingRunner{runner: br, store: store}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		if flagTUIWatch {
			w := watcher.New(cfg, runner)
			w.EventChan = eventChan
			go func() {
				defer wg.Done()
				if err := w.Run(ctx); err != nil {
					select {
					case eventChan <- batch.FileFailedEvent{Path: cfg.InputDir, Err: err}:
					default:
					}
				}
			}()
		} else {
			opts, err := batch.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			go func() {
				defer wg.Done()
				rep := runner.Run(ctx, opts)
				if cfg.Notify {
					notify.Report(rep)
				}
			}()
		}

		m := tui.NewModel(cfg, eventChan, cancel)
		p := tea.NewProgram(m, tea.WithAltScreen())
		_, err := p.Run()

		// The segment in flight finishes before the batch returns.
		cancel()
		wg.Wait()
		if err != nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	},
}

func init() {
	tuiCmd.Flags().BoolVarP(&flagTUIWatch, "watch", "w", false, "入力ディレクトリを監視して新しい動画を自動分割する")
	rootCmd.AddCommand(tuiCmd)
}

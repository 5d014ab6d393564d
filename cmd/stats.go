package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/history"
)

var flagStatsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "分割統計を表示します",
	Long:  `過去の実行履歴(SQLite)を集計し、書き出したセグメント数や合計サイズ、最近の実行を表示します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyPath(cfg)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Println("まだ実行履歴がありません。")
			return nil
		}

		store, err := history.Open(path)
		if err != nil {
			return fmt.Errorf("履歴DBを開けませんでした: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		totals, err := store.Totals(ctx)
		if err != nil {
			return err
		}
		runs, err := store.ListRuns(ctx, flagStatsLimit)
		if err != nil {
			return err
		}

		const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
		fmt.Println(separator)
		fmt.Printf("📊 vsplit 統計レポート\n")
		fmt.Println(separator)
		fmt.Printf("実行回数:       %d 回 (完了 %d / 停止 %d / エラー %d)\n", totals.Runs, totals.Completed, totals.Stopped, totals.Failed)
		fmt.Printf("総セグメント数: %d 本\n", totals.Segments)
		fmt.Printf("合計サイズ:     %s\n", formatBytes(totals.Bytes))
		if totals.Segments > 0 {
			fmt.Printf("平均サイズ:     %s/本\n", formatBytes(totals.Bytes/int64(totals.Segments)))
		}
		fmt.Println(separator)

		if len(runs) > 0 {
			fmt.Println("最近の実行:")
			for _, r := range runs {
				fmt.Println("  " + formatRun(r))
			}
		}
		return nil
	},
}

func formatRun(r history.Run) string {
	line := fmt.Sprintf("%s  %-9s %3d files %4d segs  %s",
		r.StartedAt.Local().Format("2006-01-02 15:04"), r.State, r.TotalFiles, r.Segments, r.InputDir)
	if r.DryRun {
		line += " (dry-run)"
	}
	if r.Failed > 0 {
		line += fmt.Sprintf(" ❌%d", r.Failed)
	}
	return line
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	statsCmd.Flags().IntVarP(&flagStatsLimit, "limit", "n", 10, "表示する最近の実行数")
	rootCmd.AddCommand(statsCmd)
}

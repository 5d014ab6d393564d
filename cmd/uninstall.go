package cmd

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/config"
)

var flagPurge bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "初期セットアップの設定を削除します",
	Long:  `設定ファイルを削除します。--purge を付けると実行履歴DBも削除します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}

		targets := []string{path}
		if flagPurge {
			db := historyPath(cfg)
			targets = append(targets, db, db+"-wal", db+"-shm")
		}

		for _, p := range targets {
			if err := os.Remove(p); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return err
			}
			log.Printf("✅ 削除しました: %s", p)
		}

		log.Println("アンインストール完了 (ログファイルと出力ディレクトリ、vsplitバイナリ自体は残っています)")
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&flagPurge, "purge", false, "実行履歴DBも削除する")
	rootCmd.AddCommand(uninstallCmd)
}

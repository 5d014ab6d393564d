package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/config"
)

var flagInitForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "初期セットアップを行います",
	Long:  `デフォルト設定の設定ファイル (~/.config/vsplit/config.yaml) を作成します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return fmt.Errorf("ホームディレクトリの取得に失敗: %w", err)
		}

		if _, err := os.Stat(path); err == nil && !flagInitForce {
			log.Printf("ℹ️ 設定ファイルは既に存在します: %s (上書きするには --force)", path)
			return nil
		}

		// Start from defaults, not from flags or an existing file.
		def := config.NewDefault()
		def.InputDir = ""
		def.OutputDir = ""
		def.Profiles = map[string]config.Profile{
			"vertical-1080": {
				FrameRate:  "30",
				Resolution: "1080x1920",
				Codec:      "h264",
				Container:  "mp4",
			},
		}
		if err := config.Save(def, path); err != nil {
			return err
		}
		log.Printf("✅ 設定ファイルを作成: %s", path)
		log.Println("   inputDir / outputDir を設定するか、`vsplit <inputDir>` で指定してください。")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "既存の設定ファイルを上書きする")
	rootCmd.AddCommand(initCmd)
}

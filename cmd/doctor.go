package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/ffmpeg"
	"github.com/mt4110/vsplit/internal/logger"
	"github.com/mt4110/vsplit/internal/updater"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "環境の診断を行います",
	Long:  `ffmpeg/ffprobe の有無、ハードウェアエンコーダの対応状況、ログ・履歴ディレクトリの書き込み権限などをチェックします。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Println("🏥 環境診断を開始します...")
		hasError := false
		ctx := context.Background()
		runner := ffmpeg.ExecRunner{}

		// 1. ffmpeg / ffprobe
		tools, err := ffmpeg.Locate(cfg.FFmpegDir)
		if err != nil {
			log.Printf("❌ %v", err)
			log.Println("   `brew install ffmpeg` または `apt install ffmpeg` を実行するか、--ffmpeg-dir を指定してください。")
			hasError = true
		} else {
			log.Printf("✅ ffmpeg found: %s", tools.FFmpeg)
			log.Printf("✅ ffprobe found: %s", tools.FFprobe)
			if res, err := runner.Run(ctx, tools.FFmpeg, []string{"-hide_banner", "-version"}); err == nil {
				firstLine, _, _ := strings.Cut(string(res.Stdout), "\n")
				log.Printf("   Version: %s", firstLine)
			}

			// 2. Hardware encoders for the configured codec
			codec := cfg.Codec
			for _, kind := range encoding.HWAccelKinds {
				name, ok := encoding.HardwareEncoder(codec, kind)
				if !ok {
					continue
				}
				if ffmpeg.HasEncoder(ctx, runner, tools.FFmpeg, name) {
					log.Printf("✅ HWエンコーダ利用可: %s", name)
				} else {
					log.Printf("ℹ️ HWエンコーダなし: %s", name)
				}
			}
			updater.CheckFFmpeg(tools.FFmpeg)
		}

		// 3. Notifier
		if path, err := exec.LookPath("terminal-notifier"); err == nil {
			log.Printf("✅ terminal-notifier found: %s", path)
		} else if path, err := exec.LookPath("notify-send"); err == nil {
			log.Printf("✅ notify-send found: %s", path)
		} else {
			log.Println("⚠️ 通知コマンドが見つかりません。--notify は osascript のみで動作します (macOS)。")
		}

		// 4. Log and history directories
		logPath := cfg.LogFile
		if logPath == "" {
			logPath = logger.DefaultPath()
		}
		for _, dir := range []string{filepath.Dir(logPath), filepath.Dir(historyPath(cfg))} {
			if err := checkWritable(dir); err != nil {
				log.Printf("❌ %s に書き込めません: %v", dir, err)
				hasError = true
			} else {
				log.Printf("✅ 書き込み権限 OK: %s", dir)
			}
		}

		// 5. Input directory
		if info, err := os.Stat(cfg.InputDir); err != nil || !info.IsDir() {
			log.Printf("⚠️ 入力ディレクトリが見つかりません: %s", cfg.InputDir)
		} else {
			log.Printf("✅ 入力ディレクトリ: %s", cfg.InputDir)
		}

		if hasError {
			log.Println("\n❌ いくつかの問題が見つかりました。修正してください。")
			return errors.New("doctor found problems")
		}
		log.Println("\n✅ 診断完了: 概ね問題なさそうです！")
		return nil
	},
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".vsplit-write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

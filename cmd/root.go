package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/logger"
	"github.com/mt4110/vsplit/internal/notify"
	"github.com/mt4110/vsplit/internal/updater"
	"github.com/mt4110/vsplit/internal/watcher"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vsplit [inputDir]",
	Short: "フォルダ内の動画を一定秒数ごとのセグメントに一括分割します。",
	Long: `ffmpeg/ffprobe を使って、入力フォルダ内の動画 (mp4/mov/avi/mkv) を指定秒数ごとに分割し、
output_YYYYMMDD_HHMMSS フォルダへ書き出すCLIツール。監視モード・HTTP API・TUI にも対応。`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := config.Load()
		if err != nil {
			log.Printf("設定ファイルの読み込みに失敗しました (デフォルト値を使用します): %v", err)
			loadedCfg = config.NewDefault()
		}
		cfg = loadedCfg

		if err := updateConfigFromFlags(cmd, cfg, args); err != nil {
			return err
		}

		logger.Setup(cfg.LogFile)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openHistory(cfg)
		if store != nil {
			defer store.Close()
		}
		runner := &recordingRunner{runner: batch.New(nil), store: store}

		if flagWatch {
			updater.CheckFFmpeg("")
			w := watcher.New(cfg, runner)
			if cfg.Notify {
				w.OnReport = notify.Report
			}
			log.Println("👀 監視モードを開始しました (Ctrl+C で終了)")
			return w.Run(ctx)
		}

		opts, err := batch.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		rep := runner.Run(ctx, opts)
		if cfg.Notify {
			notify.Report(rep)
		}
		if rep.State == batch.StateFailed {
			return rep.Err()
		}
		return nil
	},
	SilenceUsage: true,
}

// Flag variables; copied into cfg only when the flag was given.
var (
	flagOutput              string
	flagChunk               int
	flagSegmenter           string
	flagUseOriginal         bool
	flagFrameRate           string
	flagCustomFrameRate     string
	flagResolution          string
	flagCustomResolution    string
	flagVertical            bool
	flagCodec               string
	flagQuality             string
	flagCRF                 int
	flagBitrate             string
	flagContainer           string
	flagAudio               bool
	flagAudioCodec          string
	flagAudioBitrate        string
	flagHWAccel             bool
	flagHWAccelKind         string
	flagCaption             string
	flagFFmpegDir           string
	flagOnError             string
	flagStopBetweenSegments bool
	flagRecursive           bool
	flagKeywords            []string
	flagIgnoreKeywords      []string
	flagDryRun              bool
	flagNotify              bool
	flagProfile             string
	flagLogFile             string
	flagHistoryDB           string
	flagWatch               bool
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagOutput, "output", "o", "", "出力先の親ディレクトリ (この中に output_YYYYMMDD_HHMMSS を作成)")
	pf.IntVarP(&flagChunk, "chunk", "c", 0, "セグメントの長さ (秒, 1以上の整数)")
	pf.StringVar(&flagSegmenter, "segmenter", "", "分割方式: manual (区間ごとにffmpeg) / native (segment muxer)")
	pf.BoolVar(&flagUseOriginal, "use-original", true, "元動画のフレームレート・解像度をそのまま使う")
	pf.StringVar(&flagFrameRate, "frame-rate", "", "フレームレート (例: 30 / 29.97 / custom)")
	pf.StringVar(&flagCustomFrameRate, "custom-frame-rate", "", "カスタムフレームレート (例: 29.97)")
	pf.StringVar(&flagResolution, "resolution", "", "解像度 (例: 1920x1080 / custom)")
	pf.StringVar(&flagCustomResolution, "custom-resolution", "", "カスタム解像度 (WxH)")
	pf.BoolVar(&flagVertical, "vertical", false, "縦向き (幅と高さを入れ替える)")
	pf.StringVar(&flagCodec, "codec", "", "映像コーデック (h264/hevc/vp9/av1)")
	pf.StringVar(&flagQuality, "quality", "", "品質指定: crf / bitrate")
	pf.IntVar(&flagCRF, "crf", 0, "CRF値 (0-51)")
	pf.StringVar(&flagBitrate, "bitrate", "", "映像ビットレート (例: 20000k)")
	pf.StringVar(&flagContainer, "container", "", "出力コンテナ (mp4/mkv/mov)")
	pf.BoolVar(&flagAudio, "audio", true, "音声を含める")
	pf.StringVar(&flagAudioCodec, "audio-codec", "", "音声コーデック (copy/aac/opus)")
	pf.StringVar(&flagAudioBitrate, "audio-bitrate", "", "音声ビットレート (例: 128k)")
	pf.BoolVar(&flagHWAccel, "hwaccel", false, "ハードウェアエンコーダを使う")
	pf.StringVar(&flagHWAccelKind, "hwaccel-kind", "", "ハードウェアの種類 (cuda/videotoolbox/qsv)")
	pf.StringVar(&flagCaption, "caption", "", "各セグメントの横に書き出すキャプション")
	pf.StringVar(&flagFFmpegDir, "ffmpeg-dir", "", "ffmpeg/ffprobe のあるディレクトリ (未指定ならPATH)")
	pf.StringVar(&flagOnError, "on-error", "", "ファイル失敗時の動作: abort / skip")
	pf.BoolVar(&flagStopBetweenSegments, "stop-between-segments", false, "停止要求をセグメント単位で反映する")
	pf.BoolVarP(&flagRecursive, "recursive", "r", false, "サブディレクトリも探索する")
	pf.StringSliceVar(&flagKeywords, "keywords", []string{}, "ファイル名に含まれるキーワードでフィルタ")
	pf.StringSliceVar(&flagIgnoreKeywords, "ignore-keywords", []string{}, "ファイル名に含まれるキーワードを除外")
	pf.BoolVar(&flagDryRun, "dry-run", false, "実行せずにコマンドを表示する")
	pf.BoolVar(&flagNotify, "notify", false, "完了時にデスクトップ通知を送る")
	pf.StringVar(&flagProfile, "profile", "", "使用するプロファイル名")
	pf.StringVar(&flagLogFile, "log-file", "", "ログファイルのパス")
	pf.StringVar(&flagHistoryDB, "history-db", "", "実行履歴 (SQLite) のパス")
	rootCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "入力ディレクトリを監視して新しい動画を自動分割する")
}

func updateConfigFromFlags(cmd *cobra.Command, c *config.Config, args []string) error {
	flags := cmd.Flags()

	// Profile first so explicit flags win over it.
	if flags.Changed("profile") {
		if err := c.ApplyProfile(flagProfile); err != nil {
			return err
		}
		log.Printf("ℹ️ プロファイル '%s' を適用しました (codec: %s, container: %s)", flagProfile, c.Codec, c.Container)
	}

	if len(args) > 0 {
		defaultOut := config.NewDefault().OutputDir
		c.InputDir = expandHome(args[0])
		// Without an explicit output, write next to the input.
		if !flags.Changed("output") && c.OutputDir == defaultOut {
			c.OutputDir = c.InputDir
		}
	}
	if flags.Changed("output") {
		c.OutputDir = expandHome(flagOutput)
	}
	if flags.Changed("chunk") {
		c.ChunkDuration = flagChunk
	}
	if flags.Changed("segmenter") {
		c.Segmenter = flagSegmenter
	}
	if flags.Changed("use-original") {
		c.UseOriginal = flagUseOriginal
	}
	if flags.Changed("frame-rate") {
		c.FrameRate = flagFrameRate
	}
	if flags.Changed("custom-frame-rate") {
		c.CustomFrameRate = flagCustomFrameRate
	}
	if flags.Changed("resolution") {
		c.Resolution = flagResolution
	}
	if flags.Changed("custom-resolution") {
		c.CustomResolution = flagCustomResolution
	}
	if flags.Changed("vertical") {
		c.Vertical = flagVertical
	}
	if flags.Changed("codec") {
		c.Codec = flagCodec
	}
	if flags.Changed("quality") {
		c.Quality = flagQuality
	}
	if flags.Changed("crf") {
		c.CRF = flagCRF
	}
	if flags.Changed("bitrate") {
		c.Bitrate = flagBitrate
	}
	if flags.Changed("container") {
		c.Container = flagContainer
	}
	if flags.Changed("audio") {
		c.IncludeAudio = flagAudio
	}
	if flags.Changed("audio-codec") {
		c.AudioCodec = flagAudioCodec
	}
	if flags.Changed("audio-bitrate") {
		c.AudioBitrate = flagAudioBitrate
	}
	if flags.Changed("hwaccel") {
		c.HWAccel = flagHWAccel
	}
	if flags.Changed("hwaccel-kind") {
		c.HWAccelKind = flagHWAccelKind
	}
	if flags.Changed("caption") {
		c.Caption = flagCaption
	}
	if flags.Changed("ffmpeg-dir") {
		c.FFmpegDir = expandHome(flagFFmpegDir)
	}
	if flags.Changed("on-error") {
		c.OnError = flagOnError
	}
	if flags.Changed("stop-between-segments") {
		c.StopBetweenSegments = flagStopBetweenSegments
	}
	if flags.Changed("recursive") {
		c.Recursive = flagRecursive
	}
	if flags.Changed("keywords") {
		c.Keywords = flagKeywords
	}
	if flags.Changed("ignore-keywords") {
		c.IgnoreKeywords = flagIgnoreKeywords
	}
	if flags.Changed("dry-run") {
		c.DryRun = flagDryRun
	}
	if flags.Changed("notify") {
		c.Notify = flagNotify
	}
	if flags.Changed("log-file") {
		c.LogFile = expandHome(flagLogFile)
	}
	if flags.Changed("history-db") {
		c.HistoryDB = expandHome(flagHistoryDB)
	}
	return nil
}

func expandHome(p string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

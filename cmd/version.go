package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/ffmpeg"
)

var (
	// ldflags will set these
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type buildInfo struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

// resolveBuildInfo fills values not set by ldflags from the module and VCS
// stamps of a `go install` build.
func resolveBuildInfo(info *debug.BuildInfo, ok bool) buildInfo {
	b := buildInfo{Version: version, Commit: commit, Date: date}
	if !ok || info == nil {
		return b
	}
	b.Go = info.GoVersion
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "none" {
				b.Commit = s.Value
				if len(b.Commit) > 12 {
					b.Commit = b.Commit[:12]
				}
			}
		case "vcs.time":
			if b.Date == "unknown" {
				b.Date = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" && b.Commit != "none" {
				b.Commit += "-dirty"
			}
		}
	}
	return b
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "バージョン情報を表示します",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		b := resolveBuildInfo(debug.ReadBuildInfo())
		fmt.Printf("vsplit %s\n", b.Version)
		fmt.Printf("Commit: %s\n", b.Commit)
		fmt.Printf("Date:   %s\n", b.Date)
		if b.Go != "" {
			fmt.Printf("Go:     %s\n", b.Go)
		}

		if tools, err := ffmpeg.Locate(cfg.FFmpegDir); err == nil {
			fmt.Printf("ffmpeg: %s\n", tools.FFmpeg)
		} else {
			fmt.Println("ffmpeg: 見つかりません (vsplit doctor で確認してください)")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

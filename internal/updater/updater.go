package updater

import (
	"log"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckFFmpeg suggests an upgrade when ffmpegBin was installed by Homebrew
// and brew reports a newer version. Nothing is installed automatically.
func CheckFFmpeg(ffmpegBin string) {
	if ffmpegBin == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			log.Println("⚠️ ffmpeg が見つかりません。インストールを推奨します: `brew install ffmpeg` または `apt install ffmpeg`")
			return
		}
		ffmpegBin = p
	}

	if !isHomebrew(ffmpegBin) {
		return
	}
	if _, err := exec.LookPath("brew"); err != nil {
		return
	}

	output, err := exec.Command("brew", "outdated", "ffmpeg").CombinedOutput()
	if outdated(output, err) {
		log.Println("ℹ️ ffmpeg のアップデートが可能です。自動更新は設定されていませんが、以下で更新できます:")
		log.Println("   brew upgrade ffmpeg")
	}
}

func isHomebrew(bin string) bool {
	resolved, err := filepath.EvalSymlinks(bin)
	if err != nil {
		resolved = bin
	}
	return strings.Contains(resolved, "/Cellar/") ||
		strings.HasPrefix(resolved, "/opt/homebrew/") ||
		strings.HasPrefix(bin, "/opt/homebrew/") ||
		strings.HasPrefix(bin, "/usr/local/bin/")
}

func outdated(output []byte, err error) bool {
	return err == nil && len(output) > 0 && strings.Contains(string(output), "ffmpeg")
}

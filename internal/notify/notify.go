// Package notify shows desktop notifications when a batch ends.
package notify

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/mt4110/vsplit/internal/batch"
)

// Send shows a desktop notification. filePath, when set, is opened on click
// where the notifier supports it. Failures are ignored.
func Send(title, message, filePath string) {
	name, args := command(runtime.GOOS, title, message, filePath, lookPath)
	if name == "" {
		return
	}
	exec.Command(name, args...).Run()
}

func lookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// command picks the notifier for goos. has reports whether a binary exists.
func command(goos, title, message, filePath string, has func(string) bool) (string, []string) {
	switch goos {
	case "darwin":
		if has("terminal-notifier") {
			args := []string{"-title", title, "-message", message, "-sound", "default"}
			if filePath != "" {
				u := url.URL{Scheme: "file", Path: filePath}
				args = append(args, "-open", u.String())
			}
			return "terminal-notifier", args
		}
		script := fmt.Sprintf(`display notification %q with title %q sound name "default"`, message, title)
		return "osascript", []string{"-e", script}
	case "linux":
		if has("notify-send") {
			return "notify-send", []string{"--app-name=vsplit", title, message}
		}
	}
	return "", nil
}

// Report notifies the outcome of a finished batch.
func Report(rep *batch.Report) {
	title, message := summary(rep)
	Send(title, message, rep.OutputDir)
}

func summary(rep *batch.Report) (string, string) {
	switch rep.State {
	case batch.StateCompleted:
		return "分割完了", fmt.Sprintf("%d ファイルから %d セグメントを書き出しました。", len(rep.Files), rep.Segments())
	case batch.StateStopped:
		return "分割停止", fmt.Sprintf("%d/%d ファイルで停止しました。", len(rep.Files), rep.Total)
	default:
		return "分割失敗", rep.Message
	}
}

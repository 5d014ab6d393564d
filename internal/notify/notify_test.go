package notify

import (
	"slices"
	"strings"
	"testing"

	"github.com/mt4110/vsplit/internal/batch"
)

func TestCommand(t *testing.T) {
	none := func(string) bool { return false }
	all := func(string) bool { return true }

	tests := []struct {
		name     string
		goos     string
		has      func(string) bool
		wantBin  string
		wantArgs []string
	}{
		{"mac terminal-notifier", "darwin", all, "terminal-notifier", []string{"-open", "file:///out/x"}},
		{"mac fallback", "darwin", none, "osascript", []string{"-e"}},
		{"linux notify-send", "linux", all, "notify-send", []string{"--app-name=vsplit"}},
		{"linux without notifier", "linux", none, "", nil},
		{"windows", "windows", all, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, args := command(tt.goos, "title", "msg", "/out/x", tt.has)
			if bin != tt.wantBin {
				t.Fatalf("bin = %q, want %q", bin, tt.wantBin)
			}
			for _, a := range tt.wantArgs {
				if !slices.Contains(args, a) {
					t.Errorf("args %v missing %q", args, a)
				}
			}
		})
	}
}

func TestCommand_QuotesAppleScript(t *testing.T) {
	_, args := command("darwin", `say "hi"`, `a "quoted" name`, "", func(string) bool { return false })
	if !strings.Contains(args[1], `\"quoted\"`) {
		t.Errorf("script not escaped: %s", args[1])
	}
}

func TestSummary(t *testing.T) {
	rep := &batch.Report{
		State: batch.StateCompleted,
		Files: []batch.FileReport{{Artifacts: []batch.Artifact{{Path: "a"}, {Path: "b"}}}},
	}
	title, msg := summary(rep)
	if title != "分割完了" || !strings.Contains(msg, "2 セグメント") {
		t.Errorf("summary = %q, %q", title, msg)
	}

	rep = &batch.Report{State: batch.StateFailed, Message: "boom"}
	if title, msg := summary(rep); title != "分割失敗" || msg != "boom" {
		t.Errorf("summary = %q, %q", title, msg)
	}
}

package cmd

import (
	"runtime/debug"
	"testing"
)

func TestResolveBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.25.3",
		Main:      debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	b := resolveBuildInfo(info, true)
	if b.Version != "v0.3.1" || b.Commit != "0123456789ab-dirty" || b.Date != "2026-10-01T12:00:00Z" || b.Go != "go1.25.3" {
		t.Errorf("build info = %+v", b)
	}

	// Without build info the ldflags defaults stay.
	if b := resolveBuildInfo(nil, false); b.Version != "dev" || b.Commit != "none" || b.Date != "unknown" {
		t.Errorf("defaults = %+v", b)
	}

	// Local builds report (devel), which is not a version.
	info.Main.Version = "(devel)"
	if b := resolveBuildInfo(info, true); b.Version != "dev" {
		t.Errorf("devel version = %s", b.Version)
	}
}

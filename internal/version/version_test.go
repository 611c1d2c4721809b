package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	vcs := func(settings ...string) *debug.BuildInfo {
		info := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
		for i := 0; i+1 < len(settings); i += 2 {
			info.Settings = append(info.Settings, debug.BuildSetting{Key: settings[i], Value: settings[i+1]})
		}
		return info
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		info        *debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "ldflags win",
			version:     "v1.2.3",
			commit:      "abc1234",
			info:        vcs("vcs.revision", "ffffffffffffffff"),
			wantVersion: "v1.2.3",
			wantCommit:  "abc1234",
		},
		{
			name:        "go install version",
			info:        &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}},
			wantVersion: "v0.4.0",
			wantCommit:  "unknown",
		},
		{
			name:        "vcs info",
			info:        vcs("vcs.revision", "0123456789abcdef", "vcs.time", "2026-02-01T10:00:00Z"),
			wantVersion: "dev-20260201",
			wantCommit:  "0123456",
		},
		{
			name:        "dirty tree",
			info:        vcs("vcs.revision", "0123456789abcdef", "vcs.modified", "true"),
			wantVersion: "dev-20260314-150926",
			wantCommit:  "0123456-dirty",
		},
		{
			name:        "no build info",
			wantVersion: "dev-20260314-150926",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotVersion, gotCommit := resolve(tt.version, tt.commit, tt.info, now)
			if gotVersion != tt.wantVersion {
				t.Errorf("version = %q, want %q", gotVersion, tt.wantVersion)
			}
			if gotCommit != tt.wantCommit {
				t.Errorf("commit = %q, want %q", gotCommit, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	Version, Commit = "v1.0.0", "abc1234"
	if got := Full(); got != "v1.0.0 (commit: abc1234)" {
		t.Errorf("Full() = %q", got)
	}
}

// Package version reports the esptrace build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/esptrace/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/esptrace/internal/version.Commit=abc123"
//
// If not set, they are taken from the module and VCS build info, falling
// back to "dev" with a timestamp.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	info, _ := debug.ReadBuildInfo()
	Version, Commit = resolve(Version, Commit, info, time.Now())
}

// resolve fills in whichever of version and commit is empty.
func resolve(version, commit string, info *debug.BuildInfo, now time.Time) (string, string) {
	if info != nil {
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			// Set by go install module@version
			version = info.Main.Version
		}

		var revision, modified, vcsTime string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			case "vcs.time":
				vcsTime = setting.Value
			}
		}

		if commit == "" && revision != "" {
			commit = revision
			if len(commit) > 7 {
				commit = commit[:7]
			}
			if modified == "true" {
				commit += "-dirty"
			}
		}

		if version == "" && vcsTime != "" {
			if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
				version = "dev-" + t.Format("20060102")
			}
		}
	}

	if version == "" {
		version = "dev-" + now.Format("20060102-150405")
	}
	if commit == "" {
		commit = "unknown"
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Platform returns the Go version and target platform
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

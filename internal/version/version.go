// Package version reports build information for skyplayer.
//
// Version, Commit and Date are set with ldflags, for example:
//
//	go build -ldflags "-X github.com/jmylchreest/skyplayer/internal/version.Version=0.3.0 \
//	                   -X github.com/jmylchreest/skyplayer/internal/version.Commit=$(git rev-parse HEAD)"
//
// When they are left unset, the VCS stamp embedded by the Go toolchain is
// used instead.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Build-time variables.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "skyplayer"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

var (
	vcsOnce sync.Once
	vcs     struct {
		revision string
		time     string
		modified bool
	}
)

func readVCS() {
	vcsOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				vcs.revision = s.Value
			case "vcs.time":
				vcs.time = s.Value
			case "vcs.modified":
				vcs.modified = s.Value == "true"
			}
		}
	})
}

// GetInfo returns the build information, preferring ldflags values.
func GetInfo() Info {
	readVCS()
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == "unknown" && vcs.revision != "" {
		info.Commit = vcs.revision
		info.Modified = vcs.modified
	}
	if info.Date == "unknown" && vcs.time != "" {
		info.Date = vcs.time
	}
	return info
}

func shortCommit(commit string) string {
	if len(commit) >= 8 && commit != "unknown" {
		return commit[:8]
	}
	return ""
}

// String returns a human-readable version line.
func String() string {
	info := GetInfo()
	if c := shortCommit(info.Commit); c != "" {
		if info.Modified {
			c += "-dirty"
		}
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, c, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the version and short commit for --version output.
func Short() string {
	if c := shortCommit(GetInfo().Commit); c != "" {
		return fmt.Sprintf("%s (%s)", Version, c)
	}
	return Version
}

// UserAgent returns the default User-Agent for playlist requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", ApplicationName, strings.TrimPrefix(Version, "v"), runtime.GOOS)
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}

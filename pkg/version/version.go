// Package version reports which catindex build is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/Aman-CERP/catindex/pkg/version.Version=v1.2.3"
// (likewise Commit and Date). Builds without ldflags fall back to the
// module and VCS stamps recorded by the Go toolchain.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is the JSON shape of `catindex version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	VCS       string `json:"vcs,omitempty"`
	Module    string `json:"module,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

var (
	resolveOnce sync.Once
	resolved    BuildInfo
)

// GetInfo returns the running build's information.
func GetInfo() BuildInfo {
	resolveOnce.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		resolved = resolve(Version, Commit, Date, bi)
	})
	return resolved
}

// Short returns the version alone.
func Short() string {
	return GetInfo().Version
}

// String returns the one-line banner printed by `catindex version`.
func String() string {
	info := GetInfo()
	commit := info.Commit
	if info.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("catindex %s (commit: %s, built: %s, go: %s)",
		info.Version, commit, info.Date, info.GoVersion)
}

// resolve prefers ldflags values and fills the gaps from toolchain stamps.
func resolve(version, commit, date string, bi *debug.BuildInfo) BuildInfo {
	info := BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi == nil {
		return info
	}
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs":
			info.VCS = s.Value
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

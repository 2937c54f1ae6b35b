package web

import "sync"

// BuildInfo identifies the running binary on /api/status and the event feed.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

var (
	buildMu sync.RWMutex
	build   = BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
)

// SetVersionInfo records the linker-provided build stamps. Empty values
// keep the defaults.
func SetVersionInfo(version, commit, buildTime string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	if version != "" {
		build.Version = version
	}
	if commit != "" {
		build.Commit = commit
	}
	if buildTime != "" {
		build.BuildTime = buildTime
	}
}

// Build returns the recorded build stamps.
func Build() BuildInfo {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return build
}

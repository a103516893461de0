// Package version holds build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolved returns Version, or the module version recorded by `go install` for dev builds.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	return moduleVersion(debug.ReadBuildInfo())
}

func moduleVersion(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}
	return info.Main.Version
}

// String is the one-line build description printed by `crag version`.
func String() string {
	return fmt.Sprintf("crag %s (commit %s, built %s)", Resolved(), Commit, Date)
}

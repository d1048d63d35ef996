// Package version holds build metadata, set with
//
//	-ldflags "-X github.com/MrSnakeDoc/sortmark/internal/version.Version=v0.1.0 -X ...Commit=abcd123"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String describes the running build in one line.
func String() string {
	return fmt.Sprintf("sortmark %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}

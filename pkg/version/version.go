// Package version exposes build information for osmreach.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/NERVsystems/osmreach/pkg/version.BuildVersion=..."
var (
	BuildVersion = "0.1.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Info returns build information as string labels
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String returns a human readable version line
func String() string {
	return fmt.Sprintf("osmreach %s (commit %s, built %s, %s)",
		BuildVersion, BuildCommit, BuildDate, runtime.Version())
}

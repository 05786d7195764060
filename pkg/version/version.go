// Package version holds build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build metadata. Overridden at link time, for example:
//
//	go build -ldflags "-X github.com/NERVsystems/ecoroute/pkg/version.BuildVersion=1.2.0"
var (
	BuildVersion = "0.1.0"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// String returns a human readable version line.
func String() string {
	return fmt.Sprintf("ecoroute %s (commit %s, built %s, %s)", BuildVersion, BuildCommit, BuildDate, runtime.Version())
}

// Info returns version metadata for health and version endpoints.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

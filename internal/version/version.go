// Package version reports build information set via -ldflags:
//
//	go build -ldflags "-X github.com/HerbHall/mobchat/internal/version.Version=v0.1.0"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns the version string.
func Short() string { return Version }

// Map returns build information for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
		"go":      runtime.Version(),
	}
}

// Info returns a one-line human readable description.
func Info() string {
	return fmt.Sprintf("mobchat %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

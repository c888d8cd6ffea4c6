// Package version exposes the tool version embedded from the VERSION file
// at compile time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionRaw string

// Version is the current tool version, trimmed of whitespace.
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}

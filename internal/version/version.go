// Package version exposes the build version embedded from the VERSION file.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the release version, e.g. "0.1.0".
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Info returns the version with the Go toolchain and platform, as printed
// by the version command.
func Info() string {
	return fmt.Sprintf("%s (%s %s/%s)", Get(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

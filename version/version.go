// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/ChristianF88/pradix/version.Version=...".
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

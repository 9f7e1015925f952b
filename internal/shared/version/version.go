// Package version holds build metadata, overridable with
// -ldflags "-X guardrail/internal/shared/version.Version=v1.2.3".
package version

var (
	Version = "dev"
	Commit  = "none"
)

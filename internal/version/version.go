// Package version provides build-time version information.
package version

// version is set at build time via -ldflags.
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// commit is the short VCS revision, set at build time via -ldflags.
var commit = "" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the current version, with the commit appended when known.
func String() string {
	if commit == "" {
		return version
	}
	return version + " (" + commit + ")"
}

// Package buildinfo carries release identity stamped in at link time:
//
//	-X 'github.com/busly/routafare/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/busly/routafare/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/busly/routafare/core/buildinfo.Date=2026-08-21T12:00:00Z'
//
// The zero values identify a local development build.
package buildinfo

var (
	// Version is the release tag of the running binary.
	Version = "dev"
	// Commit is the short VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp in RFC3339 form.
	Date = ""
)

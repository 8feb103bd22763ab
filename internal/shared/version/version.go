// Package version identifies the running build. The variables are meant to be
// set at link time:
//
//	go build -ldflags "-X modmail/internal/shared/version.Version=v1.2.3"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = ""
)

// String returns the human-readable build identifier.
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

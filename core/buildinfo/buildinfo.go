package buildinfo

import "fmt"

// Set at build time:
//
//	-X 'github.com/m3rciful/guidebot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/guidebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/guidebot/core/buildinfo.Date=2025-08-30T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders the build identity for the version command.
func String() string {
	if Date == "" {
		return fmt.Sprintf("guidebot %s (%s)", Version, Commit)
	}
	return fmt.Sprintf("guidebot %s (%s, built %s)", Version, Commit, Date)
}

// Package version describes the running build.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Set by main from linker flags.
var (
	BuildDate    = "unknown"
	BuildVersion = "0.0.0"
	Commit       = "unknown"
)

// Short returns major.minor.patch of the build version, or 0.0.0 for
// builds without a semantic version.
func Short() string {
	v, err := semver.NewVersion(BuildVersion)
	if err != nil {
		return "0.0.0"
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

func Summary() string {
	return fmt.Sprintf("mdedit %s (%s) on %s", BuildVersion, Commit, BuildDate)
}

package main

import (
	"fmt"
	"os"

	"github.com/stateful/mdedit/internal/cmd"
	"github.com/stateful/mdedit/internal/version"
)

// These are variables so that they can be set during the build time.
var (
	BuildDate    = "unknown"
	BuildVersion = "0.0.0"
	Commit       = "unknown"
)

func root() int {
	version.BuildDate, version.BuildVersion, version.Commit = BuildDate, BuildVersion, Commit

	root := cmd.Root()
	root.Version = version.Summary()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(root())
}

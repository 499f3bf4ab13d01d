package pkg

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/searchgrid/grid/pkg.GridVersion=...".
var (
	GridVersion = "devel"
	GitRevision = "devel"
)

func VersionRevision() string {
	return fmt.Sprintf("%s-%s", GridVersion, GitRevision)
}

// VersionTemplate is the --version output of grid binaries.
func VersionTemplate() string {
	return fmt.Sprintf("{{.Name}} %s (%s %s/%s)\n", VersionRevision(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

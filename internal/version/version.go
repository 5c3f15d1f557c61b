package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/voxsync/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/voxsync/internal/version.Commit=abc123"
var (
	// Version is the release version; "dev" for local builds
	Version = ""
	// Commit is the short git hash the binary was built from
	Commit = ""
)

func init() {
	if Commit == "" {
		Commit = vcsCommit()
	}
	if Version == "" {
		Version = "dev"
	}
}

// vcsCommit reads the short revision stamped by the go tool, with a
// -dirty suffix for modified trees
func vcsCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	var revision string
	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified {
		revision += "-dirty"
	}
	return revision
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies the client to the backend
func UserAgent() string {
	return fmt.Sprintf("voxsync/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

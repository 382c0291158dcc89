package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time:
//
//	go build -ldflags "-X github.com/soyeahso/botkit/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/botkit/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the long version line printed by `botkit version`.
func Info() string {
	return fmt.Sprintf("botkit %s (commit: %s, built: %s, %s/%s)",
		Version, abbrev(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent by the HTTP and WebSocket clients.
func UserAgent() string {
	return "botkit/" + Version
}

func abbrev(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X .../internal/version.release=v1.2.0 -X .../internal/version.commit=abc1234"
var (
	release = "dev"
	commit  = "unknown"
)

// Info is the build identity reported by the liveness endpoint and the
// startup log.
type Info struct {
	Release   string `json:"release"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Release:   release,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the short form used in log lines, e.g. "v1.2.0 (abc1234)".
func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Release, i.Commit)
}

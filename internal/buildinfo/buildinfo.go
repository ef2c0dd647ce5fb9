package buildinfo

import "time"

// Set via -ldflags at build time
var (
	Version    string // release tag, "dev" when unset
	BuildTime  string // when the binary was compiled
	CommitHash string // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info is the build section of the health response
type Info struct {
	Version    string `json:"version"`
	BuildTime  string `json:"buildTime,omitempty"`
	CommitHash string `json:"commit,omitempty"`
	StartedAt  string `json:"startedAt"`
	Uptime     string `json:"uptime"`
}

// Current reports build metadata and uptime as of now
func Current(now time.Time) Info {
	v := Version
	if v == "" {
		v = "dev"
	}
	return Info{
		Version:    v,
		BuildTime:  BuildTime,
		CommitHash: CommitHash,
		StartedAt:  StartTime.Format(time.RFC3339),
		Uptime:     now.Sub(StartTime).Round(time.Second).String(),
	}
}

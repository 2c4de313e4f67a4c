package routes

import (
	"net/http"
	"runtime"
)

// Set with -ldflags "-X equipix/routes.Version=..." at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// BuildInfo describes the running binary.
func BuildInfo() VersionResponse {
	return VersionResponse{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		GitCommit: GitCommit,
	}
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildInfo())
}

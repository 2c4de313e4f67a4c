package routes

import (
	"net/http"
	"time"

	"equipix/job"
	"equipix/logger"
	"equipix/success"
)

var startTime = time.Now()

type healthStatus struct {
	Status      string          `json:"status"`
	Build       VersionResponse `json:"build"`
	StartedAt   time.Time       `json:"started_at"`
	Uptime      string          `json:"uptime"`
	PendingJobs int             `json:"pending_jobs"`
	Error       string          `json:"error,omitempty"`
}

// HealthHandler answers 200 while the success store is readable, 503
// otherwise.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthStatus{
		Status:      "healthy",
		Build:       BuildInfo(),
		StartedAt:   startTime,
		Uptime:      time.Since(startTime).Round(time.Second).String(),
		PendingJobs: len(job.GetPendingJobs()),
	}
	code := http.StatusOK
	if err := success.CheckHealth(); err != nil {
		logger.Warnf("Health check failed: %v", err)
		resp.Status, resp.Error = "unhealthy", err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

package routes

import (
	"errors"
	"net/http"

	"equipix/job"
	"equipix/logger"
)

// CancelJobHandler cancels a job that has not started processing. Unknown
// jobs get 404, jobs past the pending state 409.
func CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	err := job.CancelJob(id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.Warnf("Refused to cancel job %s: %v", id, err)
		http.Error(w, err.Error(), http.StatusConflict)
	}
}

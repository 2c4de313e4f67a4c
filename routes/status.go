package routes

import (
	"net/http"

	"equipix/job"
)

type jobStatus struct {
	JobID       string `json:"job_id"`
	State       string `json:"state"`
	Cancellable bool   `json:"cancellable"`
}

// JobStatusHandler reports the in-memory state of a job
func JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	state, exists := job.GetJobState(id)
	if !exists {
		http.Error(w, "Job "+id+" not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobStatus{
		JobID:       id,
		State:       state.String(),
		Cancellable: state == job.JobStatePending,
	})
}

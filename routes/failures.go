package routes

import (
	"net/http"

	"equipix/failures"
	"equipix/logger"
)

type failureStatus struct {
	JobID  string                  `json:"job_id"`
	Status string                  `json:"status"`
	Record *failures.FailureRecord `json:"record,omitempty"`
}

// FailureQueryHandler returns why a job failed. Jobs without a failure
// record answer 200 with status "no_failure".
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	resp := failureStatus{JobID: id, Status: "no_failure", Record: record}
	if record != nil {
		resp.Status = "failed"
	}
	writeJSON(w, http.StatusOK, resp)
}

// FailureListHandler lists every stored failure
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": records,
		"count":    len(records),
	})
}

package routes

import (
	"net/http"

	"equipix/logger"
	"equipix/success"
)

// SuccessQueryHandler returns the artifacts a finished job produced
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	record, err := success.GetSuccess(id)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"job_id": id, "status": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SuccessListHandler lists every success record
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success_records": records,
		"count":           len(records),
	})
}

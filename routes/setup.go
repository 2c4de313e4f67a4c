package routes

import (
	"encoding/json"
	"net/http"

	"equipix/compress"
	"equipix/logger"
	"equipix/metrics"
)

var (
	compressor     *compress.Compressor
	batchOptions   = compress.DefaultBatchOptions()
	maxUploadBytes int64 = 64 << 20
)

// Init hands the routes the compressor and limits they work with.
func Init(c *compress.Compressor, opts compress.BatchOptions, uploadLimit int64) {
	compressor = c
	batchOptions = opts
	if uploadLimit > 0 {
		maxUploadBytes = uploadLimit
	}
}

// NewMux registers every equipix endpoint on a fresh ServeMux. Requests
// with the wrong method get a 405 from the mux itself.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", UploadHandler)
	mux.HandleFunc("POST /compress", CompressHandler)
	mux.HandleFunc("POST /register", RegisterCredentialsHandler)
	mux.HandleFunc("GET /status", JobStatusHandler)
	mux.HandleFunc("DELETE /cancel", CancelJobHandler)
	mux.HandleFunc("GET /success", SuccessQueryHandler)
	mux.HandleFunc("GET /success/list", SuccessListHandler)
	mux.HandleFunc("GET /failures", FailureQueryHandler)
	mux.HandleFunc("GET /failures/list", FailureListHandler)
	mux.HandleFunc("GET /health", HealthHandler)
	mux.HandleFunc("GET /version", VersionHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// jobID reads the required "id" query parameter, answering 400 when it is
// missing.
func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

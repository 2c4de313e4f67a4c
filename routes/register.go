package routes

import (
	"encoding/json"
	"net/http"

	"equipix/credentials"
	"equipix/logger"
	"equipix/utils"
	writerbackends "equipix/writerBackends"
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Backend    string            `json:"backend"`
	AccessInfo map[string]string `json:"accessInfo"`
}

func knownBackend(name string) bool {
	switch name {
	case writerbackends.BackendDirectServe, writerbackends.BackendS3, writerbackends.BackendGCS, writerbackends.BackendSFTP:
		return true
	}
	return false
}

// RegisterCredentialsHandler stores a storage destination and returns the
// key uploads refer to it by.
func RegisterCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !knownBackend(req.Backend) {
		http.Error(w, "Unknown backend", http.StatusBadRequest)
		return
	}
	if err := writerbackends.ValidateAccessInfo(req.Backend, req.AccessInfo); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key, err := utils.GenerateRandomHex(16)
	if err != nil {
		http.Error(w, "Failed to generate key", http.StatusInternalServerError)
		return
	}

	entry := credentials.Entry{Backend: req.Backend, AccessInfo: req.AccessInfo}
	if err := credentials.StoreCredentials(key, entry); err != nil {
		logger.Errorf("Failed to store credentials: %v", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	logger.Infof("Registered %s storage destination", req.Backend)
	writeJSON(w, http.StatusCreated, map[string]string{"access_key": key})
}

package config

import (
	"os"
	"path/filepath"
)

// DATA_DIR is the directory where equipix keeps its pebble stores.
// Defaults to "./data" relative to the working directory.
var DATA_DIR = getDataDir()

// getDataDir resolves the data directory.
// Priority: EQUIPIX_DATA_DIR environment variable > "./data" default
func getDataDir() string {
	if dir := os.Getenv("EQUIPIX_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetDataDir returns the current data directory path. The environment is
// read on every call so tests and operators can move it without a restart.
func GetDataDir() string {
	return getDataDir()
}

// GetCredentialsDBPath returns {DATA_DIR}/credentials.db, the store of
// storage backend credentials keyed by access key.
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns {DATA_DIR}/failures.db.
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns {DATA_DIR}/success.db.
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetQueueDBPath returns {DATA_DIR}/queue.db, the persistent index of
// pending jobs that survives restarts.
func GetQueueDBPath() string {
	return filepath.Join(GetDataDir(), "queue.db")
}

// GetDirectServeBaseDir returns the root directory for the directServe
// backend. Set by the operator via EQUIPIX_SERVE_DIR, never by clients.
func GetDirectServeBaseDir() string {
	if dir := os.Getenv("EQUIPIX_SERVE_DIR"); dir != "" {
		return dir
	}
	return "./serve"
}

// GetJobsDir returns the directory where uploaded batches wait for
// processing. EQUIPIX_JOBS_DIR overrides the default under os.TempDir().
func GetJobsDir() string {
	if dir := os.Getenv("EQUIPIX_JOBS_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "equipix-jobs")
}

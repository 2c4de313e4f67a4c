package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	taskqueue "equipix/taskQueue"
)

// Stages at which a job can fail.
const (
	StageRead     = "read"
	StageCompress = "compress"
	StageWrite    = "write"
)

// FailureRecord represents a job that could not be completed
type FailureRecord struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	JobData   string    `json:"job_data"` // JSON of the job instructions
}

var errNotInitialized = errors.New("failure store not initialized")

var store *taskqueue.DBQueue

// Init opens the failure store at dbPath
func Init(dbPath string) error {
	q, err := taskqueue.OpenQueue(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	store = q
	return nil
}

// Close closes the failure store
func Close() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// StoreFailure records the stage a job failed at together with its data
func StoreFailure(jobID, stage string, cause error, jobData interface{}) error {
	if store == nil {
		return errNotInitialized
	}

	encoded, err := json.Marshal(jobData)
	if err != nil {
		encoded = []byte(fmt.Sprintf("unencodable job data: %v", err))
	}
	return taskqueue.PutJSON(store, jobID, FailureRecord{
		JobID:     jobID,
		Timestamp: time.Now(),
		Stage:     stage,
		Error:     cause.Error(),
		JobData:   string(encoded),
	})
}

// GetFailure retrieves a failure record by job id, (nil, nil) if none
func GetFailure(jobID string) (*FailureRecord, error) {
	if store == nil {
		return nil, errNotInitialized
	}
	record, err := taskqueue.GetJSON[FailureRecord](store, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(jobID string) error {
	if store == nil {
		return errNotInitialized
	}
	return store.Delete(jobID)
}

// ListFailures returns all failure records (for admin purposes)
func ListFailures() ([]FailureRecord, error) {
	if store == nil {
		return nil, errNotInitialized
	}
	return taskqueue.ListJSON[FailureRecord](store)
}

// CleanupOldRecords removes failure records older than maxAge
func CleanupOldRecords(maxAge time.Duration) error {
	records, err := ListFailures()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			stale = append(stale, r.JobID)
		}
	}
	return store.DeleteKeys(stale)
}

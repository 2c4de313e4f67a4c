// Package success keeps a record of every job that produced its artifacts.
package success

import (
	"errors"
	"fmt"
	"time"

	taskqueue "equipix/taskQueue"
)

// FileRecord describes one artifact written for a job.
type FileRecord struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Attempts int    `json:"attempts"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// SuccessRecord represents a completed compression job
type SuccessRecord struct {
	JobID         string       `json:"job_id"`
	Timestamp     time.Time    `json:"timestamp"`
	FileCount     int          `json:"file_count"`
	DegradedCount int          `json:"degraded_count"`
	Files         []FileRecord `json:"files"`
}

var errNotInitialized = errors.New("success store not initialized")

var store *taskqueue.DBQueue

// Init opens the success store at dbPath
func Init(dbPath string) error {
	q, err := taskqueue.OpenQueue(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open success store: %w", err)
	}
	store = q
	return nil
}

// Close closes the success store
func Close() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// StoreSuccess records the artifacts produced by a job
func StoreSuccess(jobID string, files []FileRecord) error {
	if store == nil {
		return errNotInitialized
	}

	record := SuccessRecord{
		JobID:     jobID,
		Timestamp: time.Now(),
		FileCount: len(files),
		Files:     files,
	}
	for _, f := range files {
		if f.Degraded {
			record.DegradedCount++
		}
	}
	return taskqueue.PutJSON(store, jobID, record)
}

// GetSuccess retrieves a success record by job id. A missing record is
// reported as (nil, nil).
func GetSuccess(jobID string) (*SuccessRecord, error) {
	if store == nil {
		return nil, errNotInitialized
	}
	return taskqueue.GetJSON[SuccessRecord](store, jobID)
}

// DeleteSuccess removes a success record
func DeleteSuccess(jobID string) error {
	if store == nil {
		return errNotInitialized
	}
	return store.Delete(jobID)
}

// ListSuccessRecords returns every success record in job id order
func ListSuccessRecords() ([]SuccessRecord, error) {
	if store == nil {
		return nil, errNotInitialized
	}
	return taskqueue.ListJSON[SuccessRecord](store)
}

// CleanupOldRecords removes success records older than maxAge
func CleanupOldRecords(maxAge time.Duration) error {
	records, err := ListSuccessRecords()
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
	if err := store.DeleteKeys(stale); err != nil {
		return fmt.Errorf("failed to delete old success records: %w", err)
	}
	return nil
}

// CheckHealth checks that the success store is open and readable
func CheckHealth() error {
	if store == nil {
		return errNotInitialized
	}
	if err := store.Ping(); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

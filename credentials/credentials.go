package credentials

import (
	"errors"
	"fmt"

	"equipix/logger"
	taskqueue "equipix/taskQueue"
)

// ErrNotFound is returned when no storage entry exists for a key.
var ErrNotFound = errors.New("credentials not found")

// Entry is a registered storage destination: the writer backend to use and
// the access information handed to it.
type Entry struct {
	Backend    string            `json:"backend"`
	AccessInfo map[string]string `json:"accessInfo"`
}

var errNotInitialized = errors.New("credentials store not initialized")

var store *taskqueue.DBQueue

// OpenDB opens the credentials store at dbPath
func OpenDB(dbPath string) error {
	q, err := taskqueue.OpenQueue(dbPath)
	if err != nil {
		logger.Errorf("Failed to open credentials store: %v", err)
		return err
	}
	store = q
	return nil
}

// CloseDB closes the DB
func CloseDB() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// GetCredentials returns the storage entry registered under key.
func GetCredentials(key string) (*Entry, error) {
	if store == nil {
		return nil, errNotInitialized
	}
	entry, err := taskqueue.GetJSON[Entry](store, key)
	if err != nil {
		return nil, fmt.Errorf("credentials %s: %w", key, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entry, nil
}

// StoreCredentials stores the entry under the given key
func StoreCredentials(key string, entry Entry) error {
	if store == nil {
		return errNotInitialized
	}
	if entry.Backend == "" {
		return fmt.Errorf("credentials %s: backend is required", key)
	}
	return taskqueue.PutJSON(store, key, entry)
}

// DeleteCredentials deletes the credentials for the given key
func DeleteCredentials(key string) error {
	if store == nil {
		return errNotInitialized
	}
	return store.Delete(key)
}

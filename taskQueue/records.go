package taskqueue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// healthKey is read, never written, by Ping.
const healthKey = "__health_check__"

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// DeleteKeys removes all keys in one synced batch.
func (q *DBQueue) DeleteKeys(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := q.DB.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete([]byte(k), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// Ping does a point read to check that the DB still answers.
func (q *DBQueue) Ping() error {
	_, err := q.Get(healthKey)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// PutJSON stores v as JSON under key.
func PutJSON(q *DBQueue, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return q.Add(key, data)
}

// GetJSON decodes the record under key. A missing key gives (nil, nil).
func GetJSON[T any](q *DBQueue, key string) (*T, error) {
	data, err := q.Get(key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &v, nil
}

// ListJSON decodes every record in key order. Records that fail to decode
// are skipped.
func ListJSON[T any](q *DBQueue) ([]T, error) {
	entries, err := q.List()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

package taskqueue

import (
	"github.com/cockroachdb/pebble"
)

// Entry is a single key/value pair read back from a queue.
type Entry struct {
	Key   string
	Value []byte
}

// DBQueue is a small wrapper around a Pebble DB instance used by the task queues.
type DBQueue struct {
	DB       *pebble.DB
	DataFile string
}

// OpenQueue opens (or creates) a pebble DB at the given dataFile path and
// returns a DBQueue wrapper.
func OpenQueue(dataFile string) (*DBQueue, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &DBQueue{DB: db, DataFile: dataFile}, nil
}

// Add stores a value under the given key.
func (q *DBQueue) Add(key string, value []byte) error {
	return q.DB.Set([]byte(key), value, pebble.Sync)
}

// Get returns a copy of the value for the given key.
func (q *DBQueue) Get(key string) ([]byte, error) {
	value, closer, err := q.DB.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes the key from the DB.
func (q *DBQueue) Delete(key string) error {
	return q.DB.Delete([]byte(key), pebble.Sync)
}

// List returns every entry in key order.
func (q *DBQueue) List() ([]Entry, error) {
	iter, err := q.DB.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries = append(entries, Entry{Key: string(iter.Key()), Value: value})
	}
	return entries, iter.Error()
}

// Close closes the underlying DB.
func (q *DBQueue) Close() error {
	return q.DB.Close()
}

package taskqueue

import (
	"equipix/config"
)

// PendingQueue holds jobs accepted by the server but not yet finished, so
// they can be resumed after a restart.
var PendingQueue *DBQueue

// OpenPendingQueueDB opens the pending queue at path, or at the configured
// default location when path is empty.
func OpenPendingQueueDB(path string) error {
	if path == "" {
		path = config.GetQueueDBPath()
	}
	q, err := OpenQueue(path)
	if err != nil {
		return err
	}
	PendingQueue = q
	return nil
}

// ClosePendingQueueDB closes the pending queue if it is open.
func ClosePendingQueueDB() error {
	if PendingQueue == nil {
		return nil
	}
	err := PendingQueue.Close()
	PendingQueue = nil
	return err
}

func AddToPendingQueue(key string, value []byte) error {
	return PendingQueue.Add(key, value)
}

func GetFromPendingQueue(key string) ([]byte, error) {
	return PendingQueue.Get(key)
}

func DeleteFromPendingQueue(key string) error {
	return PendingQueue.Delete(key)
}

func ListPendingQueue() ([]Entry, error) {
	return PendingQueue.List()
}

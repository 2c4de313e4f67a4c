package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"equipix/config"
	"equipix/logger"
	taskqueue "equipix/taskQueue"
)

// JobState represents the current state of a job
type JobState int

const (
	JobStatePending JobState = iota
	JobStateProcessing
	JobStateCompleted
	JobStateFailed
	JobStateCancelled
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrJobNotFound is returned for ids the server has never seen.
var ErrJobNotFound = errors.New("job not found")

var (
	pendingJobs []string                    // job directories in arrival order
	jobStates   = make(map[string]JobState) // id -> job state
	mu          sync.RWMutex
)

// Enqueue persists instr in its directory and the pending queue, then marks
// the job pending.
func Enqueue(instr JobInstructions) error {
	if err := WriteInstructions(instr.Dir, instr); err != nil {
		return err
	}
	if taskqueue.PendingQueue != nil {
		if err := taskqueue.AddToPendingQueue(instr.ID, []byte(instr.Dir)); err != nil {
			return fmt.Errorf("persist pending job %s: %w", instr.ID, err)
		}
	}
	AddPendingJob(instr.Dir)
	return nil
}

// AddPendingJob adds a job directory to the pending list
func AddPendingJob(dir string) {
	id := filepath.Base(dir)
	mu.Lock()
	defer mu.Unlock()
	if state, ok := jobStates[id]; ok && state == JobStatePending {
		return
	}
	pendingJobs = append(pendingJobs, dir)
	jobStates[id] = JobStatePending
}

func removePendingLocked(dir string) {
	for i, p := range pendingJobs {
		if p == dir {
			pendingJobs = append(pendingJobs[:i], pendingJobs[i+1:]...)
			return
		}
	}
}

// GetPendingJobs returns a copy of the pending jobs list
func GetPendingJobs() []string {
	mu.RLock()
	defer mu.RUnlock()
	jobs := make([]string, len(pendingJobs))
	copy(jobs, pendingJobs)
	return jobs
}

// CancelJob cancels a job that has not started processing yet. Its
// directory and queue entry are removed.
func CancelJob(id string) error {
	mu.Lock()
	state, exists := jobStates[id]
	if !exists {
		mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch state {
	case JobStateCompleted:
		mu.Unlock()
		return fmt.Errorf("job %s is already completed", id)
	case JobStateFailed:
		mu.Unlock()
		return fmt.Errorf("job %s has already failed", id)
	case JobStateCancelled:
		mu.Unlock()
		return fmt.Errorf("job %s is already cancelled", id)
	case JobStateProcessing:
		mu.Unlock()
		return fmt.Errorf("job %s is currently processing and cannot be cancelled", id)
	}

	var dir string
	for _, p := range pendingJobs {
		if filepath.Base(p) == id {
			dir = p
			break
		}
	}
	removePendingLocked(dir)
	jobStates[id] = JobStateCancelled
	mu.Unlock()

	forget(id, dir)
	logger.Infof("Cancelled job %s", id)
	return nil
}

// forget drops the persisted traces of a job.
func forget(id, dir string) {
	if taskqueue.PendingQueue != nil {
		if err := taskqueue.DeleteFromPendingQueue(id); err != nil {
			logger.Warnf("Failed to remove job %s from pending queue: %v", id, err)
		}
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			logger.Errorf("Failed to cleanup job directory %s: %v", dir, err)
		}
	}
}

// GetJobState returns the current state of a job
func GetJobState(id string) (JobState, bool) {
	mu.RLock()
	defer mu.RUnlock()
	state, exists := jobStates[id]
	return state, exists
}

// ScanForPendingJobs restores jobs that were accepted before a restart.
// Entries of the pending queue are checked first, then the jobs directory
// is scanned for leftovers.
func ScanForPendingJobs() error {
	if taskqueue.PendingQueue != nil {
		entries, err := taskqueue.ListPendingQueue()
		if err != nil {
			return fmt.Errorf("list pending queue: %w", err)
		}
		for _, e := range entries {
			dir := string(e.Value)
			if _, err := os.Stat(filepath.Join(dir, instructionsFile)); err != nil {
				logger.Warnf("Dropping pending job %s: %v", e.Key, err)
				_ = taskqueue.DeleteFromPendingQueue(e.Key)
				continue
			}
			AddPendingJob(dir)
		}
	}

	jobsDir := config.GetJobsDir()
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(jobsDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dirPath, instructionsFile)); err == nil {
			AddPendingJob(dirPath)
		}
	}
	return nil
}

// processJob runs ProcessJob for one directory and records the final state.
func processJob(ctx context.Context, jobDir string) error {
	id := filepath.Base(jobDir)

	mu.Lock()
	if jobStates[id] != JobStatePending {
		// cancelled while waiting
		removePendingLocked(jobDir)
		mu.Unlock()
		return nil
	}
	jobStates[id] = JobStateProcessing
	removePendingLocked(jobDir)
	mu.Unlock()

	err := ProcessJob(ctx, jobDir)

	mu.Lock()
	switch {
	case err == nil:
		jobStates[id] = JobStateCompleted
	case errors.Is(err, context.Canceled):
		jobStates[id] = JobStateCancelled
	default:
		jobStates[id] = JobStateFailed
	}
	mu.Unlock()

	return err
}

// ProcessPendingJobs processes pending jobs until ctx is cancelled, polling
// every interval when there is nothing to do.
func ProcessPendingJobs(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jobs := GetPendingJobs()
		if len(jobs) > 0 {
			logger.Infof("Processing %d pending jobs", len(jobs))
		}
		for _, jobDir := range jobs {
			if ctx.Err() != nil {
				return
			}
			if err := processJob(ctx, jobDir); err != nil {
				logger.Errorf("Failed to process job in %s: %v", jobDir, err)
			} else {
				logger.Infof("Processed job in %s", jobDir)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"equipix/compress"
	"equipix/credentials"
	"equipix/failures"
	"equipix/logger"
	"equipix/success"
	writerbackends "equipix/writerBackends"
)

var (
	compressor      *compress.Compressor
	batchOptions    = compress.DefaultBatchOptions()
	callbackTimeout = 30 * time.Second
)

// Init wires the compressor used by ProcessJob.
func Init(c *compress.Compressor, opts compress.BatchOptions, cbTimeout time.Duration) {
	compressor = c
	batchOptions = opts
	if cbTimeout > 0 {
		callbackTimeout = cbTimeout
	}
}

// destination is a resolved storage key.
type destination struct {
	key        string
	backend    string
	accessInfo map[string]string
}

// ProcessJob compresses one job directory, writes every result to the
// configured destinations and records the outcome.
func ProcessJob(ctx context.Context, jobDir string) error {
	if compressor == nil {
		return errors.New("job: compressor not initialized")
	}

	instr, err := ReadInstructions(jobDir)
	if err != nil {
		logger.Errorf("Failed to read instructions for %s: %v", jobDir, err)
		return storeFailure(JobInstructions{ID: filepath.Base(jobDir), Dir: jobDir}, failures.StageRead, err)
	}
	logger.Infof("Processing job %s with %d file(s)", instr.ID, len(instr.Files))

	sources, err := loadSources(instr)
	if err != nil {
		return storeFailure(instr, failures.StageRead, err)
	}

	// Resolve destinations before compressing so a bad key fails fast.
	dests, err := resolveDestinations(instr.StorageKeys)
	if err != nil {
		return storeFailure(instr, failures.StageWrite, err)
	}

	batch, err := compressor.CompressBatch(ctx, instr.Existing, sources, batchOptions)
	if err != nil {
		return storeFailure(instr, failures.StageCompress, err)
	}
	if err := ctx.Err(); err != nil {
		logger.Warnf("Job %s cancelled after compression", instr.ID)
		return err
	}

	if err := writeResults(ctx, instr, batch, dests); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// keep the directory and queue entry so the job runs again
			logger.Warnf("Job %s interrupted while writing results: %v", instr.ID, err)
			return ctxErr
		}
		return storeFailure(instr, failures.StageWrite, err)
	}

	files := fileRecords(batch)
	if err := success.StoreSuccess(instr.ID, files); err != nil {
		logger.Errorf("Failed to store success record for %s: %v", instr.ID, err)
	}

	if err := sendCallback(ctx, instr, callbackPayload{
		JobID:         instr.ID,
		Status:        "completed",
		FileCount:     len(files),
		DegradedCount: batch.Degraded,
		Files:         files,
		Timestamp:     time.Now().Unix(),
	}); err != nil {
		logger.Errorf("Failed to send callback for %s: %v", instr.ID, err)
	}

	forget(instr.ID, jobDir)
	logger.Infof("Finished job %s (%d file(s), %d degraded)", instr.ID, len(files), batch.Degraded)
	return nil
}

// loadSources reads every uploaded file of the job into memory.
func loadSources(instr JobInstructions) ([]compress.SourceImage, error) {
	sources := make([]compress.SourceImage, 0, len(instr.Files))
	for _, f := range instr.Files {
		data, err := os.ReadFile(filepath.Join(instr.Dir, filepath.Base(f.Stored)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		sources = append(sources, compress.SourceImage{Name: f.Name, MIMEType: f.MIMEType, Data: data})
	}
	return sources, nil
}

// resolveDestinations looks up every storage key. No keys means the local
// directServe folder.
func resolveDestinations(keys []string) ([]destination, error) {
	if len(keys) == 0 {
		return []destination{{key: "default", backend: writerbackends.BackendDirectServe, accessInfo: map[string]string{}}}, nil
	}
	dests := make([]destination, 0, len(keys))
	for _, key := range keys {
		entry, err := credentials.GetCredentials(key)
		if err != nil {
			return nil, fmt.Errorf("storage key %s: %w", key, err)
		}
		dests = append(dests, destination{key: key, backend: entry.Backend, accessInfo: entry.AccessInfo})
	}
	return dests, nil
}

// writeResults writes each compressed image to every destination.
func writeResults(ctx context.Context, instr JobInstructions, batch *compress.BatchResult, dests []destination) error {
	for _, d := range dests {
		for _, item := range batch.Items {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("job cancelled during writing: %w", err)
			}
			res := item.Result
			artifact := writerbackends.Artifact{
				Filename:    res.Filename,
				Folder:      instr.SubDir,
				ContentType: res.MIMEType,
				Data:        res.Data,
			}
			if err := writerbackends.WriteImage(ctx, d.backend, d.accessInfo, artifact); err != nil {
				return fmt.Errorf("failed to write %s to %s: %w", res.Filename, d.key, err)
			}
		}
	}
	return nil
}

func fileRecords(batch *compress.BatchResult) []success.FileRecord {
	files := make([]success.FileRecord, 0, len(batch.Items))
	for _, item := range batch.Items {
		res := item.Result
		files = append(files, success.FileRecord{
			Source:   item.Name,
			Filename: res.Filename,
			MIMEType: res.MIMEType,
			Size:     res.Size,
			Width:    res.Width,
			Height:   res.Height,
			Attempts: res.AttemptCount(),
			Degraded: res.Degraded,
			Reason:   string(res.Reason),
		})
	}
	return files
}

// storeFailure records the failure, notifies the callback and returns err.
func storeFailure(instr JobInstructions, stage string, err error) error {
	if storeErr := failures.StoreFailure(instr.ID, stage, err, instr); storeErr != nil {
		logger.Errorf("Failed to store failure for job %s: %v", instr.ID, storeErr)
	}

	if cbErr := sendCallback(context.Background(), instr, callbackPayload{
		JobID:     instr.ID,
		Status:    "failed",
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	}); cbErr != nil {
		logger.Errorf("Failed to send failure callback for %s: %v", instr.ID, cbErr)
	}

	forget(instr.ID, instr.Dir)
	return err
}

type callbackPayload struct {
	JobID         string               `json:"job_id"`
	Status        string               `json:"status"`
	FileCount     int                  `json:"file_count"`
	DegradedCount int                  `json:"degraded_count"`
	Files         []success.FileRecord `json:"files,omitempty"`
	Stage         string               `json:"stage,omitempty"`
	Error         string               `json:"error,omitempty"`
	Timestamp     int64                `json:"timestamp"`
}

// sendCallback posts the job summary if a callback URL was given
func sendCallback(ctx context.Context, instr JobInstructions, payload callbackPayload) error {
	if instr.CallbackURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, instr.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Equipix/1.0")
	for key, value := range instr.CallbackHeaders {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}

	logger.Infof("Sent %s callback for job %s to %s", payload.Status, instr.ID, instr.CallbackURL)
	return nil
}

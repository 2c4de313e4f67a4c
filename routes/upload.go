package routes

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"equipix/codec"
	"equipix/compress"
	"equipix/config"
	"equipix/job"
	"equipix/logger"
	"equipix/metrics"
	"equipix/utils"
)

// UploadResponse is returned once a batch has been accepted.
type UploadResponse struct {
	JobID string `json:"job_id"`
	Files int    `json:"files"`
}

// parseExisting reads the optional "existing" form value.
func parseExisting(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.FormValue("existing"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid existing count %q", raw)
	}
	return n, nil
}

// parseStorageKeys splits the comma separated "storage" form value.
func parseStorageKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// saveUpload copies one multipart file into dir under name.
func saveUpload(fh *multipart.FileHeader, dir, name string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// isImageUpload sniffs the head of a multipart file.
func isImageUpload(fh *multipart.FileHeader) (bool, error) {
	src, err := fh.Open()
	if err != nil {
		return false, err
	}
	defer src.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return codec.IsImage(head[:n]), nil
}

// UploadHandler accepts a batch of photos for asynchronous compression.
// The batch ceiling is checked before anything touches the disk.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files in form field \"files\"", http.StatusBadRequest)
		return
	}

	existing, err := parseExisting(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := compress.CheckBatchCount(existing, len(files), batchOptions.MaxItems); err != nil {
		metrics.BatchRejected()
		logger.Warnf("Rejected upload from %s: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	subDir := strings.Trim(r.FormValue("subDir"), "/")
	if strings.Contains(subDir, "..") {
		http.Error(w, "Invalid subDir", http.StatusBadRequest)
		return
	}

	for _, fh := range files {
		ok, err := isImageUpload(fh)
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		if !ok {
			logger.Warnf("Rejected upload from %s: %q is not an image", r.RemoteAddr, fh.Filename)
			http.Error(w, fmt.Sprintf("File %q is not an image", fh.Filename), http.StatusUnsupportedMediaType)
			return
		}
	}

	id := uuid.NewString()
	dir := filepath.Join(config.GetJobsDir(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Errorf("Failed to create job directory %s: %v", dir, err)
		http.Error(w, "Failed to create job directory", http.StatusInternalServerError)
		return
	}

	instr := job.JobInstructions{
		ID:          id,
		Dir:         dir,
		Existing:    existing,
		StorageKeys: parseStorageKeys(r.FormValue("storage")),
		SubDir:      subDir,
		CallbackURL: r.FormValue("callback"),
		CreatedAt:   time.Now(),
	}
	for i, fh := range files {
		stored := fmt.Sprintf("%02d_%s", i, utils.SanitizeBaseName(fh.Filename))
		if err := saveUpload(fh, dir, stored); err != nil {
			os.RemoveAll(dir)
			logger.Errorf("Failed to save upload %s: %v", fh.Filename, err)
			http.Error(w, "Failed to save file", http.StatusInternalServerError)
			return
		}
		instr.Files = append(instr.Files, job.SourceFile{
			Name:     fh.Filename,
			Stored:   stored,
			MIMEType: fh.Header.Get("Content-Type"),
		})
	}

	if err := job.Enqueue(instr); err != nil {
		os.RemoveAll(dir)
		logger.Errorf("Failed to enqueue job %s: %v", id, err)
		http.Error(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}

	logger.Infof("Accepted job %s with %d file(s) (%d existing)", id, len(files), existing)
	writeJSON(w, http.StatusAccepted, UploadResponse{JobID: id, Files: len(files)})
}

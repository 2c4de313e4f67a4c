package routes

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"equipix/compress"
	"equipix/logger"
)

// Response headers describing how a synchronous compression went.
const (
	HeaderDegraded = "X-Equipix-Degraded"
	HeaderAttempts = "X-Equipix-Attempts"
	HeaderReason   = "X-Equipix-Reason"
	HeaderQuality  = "X-Equipix-Quality"
)

// CompressHandler compresses a single photo and returns the encoded bytes.
// It never fails on bad image data; such files come back unchanged with
// the degraded header set.
func CompressHandler(w http.ResponseWriter, r *http.Request) {
	if compressor == nil {
		http.Error(w, "Compressor not initialized", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file data", http.StatusBadRequest)
		return
	}

	res := compressor.Compress(r.Context(), compress.SourceImage{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})

	h := w.Header()
	h.Set("Content-Type", res.MIMEType)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	h.Set(HeaderDegraded, strconv.FormatBool(res.Degraded))
	h.Set(HeaderAttempts, strconv.Itoa(res.AttemptCount()))
	if res.Reason != compress.ReasonNone {
		h.Set(HeaderReason, string(res.Reason))
	}
	if !res.Fallback {
		h.Set(HeaderQuality, strconv.FormatFloat(res.Quality, 'f', -1, 64))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		logger.Warnf("Failed to write compressed image to %s: %v", r.RemoteAddr, err)
	}
}

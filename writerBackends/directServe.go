package writerbackends

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"equipix/config"
	"equipix/logger"
)

// UploadToDirectServe writes the artifact below the operator configured
// serving directory. accessInfo may carry a "folder" prefix; the base
// directory itself never comes from clients.
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	folder := accessInfo["folder"]
	if err := ValidateFolder(folder); err != nil {
		return err
	}

	baseDir := config.GetDirectServeBaseDir()
	fullPath := filepath.Join(baseDir, filepath.FromSlash(a.objectPath(folder)))
	if rel, err := filepath.Rel(baseDir, fullPath); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is outside %s", ErrUnsafePath, fullPath, baseDir)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place %s: %w", fullPath, err)
	}

	logger.Infof("Saved '%s' to '%s'", a.Filename, fullPath)
	return nil
}

package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for a folder or filename that could resolve
// outside the destination root.
var ErrUnsafePath = errors.New("unsafe path")

// Backend names accepted in a credentials entry.
const (
	BackendDirectServe = "directServe"
	BackendS3          = "s3"
	BackendGCS         = "gcs"
	BackendSFTP        = "sftp"
)

// Artifact is one compressed image ready to be written somewhere.
type Artifact struct {
	Filename    string
	Folder      string // optional sub directory below the backend's prefix
	ContentType string
	Data        []byte
}

// objectPath joins prefix, folder and filename with forward slashes and
// strips any leading slash so object keys stay relative.
func (a Artifact) objectPath(prefix string) string {
	return strings.TrimPrefix(path.Join(prefix, a.Folder, a.Filename), "/")
}

// ValidateFolder accepts relative folders without any ".." element. The
// empty folder is valid.
func ValidateFolder(folder string) error {
	slashed := filepath.ToSlash(folder)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(folder) || strings.Contains(slashed, "..") {
		return fmt.Errorf("%w: folder %q", ErrUnsafePath, folder)
	}
	return nil
}

// ValidateAccessInfo checks the accessInfo values that end up in local
// paths. Registration calls it before an entry is stored.
func ValidateAccessInfo(backendType string, accessInfo map[string]string) error {
	if backendType == BackendDirectServe {
		return ValidateFolder(accessInfo["folder"])
	}
	return nil
}

// WriteImage dispatches the artifact to the named backend.
func WriteImage(ctx context.Context, backendType string, accessInfo map[string]string, a Artifact) error {
	if a.Filename == "" {
		return fmt.Errorf("artifact has no filename")
	}
	if strings.ContainsAny(a.Filename, `/\`) || a.Filename == ".." {
		return fmt.Errorf("%w: filename %q", ErrUnsafePath, a.Filename)
	}
	if err := ValidateFolder(a.Folder); err != nil {
		return err
	}
	if err := ValidateAccessInfo(backendType, accessInfo); err != nil {
		return err
	}

	switch backendType {
	case BackendDirectServe:
		if err := UploadToDirectServe(ctx, accessInfo, a); err != nil {
			return fmt.Errorf("failed to upload to direct serve: %w", err)
		}
	case BackendS3:
		if err := UploadToS3WithCreds(ctx, accessInfo, a); err != nil {
			return fmt.Errorf("failed to upload to S3: %w", err)
		}
	case BackendGCS:
		if err := UploadToGCSWithJSON(ctx, accessInfo, a); err != nil {
			return fmt.Errorf("failed to upload to GCS: %w", err)
		}
	case BackendSFTP:
		if err := UploadToSFTPWithCreds(ctx, accessInfo, a); err != nil {
			return fmt.Errorf("failed to upload to SFTP: %w", err)
		}
	default:
		return fmt.Errorf("unknown backend type: %s", backendType)
	}
	return nil
}

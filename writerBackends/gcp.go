package writerbackends

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"equipix/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// decodeServiceAccount accepts the service account key either base64
// encoded or as raw JSON.
func decodeServiceAccount(s string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return decoded
	}
	return []byte(s)
}

// UploadToGCSWithJSON uploads the artifact to a Google Cloud Storage bucket
// using a service account key. accessInfo keys: credentialsJSON, bucket and
// optionally prefix.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, a Artifact) error {
	bucketName := accessInfo["bucket"]
	if bucketName == "" || accessInfo["credentialsJSON"] == "" {
		return fmt.Errorf("missing required accessInfo keys: bucket, credentialsJSON")
	}
	objectName := a.objectPath(accessInfo["prefix"])

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(decodeServiceAccount(accessInfo["credentialsJSON"])))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = a.ContentType

	if _, err = io.Copy(wc, bytes.NewReader(a.Data)); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	// Close completes the upload.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return nil
}

package writerbackends

import (
	"bytes"
	"context"
	"fmt"

	"equipix/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadToS3WithCreds uploads the artifact to an S3 bucket using static
// credentials. accessInfo keys: accessKey, secretKey, region, bucket and
// optionally prefix and endpoint (for S3 compatible stores).
func UploadToS3WithCreds(ctx context.Context, accessInfo map[string]string, a Artifact) error {
	bucket := accessInfo["bucket"]
	if bucket == "" || accessInfo["region"] == "" {
		return fmt.Errorf("missing required accessInfo keys: bucket, region")
	}
	key := a.objectPath(accessInfo["prefix"])

	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	opts := s3.Options{
		Region:      accessInfo["region"],
		Credentials: creds,
	}
	if endpoint := accessInfo["endpoint"]; endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	uploader := manager.NewUploader(s3.New(opts))

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(a.Data),
	}
	if a.ContentType != "" {
		input.ContentType = aws.String(a.ContentType)
	}
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Uploaded object '%s' to bucket '%s'", key, bucket)
	return nil
}

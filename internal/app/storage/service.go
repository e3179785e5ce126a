/*
Package storage holds attachment files for chat messages in S3-compatible
object storage. Clients upload and download through short-lived presigned
URLs, so file bytes never pass through the messaging server.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the settings needed to reach the storage backend.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service is the public interface of the attachment storage backend.
type Service interface {
	// PresignUpload generates a presigned URL for uploading an attachment.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a presigned URL for downloading an attachment.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the attachment stored under key.
	Delete(ctx context.Context, key string) error
}

// NewService builds the concrete S3-backed Service from the configuration.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}

package storage

import (
	"context"
	"errors"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrObjectNotFound is returned by ProbeObject when no object exists at
// the given key.
var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectInfo describes an object without fetching its body.
type ObjectInfo struct {
	Size         int64
	ETag         string
	LastModified time.Time
}

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider. The
	// filename and content type shape the response headers so browsers
	// save the file under its original name.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, filename string, contentType string, expires time.Duration) (string, error)

	// ProbeObject checks existence and returns size/checksum metadata
	// without fetching the body. Returns ErrObjectNotFound when the key
	// does not exist. This is the proof step between "client claims the
	// upload succeeded" and "server trusts the record".
	ProbeObject(ctx context.Context, objectKey string) (*ObjectInfo, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

package objectstore

import (
	"context"

	"cloud.google.com/go/storage"
)

// NewGCSClient opens a GCS client using ambient application-default
// credentials, the same discovery path LoadAWSConfig uses for S3.
func NewGCSClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx)
}

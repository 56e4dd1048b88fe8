// Package objectstore provides a single-bucket object storage
// abstraction shared by the Transfer Proxy and Folder Sync, with S3 and
// GCS backends selected at startup from a bucket URI.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectInfo is one entry returned by ListPrefix.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// ObjectRepository is implemented by both backends; Folder Sync and the
// Transfer Proxy depend only on this interface, never on a concrete
// backend type.
type ObjectRepository interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
	Download(ctx context.Context, key string, dest io.WriterAt, quiet bool) (int64, error)
	Exists(ctx context.Context, key string) (exists bool, size int64, err error)
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) error
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	GetBucketName() string
	GetStorageType() string
}

// RepositoryType identifies which backend a bucket URI resolved to.
type RepositoryType string

const (
	S3Type  RepositoryType = "s3"
	GCSType RepositoryType = "gcs"
)

// BucketConfig is a parsed bucket URI.
type BucketConfig struct {
	Name   string
	Type   RepositoryType
	Region string
}

// ObjectRepositoryFactory builds an ObjectRepository for a BucketConfig,
// caching S3 clients by region since most jobs only ever touch one.
type ObjectRepositoryFactory struct {
	awsConfig aws.Config
	gcsClient *storage.Client
	s3Clients map[string]*s3.Client
}

// NewObjectRepositoryFactory returns a factory. gcsClient may be nil if
// the deployment never configures a gs:// bucket.
func NewObjectRepositoryFactory(awsConfig aws.Config, gcsClient *storage.Client) *ObjectRepositoryFactory {
	return &ObjectRepositoryFactory{
		awsConfig: awsConfig,
		gcsClient: gcsClient,
		s3Clients: make(map[string]*s3.Client),
	}
}

// CreateRepository builds the backend named by cfg.Type.
func (f *ObjectRepositoryFactory) CreateRepository(cfg BucketConfig) (ObjectRepository, error) {
	switch cfg.Type {
	case S3Type:
		region := cfg.Region
		if region == "" {
			region = f.awsConfig.Region
		}
		if region == "" {
			return nil, fmt.Errorf("region is required for S3 bucket: %s", cfg.Name)
		}
		client := f.getS3Client(region)
		return NewS3ObjectRepository(client, cfg.Name), nil
	case GCSType:
		if f.gcsClient == nil {
			return nil, fmt.Errorf("GCS client not configured")
		}
		return NewGCSObjectRepository(f.gcsClient, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Type)
	}
}

func (f *ObjectRepositoryFactory) getS3Client(region string) *s3.Client {
	if client, ok := f.s3Clients[region]; ok {
		return client
	}
	cfg := f.awsConfig.Copy()
	cfg.Region = region
	client := s3.NewFromConfig(cfg)
	f.s3Clients[region] = client
	return client
}

// ParseBucketConfig accepts "s3://bucket", "gs://bucket", "s3:bucket",
// "gcs:bucket", or a bare bucket name (defaults to S3).
func ParseBucketConfig(bucketStr string) (BucketConfig, error) {
	bucketStr = strings.TrimSpace(bucketStr)
	if bucketStr == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}

	if strings.Contains(bucketStr, "://") {
		parts := strings.SplitN(bucketStr, "://", 2)
		scheme := strings.ToLower(strings.TrimSpace(parts[0]))
		name := strings.TrimSpace(parts[1])
		if name == "" {
			return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
		}
		switch scheme {
		case "s3":
			return BucketConfig{Name: name, Type: S3Type}, nil
		case "gs":
			return BucketConfig{Name: name, Type: GCSType}, nil
		default:
			return BucketConfig{}, fmt.Errorf("unsupported scheme: %s", scheme)
		}
	}

	parts := strings.SplitN(bucketStr, ":", 2)
	if len(parts) != 2 {
		return BucketConfig{Name: bucketStr, Type: S3Type}, nil
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "gcs", "gs":
		return BucketConfig{Name: name, Type: GCSType}, nil
	default:
		return BucketConfig{Name: name, Type: S3Type}, nil
	}
}

package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// GCSObjectRepository implements ObjectRepository against a single GCS
// bucket.
type GCSObjectRepository struct {
	client     *storage.Client
	bucketName string
}

// NewGCSObjectRepository returns a repository bound to bucketName.
func NewGCSObjectRepository(client *storage.Client, bucketName string) *GCSObjectRepository {
	return &GCSObjectRepository{client: client, bucketName: bucketName}
}

func (r *GCSObjectRepository) GetBucketName() string  { return r.bucketName }
func (r *GCSObjectRepository) GetStorageType() string { return "gcs" }

func (r *GCSObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	obj := r.client.Bucket(r.bucketName).Object(key)
	writer := obj.NewWriter(ctx)

	proxyReader := reader
	if !quiet {
		log.Debugf("uploading to gs://%s/%s", r.bucketName, key)
		bar := progressbar.DefaultBytes(seekableSize(reader), "uploading")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	if _, err := io.Copy(writer, proxyReader); err != nil {
		writer.Close()
		return "", fmt.Errorf("upload to gcs: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}
	return fmt.Sprintf("%s/%s", r.bucketName, key), nil
}

func (r *GCSObjectRepository) Download(ctx context.Context, key string, dest io.WriterAt, quiet bool) (int64, error) {
	obj := r.client.Bucket(r.bucketName).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return 0, fmt.Errorf("gcs attrs %s: %w", key, err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("gcs reader %s: %w", key, err)
	}
	defer reader.Close()

	var proxyReader io.Reader = reader
	if !quiet {
		bar := progressbar.DefaultBytes(attrs.Size, "downloading")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	data, err := io.ReadAll(proxyReader)
	if err != nil {
		return 0, fmt.Errorf("read gcs %s: %w", key, err)
	}
	if _, err := dest.WriteAt(data, 0); err != nil {
		return 0, fmt.Errorf("write gcs download %s: %w", key, err)
	}
	return int64(len(data)), nil
}

func (r *GCSObjectRepository) Exists(ctx context.Context, key string) (bool, int64, error) {
	attrs, err := r.client.Bucket(r.bucketName).Object(key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, attrs.Size, nil
}

func (r *GCSObjectRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Bucket(r.bucketName).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete gcs %s: %w", key, err)
	}
	return nil
}

func (r *GCSObjectRepository) DeleteBatch(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := r.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *GCSObjectRepository) ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	bucket := r.client.Bucket(r.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs prefix %s: %w", prefix, err)
		}
		out = append(out, ObjectInfo{Key: attrs.Name, Size: attrs.Size, ETag: attrs.Etag})
	}
	return out, nil
}

// PresignGet signs a time-limited GET URL using the bucket's default
// service-account credentials.
func (r *GCSObjectRepository) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	url, err := r.client.Bucket(r.bucketName).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign gcs url %s: %w", key, err)
	}
	return url, nil
}

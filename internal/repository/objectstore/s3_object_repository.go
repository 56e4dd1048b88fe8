package objectstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
)

// S3ObjectRepository implements ObjectRepository against a single S3
// bucket.
type S3ObjectRepository struct {
	client     *s3.Client
	bucketName string
}

// NewS3ObjectRepository returns a repository bound to bucketName.
func NewS3ObjectRepository(client *s3.Client, bucketName string) *S3ObjectRepository {
	return &S3ObjectRepository{client: client, bucketName: bucketName}
}

func (r *S3ObjectRepository) GetBucketName() string  { return r.bucketName }
func (r *S3ObjectRepository) GetStorageType() string { return "s3" }

// Upload streams r to key via the managed multipart uploader.
func (r *S3ObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	uploader := manager.NewUploader(r.client)

	proxyReader := reader
	if !quiet {
		bar := progressbar.DefaultBytes(seekableSize(reader), "uploading")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
		Body:   proxyReader,
	})
	if err != nil {
		return "", err
	}
	return r.bucketName + "/" + key, nil
}

// Download streams key into dest at offset 0, returning the number of
// bytes written.
func (r *S3ObjectRepository) Download(ctx context.Context, key string, dest io.WriterAt, quiet bool) (int64, error) {
	downloader := manager.NewDownloader(r.client)

	var writer io.WriterAt = dest
	if !quiet {
		if head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(r.bucketName),
			Key:    aws.String(key),
		}); err == nil && head.ContentLength != nil {
			bar := progressbar.DefaultBytes(*head.ContentLength, "downloading")
			writer = &progressWriterAt{w: dest, bar: bar}
		}
	}

	return downloader.Download(ctx, writer, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
}

// Exists reports whether key is present and, if so, its size.
func (r *S3ObjectRepository) Exists(ctx context.Context, key string) (bool, int64, error) {
	head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, 0, nil
		}
		return false, 0, err
	}
	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	return true, size, nil
}

func (r *S3ObjectRepository) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
	return err
}

// DeleteBatch removes up to 1000 keys per S3 DeleteObjects call.
func (r *S3ObjectRepository) DeleteBatch(ctx context.Context, keys []string) error {
	const maxPerCall = 1000
	for start := 0; start < len(keys); start += maxPerCall {
		end := start + maxPerCall
		if end > len(keys) {
			end = len(keys)
		}
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := r.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(r.bucketName),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListPrefix walks every page of a ListObjectsV2 paginator.
func (r *S3ObjectRepository) ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.ETag != nil {
				info.ETag = aws.ToString(obj.ETag)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// PresignGet returns a time-limited GET URL for key, the mechanism the
// Transfer Proxy's presign broker hands back instead of proxying bytes
// itself.
func (r *S3ObjectRepository) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(r.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// progressWriterAt wraps a WriterAt with a progress bar.
type progressWriterAt struct {
	w   io.WriterAt
	bar *progressbar.ProgressBar
}

func (pw *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := pw.w.WriteAt(p, off)
	if pw.bar != nil {
		pw.bar.Add(n)
	}
	return n, err
}

func seekableSize(r io.Reader) int64 {
	seeker, ok := r.(io.Seeker)
	if !ok {
		return -1
	}
	current, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	seeker.Seek(current, io.SeekStart)
	return end - current
}

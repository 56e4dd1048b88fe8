package proxy

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/xzsean666/marketfeed/internal/domain"
)

const (
	minTimeoutSecs = 10
	maxTimeoutSecs = 3600
	presignTTL     = 3600 * time.Second
)

// calculateTimeout derives an advisory upload timeout from file size:
// 2 seconds per megabyte, clamped to [10, 3600]. It is advisory only -
// nothing sweeps an UploadRecord stuck in Uploading past its timeout.
func calculateTimeout(sizeBytes int64) int {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	secs := int(math.Ceil(sizeMB * 2))
	if secs < minTimeoutSecs {
		return minTimeoutSecs
	}
	if secs > maxTimeoutSecs {
		return maxTimeoutSecs
	}
	return secs
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// presignResult is the `{url?, status, uploaded, compressed, md5,
// timeout_seconds}` response shape every /get_s3_url call returns.
type presignResult struct {
	URL         string              `json:"url,omitempty"`
	Status      domain.UploadStatus `json:"status"`
	Uploaded    bool                `json:"uploaded"`
	Compressed  bool                `json:"compressed"`
	MD5         string              `json:"md5"`
	TimeoutSecs int                 `json:"timeout_seconds"`
}

// resolvePresign implements the presign broker protocol: stat and hash
// the local file, consult the catalog for an existing UploadRecord by
// md5, and either hand back a ready presigned URL, report the in-flight
// state, or kick off a new detached upload.
func (s *Server) resolvePresign(ctx context.Context, absPath string, forceUpdate bool) (presignResult, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return presignResult{}, fmt.Errorf("read %s: %w", absPath, err)
	}
	hash := md5Hex(data)
	timeoutSecs := calculateTimeout(int64(len(data)))

	existing, ok, err := s.Uploads.Get(hash)
	if err != nil {
		return presignResult{}, err
	}

	shouldUpload, result := s.decide(ctx, existing, ok, forceUpdate, hash, timeoutSecs)
	if !shouldUpload {
		return result, nil
	}

	rec := domain.UploadRecord{
		ContentHash:  hash,
		OriginalPath: absPath,
		CreatedUnix:  time.Now().Unix(),
		Status:       domain.StatusPending,
		SizeBytes:    int64(len(data)),
		TimeoutSecs:  timeoutSecs,
	}
	if err := s.Uploads.Put(rec); err != nil {
		return presignResult{}, err
	}

	go s.runUpload(rec, data)

	return presignResult{Status: domain.StatusPending, MD5: hash, TimeoutSecs: timeoutSecs}, nil
}

// decide implements step 3 of the presign broker protocol: missing or
// Failed records upload; Pending/Uploading join the in-flight task;
// Completed re-uploads only if the remote object is actually gone, or if
// the caller forced an update.
func (s *Server) decide(ctx context.Context, rec domain.UploadRecord, ok bool, forceUpdate bool, hash string, timeoutSecs int) (shouldUpload bool, result presignResult) {
	if forceUpdate {
		return true, presignResult{}
	}
	if !ok {
		return true, presignResult{}
	}

	switch rec.Status {
	case domain.StatusCompleted:
		if exists, _, err := s.Repo.Exists(ctx, rec.RemoteKey); err == nil && exists {
			url, err := s.Repo.PresignGet(ctx, rec.RemoteKey, presignTTL)
			if err != nil {
				return false, presignResult{Status: rec.Status, Compressed: rec.WasCompressed, MD5: hash, TimeoutSecs: rec.TimeoutSecs}
			}
			return false, presignResult{URL: url, Status: rec.Status, Uploaded: true, Compressed: rec.WasCompressed, MD5: hash, TimeoutSecs: rec.TimeoutSecs}
		}
		return true, presignResult{}
	case domain.StatusPending, domain.StatusUploading:
		return false, presignResult{Status: rec.Status, MD5: hash, TimeoutSecs: rec.TimeoutSecs}
	case domain.StatusFailed:
		return true, presignResult{}
	default:
		return true, presignResult{}
	}
}

// runUpload is the detached background task that actually pushes
// content to the object store; the HTTP handler that triggered it has
// already returned a response by the time this completes. The record's
// TimeoutSecs is not applied to this task.
func (s *Server) runUpload(rec domain.UploadRecord, data []byte) {
	ctx := context.Background()

	rec.Status = domain.StatusUploading
	if err := s.Uploads.Put(rec); err != nil {
		log.Errorf("upload %s: mark uploading: %v", rec.ContentHash, err)
		return
	}

	compressed := data
	wasCompressed := false
	if enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression)); err == nil {
		compressed = enc.EncodeAll(data, nil)
		enc.Close()
		wasCompressed = true
	}

	remoteKey := rec.ContentHash
	if wasCompressed {
		remoteKey += ".zstd"
	}

	// quiet: true - no terminal is attached to a detached server-side
	// upload, so a progress bar has nowhere to render.
	if _, err := s.Repo.Upload(ctx, remoteKey, bytes.NewReader(compressed), true); err != nil {
		log.Errorf("upload %s failed: %v", rec.ContentHash, err)
		rec.Status = domain.StatusFailed
		_ = s.Uploads.Put(rec)
		return
	}

	rec.RemoteKey = remoteKey
	rec.WasCompressed = wasCompressed
	rec.Status = domain.StatusCompleted
	if err := s.Uploads.Put(rec); err != nil {
		log.Errorf("upload %s: mark completed: %v", rec.ContentHash, err)
	}
}

// Package sync implements the Folder Sync engine (C6): local<->S3/GCS
// reconciliation driven by the Sync Catalog, in one of three directions.
package sync

import "github.com/xzsean666/marketfeed/internal/logging"

var log = logging.WithComponent("sync")

// Direction picks which side of a sync is authoritative.
type Direction string

const (
	LocalToRemote Direction = "l2r"
	RemoteToLocal Direction = "r2l"
	Bidirectional Direction = "bi"
)

// Options configures one sync run.
type Options struct {
	Direction       Direction
	Force           bool
	Delete          bool
	DryRun          bool
	ExcludePatterns []string
	MaxParallel     int
	UseCompression  bool
	Quiet           bool // suppress per-transfer progress bars
}

// Stats summarizes one completed (or dry-run) sync.
type Stats struct {
	Scanned         int
	Uploaded        int
	Downloaded      int
	Deleted         int
	Skipped         int
	BytesUploaded   int64
	BytesDownloaded int64
	Errors          int
}

func (s *Stats) merge(other Stats) {
	s.Scanned += other.Scanned
	s.Uploaded += other.Uploaded
	s.Downloaded += other.Downloaded
	s.Deleted += other.Deleted
	s.Skipped += other.Skipped
	s.BytesUploaded += other.BytesUploaded
	s.BytesDownloaded += other.BytesDownloaded
	s.Errors += other.Errors
}

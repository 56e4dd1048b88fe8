// Package errors collects the sentinel errors shared across MP, FS, and TP,
// following the taxonomy split into per-item (tolerated) and per-job
// (fatal) failures.
package errors

import "errors"

var (
	// EmptyAfterIngest is fatal: the Orchestrator aborts the job when every
	// source yielded nothing usable.
	EmptyAfterIngest = errors.New("merger is empty after ingesting all sources")

	// ProxyProbeFailed is fatal: the HTTP fetcher could not reach its
	// configured proxy at startup.
	ProxyProbeFailed = errors.New("http proxy probe failed")

	// SchemaInferenceEmpty is fatal to a flush: there was nothing to infer
	// a schema from.
	SchemaInferenceEmpty = errors.New("cannot infer schema from an empty batch")

	// WriteIOError wraps a fatal I/O failure during a columnar flush.
	WriteIOError = errors.New("columnar write I/O error")

	// CatalogOpFailed wraps a fatal failure of a single catalog operation.
	CatalogOpFailed = errors.New("catalog operation failed")

	// PathTraversal is returned to TP clients as 400 and never touches the
	// filesystem.
	PathTraversal = errors.New("path escapes base directory")

	// S3NotConfigured is returned to TP clients as 503.
	S3NotConfigured = errors.New("object store not configured")

	// DatabaseNotConfigured names a missing upload record store. TP's
	// /get_s3_url reports that case, like a missing object store, with
	// S3NotConfigured and a 503.
	DatabaseNotConfigured = errors.New("upload record store not configured")

	// NotFound is returned to TP clients as 404.
	NotFound = errors.New("not found")

	// WrongKind is returned to TP clients as 400 (file requested where a
	// directory exists, or vice versa).
	WrongKind = errors.New("path is not the expected kind")

	// DecompressionFailed is fatal for the shard it occurred on.
	DecompressionFailed = errors.New("decompression failed")
)

// FetchError wraps a SourceUnreachable condition: the orchestrator warns
// and continues with remaining sources.
func FetchError(sourceLabel string, cause error) error {
	return &sourceError{label: sourceLabel, cause: cause}
}

type sourceError struct {
	label string
	cause error
}

func (e *sourceError) Error() string {
	return "source " + e.label + " unreachable: " + e.cause.Error()
}

func (e *sourceError) Unwrap() error { return e.cause }

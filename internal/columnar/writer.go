package columnar

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xzsean666/marketfeed/internal/domain"
	"github.com/xzsean666/marketfeed/internal/errors"
	"github.com/xzsean666/marketfeed/internal/logging"
)

var log = logging.WithComponent("columnar")

// Config configures one Writer instance, one per output file group
// (generic: one per run; per-symbol: one per "<name>-<symbol>").
type Config struct {
	BasePath   string
	Name       string
	Date       time.Time
	BatchSize  int // 0 means unbounded: a single output file
	UseTempDir bool
	Filters    []domain.FilterCondition
}

// Writer buffers rows, infers a schema from the first non-empty batch it
// is asked to flush, and fixes that schema for the rest of its lifetime:
// any row missing a column gets a null in that column; any row carrying
// an extra field not in the schema drops it. A later flush whose rows
// infer to a different schema logs a warning before writing.
type Writer struct {
	cfg     Config
	schema  domain.Schema
	pschema *parquet.Schema
	pending []domain.Row
	seq     uint64
	files   []string
}

// New returns a Writer with no schema committed yet.
func New(cfg Config) *Writer {
	return &Writer{cfg: cfg}
}

// WriteRows buffers rows for the next Flush, applying the OR-semantics
// filter predicates first (rows that match none of cfg.Filters are
// dropped silently, matching an empty filter list accepting everything).
func (w *Writer) WriteRows(rows []domain.Row) {
	for _, row := range rows {
		if domain.RowMatchesAny(row, w.cfg.Filters) {
			w.pending = append(w.pending, row)
		}
	}
}

// Flush commits the schema (on first call) and writes every buffered row
// to one or more output files, splitting into ceil(n/BatchSize) files
// when BatchSize is set. The buffer is cleared on return regardless of
// outcome; callers that want to retry a failed flush must re-submit rows.
func (w *Writer) Flush() error {
	defer func() { w.pending = nil }()

	if len(w.pending) == 0 {
		return nil
	}
	if w.pschema == nil {
		schema := domain.InferSchema(w.pending)
		if len(schema.Columns) == 0 {
			return errors.SchemaInferenceEmpty
		}
		w.schema = schema
		w.pschema = buildParquetSchema(w.cfg.Name, schema)
		log.Debugf("%s: inferred schema with %d columns", w.cfg.Name, len(schema.Columns))
	} else if drifted := domain.InferSchema(w.pending); !drifted.Equal(w.schema) {
		log.Warnf("%s: flush batch has a different shape than the committed schema; unknown fields will be dropped, missing ones nulled", w.cfg.Name)
	}

	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		return w.writeBatch(w.pending, 0, false)
	}

	total := len(w.pending)
	fileCount := (total + batchSize - 1) / batchSize
	for i := 0; i < fileCount; i++ {
		start := i * batchSize
		end := start + batchSize
		if end > total {
			end = total
		}
		if err := w.writeBatch(w.pending[start:end], uint64(i), true); err != nil {
			return err
		}
	}
	return nil
}

// Close reports a warning if rows were buffered but never flushed, then
// returns the list of final file paths this writer produced.
func (w *Writer) Close() []string {
	if len(w.pending) > 0 {
		log.Warnf("%s: closing with %d unflushed rows, they will be dropped", w.cfg.Name, len(w.pending))
	}
	return w.files
}

func (w *Writer) writeBatch(rows []domain.Row, seq uint64, hasSeq bool) error {
	finalPath := FinalFilePath(w.cfg.BasePath, w.cfg.Name, w.cfg.Date, seq, hasSeq, "parquet")
	if err := os.MkdirAll(PartitionDir(w.cfg.BasePath, w.cfg.Date), 0775); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", errors.WriteIOError, PartitionDir(w.cfg.BasePath, w.cfg.Date), err)
	}

	if w.cfg.UseTempDir {
		return w.writeViaScratch(rows, finalPath)
	}
	return w.writeDirect(rows, finalPath)
}

func (w *Writer) writeDirect(rows []domain.Row, finalPath string) error {
	f, err := os.OpenFile(finalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", errors.WriteIOError, finalPath, err)
	}
	defer f.Close()

	if err := w.encode(f, rows); err != nil {
		return err
	}
	if err := f.Chmod(0664); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", errors.WriteIOError, finalPath, err)
	}
	w.files = append(w.files, finalPath)
	return nil
}

// writeViaScratch stages the encoded file under the OS scratch directory,
// fsyncs it, copies it to its final location, and unlinks the scratch
// file — matching the spec's fsync+copy+unlink staging contract for
// output directories shared with a concurrent reader.
func (w *Writer) writeViaScratch(rows []domain.Row, finalPath string) error {
	scratchPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s.%d.%d.tmp", filepath.Base(finalPath), os.Getpid(), time.Now().UnixNano()))

	sf, err := os.OpenFile(scratchPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return fmt.Errorf("%w: open scratch %s: %v", errors.WriteIOError, scratchPath, err)
	}
	if err := w.encode(sf, rows); err != nil {
		sf.Close()
		os.Remove(scratchPath)
		return err
	}
	if err := sf.Sync(); err != nil {
		sf.Close()
		os.Remove(scratchPath)
		return fmt.Errorf("%w: fsync %s: %v", errors.WriteIOError, scratchPath, err)
	}
	if err := sf.Close(); err != nil {
		os.Remove(scratchPath)
		return fmt.Errorf("%w: close scratch %s: %v", errors.WriteIOError, scratchPath, err)
	}

	if err := copyFile(scratchPath, finalPath); err != nil {
		os.Remove(scratchPath)
		return fmt.Errorf("%w: stage %s -> %s: %v", errors.WriteIOError, scratchPath, finalPath, err)
	}
	if err := os.Remove(scratchPath); err != nil {
		log.Warnf("best-effort scratch cleanup failed for %s: %v", scratchPath, err)
	}
	w.files = append(w.files, finalPath)
	return nil
}

func (w *Writer) encode(dst io.Writer, rows []domain.Row) error {
	pw := parquet.NewGenericWriter[map[string]any](dst, w.pschema)
	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = projectRow(row, w.schema)
	}
	if _, err := pw.Write(records); err != nil {
		pw.Close()
		return fmt.Errorf("%w: %v", errors.WriteIOError, err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("%w: %v", errors.WriteIOError, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Chmod(0664)
}

// buildParquetSchema translates an inferred domain.Schema into an
// optional-everywhere parquet schema: any field may be legitimately
// absent from a given row (optional fields such as index_price need not
// appear on every record, for instance), so nothing is declared required.
func buildParquetSchema(name string, schema domain.Schema) *parquet.Schema {
	group := make(parquet.Group, len(schema.Columns))
	for _, col := range schema.Columns {
		group[col.Name] = parquet.Optional(leafNode(col.Type))
	}
	return parquet.NewSchema(name, group)
}

func leafNode(t domain.ColumnType) parquet.Node {
	switch t {
	case domain.Bool:
		return parquet.Leaf(parquet.BooleanType)
	case domain.I64:
		return parquet.Int(64)
	case domain.U64:
		return parquet.Uint(64)
	case domain.F64:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

// projectRow drops fields absent from schema and leaves schema columns
// missing from row as nil, so every record written has exactly the
// committed shape.
func projectRow(row domain.Row, schema domain.Schema) map[string]any {
	out := make(map[string]any, len(schema.Columns))
	for _, col := range schema.Columns {
		out[col.Name] = coerce(row[col.Name], col.Type)
	}
	return out
}

func coerce(v interface{}, t domain.ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case domain.Bool:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	case domain.Utf8:
		return fmt.Sprintf("%v", v)
	default:
		return numericValue(v, t)
	}
}

func numericValue(v interface{}, t domain.ColumnType) interface{} {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case int64:
		f = float64(val)
	case int:
		f = float64(val)
	case float64:
		f = val
	case string:
		n, err := fmt.Sscanf(val, "%f", &f)
		if n != 1 || err != nil {
			return nil
		}
	default:
		n, err := fmt.Sscanf(fmt.Sprintf("%v", val), "%f", &f)
		if n != 1 || err != nil {
			return nil
		}
	}
	switch t {
	case domain.I64:
		return int64(f)
	case domain.U64:
		return uint64(f)
	default:
		return f
	}
}

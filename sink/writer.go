package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/stratumhq/sluice/types"
)

// Result summarizes a finished dataset file.
type Result struct {
	// Created is false when zero rows were appended and no file exists.
	Created bool
	Path    string
	Rows    int64
	Bytes   int64
}

// Writer streams batches into a Snappy-compressed Parquet file in a
// staging directory. The schema is inferred from the first batch; later
// batches must carry the same column set or the append fails with
// ErrSchemaMismatch.
type Writer struct {
	path    string
	file    *os.File
	counter *countingWriter
	pw      *parquet.GenericWriter[map[string]any]
	columns []string
	rows    int64
	closed  bool
}

type countingWriter struct {
	f *os.File
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.n += int64(n)
	return n, err
}

// NewWriter creates a staged dataset file. Nothing is written until the
// first batch arrives.
func NewWriter(stagingDir, fileName string) (*Writer, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, WrapError("stage", stagingDir, err)
	}
	path := filepath.Join(stagingDir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return nil, WrapError("stage", path, err)
	}
	return &Writer{path: path, file: f, counter: &countingWriter{f: f}}, nil
}

// Path returns the staged file location.
func (w *Writer) Path() string { return w.path }

// Append writes one batch. The first batch fixes the schema.
func (w *Writer) Append(b *types.Batch) error {
	if w.closed {
		return fmt.Errorf("append to closed writer %s", w.path)
	}
	if b == nil || len(b.Rows) == 0 {
		return nil
	}
	if w.pw == nil {
		schema, err := inferSchema(b)
		if err != nil {
			return WrapError("write", w.path, err)
		}
		w.columns = append([]string(nil), b.Columns...)
		w.pw = parquet.NewGenericWriter[map[string]any](w.counter, schema,
			parquet.Compression(&parquet.Snappy))
	} else if !sameColumnSet(w.columns, b.Columns) {
		return &StorageError{
			Kind: ErrSchemaMismatch,
			Op:   "write",
			Path: w.path,
			Err:  fmt.Errorf("batch %d columns %v, writer opened with %v", b.Index, b.Columns, w.columns),
		}
	}

	rows := make([]map[string]any, 0, len(b.Rows))
	for _, src := range b.Rows {
		rows = append(rows, normalizeRow(src))
	}
	if _, err := w.pw.Write(rows); err != nil {
		return WrapError("write", w.path, err)
	}
	w.rows += int64(len(rows))
	return nil
}

// Close finalizes the staged file. With zero appended rows the staged
// file is removed and Result.Created is false.
func (w *Writer) Close() (Result, error) {
	if w.closed {
		return Result{}, fmt.Errorf("writer %s already closed", w.path)
	}
	w.closed = true
	if w.pw == nil {
		w.file.Close()
		_ = os.Remove(w.path)
		return Result{Created: false, Path: w.path}, nil
	}
	if err := w.pw.Close(); err != nil {
		w.file.Close()
		return Result{}, WrapError("write", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return Result{}, WrapError("write", w.path, err)
	}
	return Result{Created: true, Path: w.path, Rows: w.rows, Bytes: w.counter.n}, nil
}

// Abort discards the staged file.
func (w *Writer) Abort() {
	w.closed = true
	w.file.Close()
	_ = os.Remove(w.path)
}

// inferSchema builds a Parquet schema from the first batch. Every field
// is optional since relational sources routinely produce NULLs. The Go
// type of the first non-nil value per column decides the physical type;
// columns that are entirely NULL in the first batch fall back to string.
func inferSchema(b *types.Batch) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, col := range b.Columns {
		node, err := leafFor(firstValue(b.Rows, col))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		group[col] = parquet.Optional(node)
	}
	return parquet.NewSchema("dataset", group), nil
}

func firstValue(rows []map[string]any, col string) any {
	for _, row := range rows {
		if v := row[col]; v != nil {
			return v
		}
	}
	return nil
}

func leafFor(v any) (parquet.Node, error) {
	switch v.(type) {
	case nil, string, []byte:
		return parquet.String(), nil
	case int, int32, int64:
		return parquet.Int(64), nil
	case float32, float64:
		return parquet.Leaf(parquet.DoubleType), nil
	case bool:
		return parquet.Leaf(parquet.BooleanType), nil
	case time.Time:
		return parquet.Timestamp(parquet.Millisecond), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// normalizeRow converts source values to forms the Parquet writer
// accepts. Nil values are dropped from the map so optional fields encode
// as NULL.
func normalizeRow(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		switch x := v.(type) {
		case nil:
			// leave absent
		case time.Time:
			out[k] = x.UnixMilli()
		case []byte:
			out[k] = string(x)
		case int:
			out[k] = int64(x)
		case int32:
			out[k] = int64(x)
		case float32:
			out[k] = float64(x)
		default:
			out[k] = v
		}
	}
	return out
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			return false
		}
	}
	return true
}

package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/stratumhq/sluice/types"
)

// Stream yields extraction batches in order. Next returns io.EOF after
// the final batch; Close releases any held connection and is safe to call
// more than once.
type Stream interface {
	Next(ctx context.Context) (*types.Batch, error)
	Close() error
}

// Extract opens a batch stream for the job over the given window. Paged
// templates get one scoped connection per batch; cursor templates hold a
// single connection and chunk the result set client-side.
func (c *Connector) Extract(job types.ExtractionJob, win Window) Stream {
	batchSize := int64(job.BatchSize)
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}
	if Paged(job.QueryTemplate) {
		return &pagedStream{
			src:         c,
			job:         job,
			win:         win,
			batchSize:   batchSize,
			incremental: job.IncrementalColumn,
		}
	}
	return &cursorStream{
		src:         c,
		job:         job,
		win:         win,
		batchSize:   batchSize,
		incremental: job.IncrementalColumn,
	}
}

// pagedStream issues one LIMIT/OFFSET query per batch. Each fetch leases
// its own connection so a slow downstream never pins the source.
type pagedStream struct {
	src         *Connector
	job         types.ExtractionJob
	win         Window
	batchSize   int64
	incremental string

	index int
	done  bool
}

func (s *pagedStream) Next(ctx context.Context) (*types.Batch, error) {
	if s.done {
		return nil, io.EOF
	}
	offset := int64(s.index) * s.batchSize
	query := BuildQuery(s.job.QueryTemplate, s.win, s.batchSize, offset)
	conn, err := s.src.Acquire(ctx)
	if err != nil {
		return nil, &ExtractionError{Job: s.job.Name, BatchIndex: s.index, Err: err}
	}
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		_ = s.src.Release(conn)
		return nil, &ExtractionError{Job: s.job.Name, BatchIndex: s.index, Err: err}
	}
	batch, err := scanBatch(rows, s.index, s.batchSize, s.incremental)
	rows.Close()
	_ = s.src.Release(conn)
	if err != nil {
		return nil, &ExtractionError{Job: s.job.Name, BatchIndex: s.index, Err: err}
	}
	if batch.RowCount() == 0 {
		s.done = true
		return nil, io.EOF
	}
	if batch.RowCount() < s.batchSize {
		s.done = true
	}
	s.index++
	return batch, nil
}

func (s *pagedStream) Close() error {
	s.done = true
	return nil
}

// cursorStream runs the query once and chunks the server cursor into
// batches over a single connection.
type cursorStream struct {
	src         *Connector
	job         types.ExtractionJob
	win         Window
	batchSize   int64
	incremental string

	conn    *sql.Conn
	rows    *sql.Rows
	columns []string
	index   int
	done    bool
}

func (s *cursorStream) Next(ctx context.Context) (*types.Batch, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.rows == nil {
		query := BuildQuery(s.job.QueryTemplate, s.win, 0, 0)
		conn, err := s.src.Acquire(ctx)
		if err != nil {
			return nil, &ExtractionError{Job: s.job.Name, BatchIndex: 0, Err: err}
		}
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			_ = s.src.Release(conn)
			return nil, &ExtractionError{Job: s.job.Name, BatchIndex: 0, Err: err}
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			_ = s.src.Release(conn)
			return nil, &ExtractionError{Job: s.job.Name, BatchIndex: 0, Err: err}
		}
		s.conn, s.rows, s.columns = conn, rows, cols
	}

	batch := &types.Batch{Index: s.index, Columns: s.columns}
	for int64(len(batch.Rows)) < s.batchSize && s.rows.Next() {
		row, err := scanRow(s.rows, s.columns)
		if err != nil {
			s.closeRows()
			return nil, &ExtractionError{Job: s.job.Name, BatchIndex: s.index, Err: err}
		}
		appendRow(batch, row, s.incremental)
	}
	if err := s.rows.Err(); err != nil {
		s.closeRows()
		return nil, &ExtractionError{Job: s.job.Name, BatchIndex: s.index, Err: err}
	}
	if len(batch.Rows) == 0 {
		s.closeRows()
		return nil, io.EOF
	}
	if int64(len(batch.Rows)) < s.batchSize {
		s.closeRows()
	}
	s.index++
	return batch, nil
}

func (s *cursorStream) closeRows() {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	if s.conn != nil {
		_ = s.src.Release(s.conn)
		s.conn = nil
	}
	s.done = true
}

func (s *cursorStream) Close() error {
	s.closeRows()
	return nil
}

func scanBatch(rows *sql.Rows, index int, capHint int64, incremental string) (*types.Batch, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	batch := &types.Batch{Index: index, Columns: cols}
	if capHint > 0 && capHint < 1<<20 {
		batch.Rows = make([]map[string]any, 0, capHint)
	}
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		appendRow(batch, row, incremental)
	}
	return batch, rows.Err()
}

func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		v := values[i]
		// Drivers hand back []byte for text columns; keep rows printable.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col] = v
	}
	return row, nil
}

func appendRow(batch *types.Batch, row map[string]any, incremental string) {
	batch.Rows = append(batch.Rows, row)
	if incremental == "" {
		return
	}
	if v, ok := row[incremental]; ok && v != nil {
		batch.MaxIncremental = types.MaxBoundary(batch.MaxIncremental, boundaryString(v))
	}
}

func boundaryString(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

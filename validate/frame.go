// Package validate evaluates declarative data-quality rules against an
// extracted dataset.
package validate

import (
	"fmt"

	"github.com/stratumhq/sluice/types"
)

// Frame is the in-memory accumulation of all batches for one job run.
// Column order follows the first appended batch.
type Frame struct {
	columns []string
	rows    []map[string]any
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// Append adds a batch to the frame. The first batch fixes the column set;
// subsequent batches must match it.
func (f *Frame) Append(b *types.Batch) error {
	if b == nil {
		return nil
	}
	if f.columns == nil {
		f.columns = append([]string(nil), b.Columns...)
	} else if !sameColumns(f.columns, b.Columns) {
		return fmt.Errorf("batch %d column set %v does not match %v", b.Index, b.Columns, f.columns)
	}
	f.rows = append(f.rows, b.Rows...)
	return nil
}

// Columns returns the frame's column names in source order.
func (f *Frame) Columns() []string { return f.columns }

// Rows returns all accumulated rows.
func (f *Frame) Rows() []map[string]any { return f.rows }

// RowCount returns the number of accumulated rows.
func (f *Frame) RowCount() int64 { return int64(len(f.rows)) }

// HasColumn reports whether the frame contains the named column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.columns {
		if c == name {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
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

package types

// Batch is one page of extracted rows. Column order is preserved from the
// source result set so downstream writers emit a stable schema.
type Batch struct {
	Index   int
	Columns []string
	Rows    []map[string]any

	// MaxIncremental is the greatest incremental-column value observed in
	// this batch, empty when the job is not incremental.
	MaxIncremental string
}

// RowCount returns the number of rows in the batch.
func (b *Batch) RowCount() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Rows))
}

// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is
// a leaf package with no internal dependencies. Validation findings are
// absorbed from the report at job completion rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Job lifecycle
	JobsStarted   int64 `json:"jobs_started"`
	JobsCommitted int64 `json:"jobs_committed"`
	JobsFailed    int64 `json:"jobs_failed"`
	JobsPartial   int64 `json:"jobs_partial"`

	// Extraction
	BatchesExtracted int64 `json:"batches_extracted"`
	RowsExtracted    int64 `json:"rows_extracted"`
	ConnectRetries   int64 `json:"connect_retries"`

	// Storage
	RowsWritten       int64 `json:"rows_written"`
	BytesWritten      int64 `json:"bytes_written"`
	StoreWriteSuccess int64 `json:"store_write_success"`
	StoreWriteFailure int64 `json:"store_write_failure"`

	// Validation (absorbed from reports at job completion)
	ValidationCritical int64 `json:"validation_critical"`
	ValidationWarning  int64 `json:"validation_warning"`

	// Dimensions (informational, set at construction)
	StorageBackend string `json:"storage_backend"`
	SourceDriver   string `json:"source_driver"`
	RunID          string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	jobsStarted   int64
	jobsCommitted int64
	jobsFailed    int64
	jobsPartial   int64

	batchesExtracted int64
	rowsExtracted    int64
	connectRetries   int64

	rowsWritten       int64
	bytesWritten      int64
	storeWriteSuccess int64
	storeWriteFailure int64

	validationCritical int64
	validationWarning  int64

	storageBackend string
	sourceDriver   string
	runID          string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storageBackend, sourceDriver, runID string) *Collector {
	return &Collector{
		storageBackend: storageBackend,
		sourceDriver:   sourceDriver,
		runID:          runID,
	}
}

// IncJobStarted records a job start.
func (c *Collector) IncJobStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsStarted++
	c.mu.Unlock()
}

// IncJobCommitted records a job that committed its manifest.
func (c *Collector) IncJobCommitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsCommitted++
	c.mu.Unlock()
}

// IncJobFailed records a job failure with no committed output.
func (c *Collector) IncJobFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsFailed++
	c.mu.Unlock()
}

// IncJobPartial records a job that committed some batches before failing.
func (c *Collector) IncJobPartial() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.jobsPartial++
	c.mu.Unlock()
}

// AddBatch records one extracted batch and its row count.
func (c *Collector) AddBatch(rows int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesExtracted++
	c.rowsExtracted += rows
	c.mu.Unlock()
}

// IncConnectRetry records one connection retry attempt.
func (c *Collector) IncConnectRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.connectRetries++
	c.mu.Unlock()
}

// --- Storage ---
// Store counters are per-call, not per-row. A single publish of N rows
// counts as 1 success; row granularity is tracked by AddWritten.

// AddWritten records rows and bytes landed in the dataset file.
func (c *Collector) AddWritten(rows, bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rowsWritten += rows
	c.bytesWritten += bytes
	c.mu.Unlock()
}

// IncStoreWriteSuccess records a successful store write operation.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWriteSuccess++
	c.mu.Unlock()
}

// IncStoreWriteFailure records a failed store write operation.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWriteFailure++
	c.mu.Unlock()
}

// AbsorbValidation copies finding counts from a completed job's
// validation report into the collector.
func (c *Collector) AbsorbValidation(critical, warning int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.validationCritical += critical
	c.validationWarning += warning
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		JobsStarted:   c.jobsStarted,
		JobsCommitted: c.jobsCommitted,
		JobsFailed:    c.jobsFailed,
		JobsPartial:   c.jobsPartial,

		BatchesExtracted: c.batchesExtracted,
		RowsExtracted:    c.rowsExtracted,
		ConnectRetries:   c.connectRetries,

		RowsWritten:       c.rowsWritten,
		BytesWritten:      c.bytesWritten,
		StoreWriteSuccess: c.storeWriteSuccess,
		StoreWriteFailure: c.storeWriteFailure,

		ValidationCritical: c.validationCritical,
		ValidationWarning:  c.validationWarning,

		StorageBackend: c.storageBackend,
		SourceDriver:   c.sourceDriver,
		RunID:          c.runID,
	}
}

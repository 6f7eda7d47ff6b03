// Package types defines core domain types for the Sluice pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// DefaultBatchSize is the batch size used when a job does not set one.
const DefaultBatchSize = 50000

// ExtractionJob identifies one logical extraction target.
// Built from configuration at orchestrator start; immutable for the run.
type ExtractionJob struct {
	// Name uniquely identifies the job. Used as the watermark key.
	Name string
	// QueryTemplate is the source query with {start}/{end} placeholders,
	// and optionally {limit}/{offset} for paged extraction.
	QueryTemplate string
	// BatchSize bounds the number of rows per batch.
	BatchSize int
	// OutputPath is the storage key prefix for the job's datasets.
	OutputPath string
	// Rules is the ordered declarative validation rule set.
	Rules []ValidationRule
	// IncrementalColumn enables incremental extraction when non-empty.
	// Its maximum observed value advances the watermark on commit.
	IncrementalColumn string
	// Timeout is the per-job wall-clock budget. Zero means no budget.
	Timeout time.Duration
}

// Validate checks structural requirements before a run starts.
func (j *ExtractionJob) Validate() error {
	if j.Name == "" {
		return errors.New("job name must be non-empty")
	}
	if j.QueryTemplate == "" {
		return fmt.Errorf("job %s: query template must be non-empty", j.Name)
	}
	if j.BatchSize <= 0 {
		return fmt.Errorf("job %s: batch size must be > 0, got %d", j.Name, j.BatchSize)
	}
	if j.OutputPath == "" {
		return fmt.Errorf("job %s: output path must be non-empty", j.Name)
	}
	for i, r := range j.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("job %s: rule %d: %w", j.Name, i, err)
		}
	}
	return nil
}

// JobStatus is the state of a job run within the orchestrator state machine.
type JobStatus string

const (
	// StatusIdle is the initial state before the job starts.
	StatusIdle JobStatus = "idle"
	// StatusConnectionCheck verifies source connectivity before extracting.
	StatusConnectionCheck JobStatus = "connection_check"
	// StatusExtracting covers the batch fetch/write loop.
	StatusExtracting JobStatus = "extracting"
	// StatusValidating runs the rule set over the completed dataset.
	StatusValidating JobStatus = "validating"
	// StatusWritingManifest persists the dataset manifest.
	StatusWritingManifest JobStatus = "writing_manifest"
	// StatusCommitted is the terminal success state; the watermark advanced.
	StatusCommitted JobStatus = "committed"
	// StatusFailed is terminal: no batch was committed. Watermark untouched.
	StatusFailed JobStatus = "failed"
	// StatusPartialFailure is terminal: batches were written but the run did
	// not commit. The dataset is retained for inspection; watermark untouched.
	StatusPartialFailure JobStatus = "partial_failure"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCommitted, StatusFailed, StatusPartialFailure:
		return true
	}
	return false
}

// Package adapter defines the notification boundary for completed jobs.
//
// Adapters publish job completion notifications to downstream systems.
// The pipeline owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// JobCompletedEvent is the payload published when a job run finishes.
type JobCompletedEvent struct {
	EventType        string `json:"event_type"` // always "job_completed"
	RunID            string `json:"run_id"`
	Job              string `json:"job"`
	Status           string `json:"status"` // committed, failed, partial_failure
	RowCount         int64  `json:"row_count"`
	DurationMs       int64  `json:"duration_ms"`
	OutputPath       string `json:"output_path,omitempty"`
	ManifestPath     string `json:"manifest_path,omitempty"`
	CriticalFindings int    `json:"critical_findings"`
	WarningFindings  int    `json:"warning_findings"`
	Timestamp        string `json:"timestamp"` // ISO 8601
}

// Adapter publishes job completion events to a downstream system.
// Implementations must be safe for reuse across jobs in one run.
type Adapter interface {
	// Publish sends a job completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *JobCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

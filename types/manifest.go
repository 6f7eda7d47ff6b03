package types

import "time"

// DatasetManifest is the committed metadata record for one job run. It is
// written beside the dataset file and is the unit of lineage: a reader can
// reconstruct what was extracted, when, from which window, and how it
// validated without touching the dataset itself.
type DatasetManifest struct {
	JobName     string    `json:"job_name"`
	RunID       string    `json:"run_id"`
	ExtractedAt time.Time `json:"extracted_at"`

	RowCount   int64 `json:"row_count"`
	ByteSize   int64 `json:"byte_size"`
	BatchCount int   `json:"batch_count"`

	SourceQuery string `json:"source_query"`
	Incremental bool   `json:"incremental"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`

	Validation ValidationReport `json:"validation"`

	OutputFile string    `json:"output_file"`
	Status     JobStatus `json:"status"`
	DurationMs int64     `json:"duration_ms"`
}

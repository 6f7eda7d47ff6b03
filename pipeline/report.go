package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stratumhq/sluice/metrics"
	"github.com/stratumhq/sluice/types"
)

// Exit codes for the run surface.
const (
	ExitOK             = 0
	ExitPartialFailure = 1
	ExitJobFailed      = 2
	ExitConfigError    = 3
)

// JobReport summarizes one job's outcome within a run.
type JobReport struct {
	Job        string          `json:"job"`
	Status     types.JobStatus `json:"status"`
	Rows       int64           `json:"rows"`
	Batches    int             `json:"batches"`
	Bytes      int64           `json:"bytes"`
	DurationMs int64           `json:"duration_ms"`
	Critical   int             `json:"critical_findings"`
	Warning    int             `json:"warning_findings"`
	Output     string          `json:"output,omitempty"`
	Manifest   string          `json:"manifest,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// RunReport is the machine-readable summary of a whole pipeline run.
type RunReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // ok, partial_failure, failed
	Jobs       []JobReport       `json:"jobs"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty"`
}

func buildRunReport(runID string, started, finished time.Time, jobs []JobReport, collector *metrics.Collector) *RunReport {
	status := "ok"
	for _, j := range jobs {
		switch j.Status {
		case types.StatusFailed:
			status = "failed"
		case types.StatusPartialFailure:
			if status == "ok" {
				status = "partial_failure"
			}
		}
	}
	report := &RunReport{
		RunID:      runID,
		StartedAt:  started,
		DurationMs: finished.Sub(started).Milliseconds(),
		Status:     status,
		Jobs:       jobs,
	}
	if collector != nil {
		snap := collector.Snapshot()
		report.Metrics = &snap
	}
	return report
}

// ExitCode maps the run outcome to the process exit code.
func (r *RunReport) ExitCode() int {
	switch r.Status {
	case "failed":
		return ExitJobFailed
	case "partial_failure":
		return ExitPartialFailure
	default:
		return ExitOK
	}
}

// WriteRunReport writes the report as indented JSON to path.
// Path "-" writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stderr.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

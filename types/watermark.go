package types

import (
	"strconv"
	"time"
)

// BeginningOfTime is the boundary used when no watermark exists for a job.
// The first run of every incremental job is a full load.
const BeginningOfTime = "0001-01-01T00:00:00Z"

// Watermark is the last successfully processed extraction boundary for a
// named job. Owned exclusively by the watermark store: read once at job
// start, written at most once on successful completion.
type Watermark struct {
	JobName  string    `msgpack:"job_name" json:"job_name"`
	Boundary string    `msgpack:"boundary" json:"boundary"`
	LastRun  time.Time `msgpack:"last_run" json:"last_run"`
}

// DefaultWatermark returns the beginning-of-time watermark for a job.
func DefaultWatermark(jobName string) Watermark {
	return Watermark{JobName: jobName, Boundary: BeginningOfTime}
}

// boundary value layouts tried in order when comparing as timestamps.
var boundaryTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseBoundaryTime(s string) (time.Time, bool) {
	for _, layout := range boundaryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CompareBoundary orders two boundary values. Both-timestamp and
// both-numeric comparisons are typed; anything else falls back to
// lexicographic order. Returns -1, 0, or 1.
func CompareBoundary(a, b string) int {
	if at, ok := parseBoundaryTime(a); ok {
		if bt, ok := parseBoundaryTime(b); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if af, err := strconv.ParseFloat(a, 64); err == nil {
		if bf, err := strconv.ParseFloat(b, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MaxBoundary returns the greater of two boundary values.
// Empty strings are treated as absent and never win.
func MaxBoundary(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if CompareBoundary(a, b) >= 0 {
		return a
	}
	return b
}

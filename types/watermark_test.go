package types

import "testing"

func TestCompareBoundary(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"timestamps ordered", "2026-08-01T00:00:00Z", "2026-08-02T00:00:00Z", -1},
		{"timestamps equal across layouts", "2026-08-01T00:00:00Z", "2026-08-01 00:00:00", 0},
		{"date only", "2026-08-02", "2026-08-01", 1},
		{"numeric beats lexicographic", "9", "10", -1},
		{"numeric equal", "42", "42.0", 0},
		{"lexicographic fallback", "abc", "abd", -1},
		{"mixed falls back to lexicographic", "2026-08-01T00:00:00Z", "99", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareBoundary(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareBoundary(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMaxBoundaryEmptyNeverWins(t *testing.T) {
	if got := MaxBoundary("", "2026-08-01T00:00:00Z"); got != "2026-08-01T00:00:00Z" {
		t.Errorf("MaxBoundary(empty, t) = %q", got)
	}
	if got := MaxBoundary("2026-08-01T00:00:00Z", ""); got != "2026-08-01T00:00:00Z" {
		t.Errorf("MaxBoundary(t, empty) = %q", got)
	}
	if got := MaxBoundary("", ""); got != "" {
		t.Errorf("MaxBoundary(empty, empty) = %q", got)
	}
}

func TestMaxBoundaryPicksGreater(t *testing.T) {
	if got := MaxBoundary("2026-08-01T00:00:00Z", "2026-08-02T00:00:00Z"); got != "2026-08-02T00:00:00Z" {
		t.Errorf("MaxBoundary = %q", got)
	}
}

func TestDefaultWatermark(t *testing.T) {
	wm := DefaultWatermark("visits")
	if wm.JobName != "visits" {
		t.Errorf("JobName = %q", wm.JobName)
	}
	if wm.Boundary != BeginningOfTime {
		t.Errorf("Boundary = %q, want beginning of time", wm.Boundary)
	}
}

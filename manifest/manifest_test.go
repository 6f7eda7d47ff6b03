package manifest

import (
	"testing"
	"time"

	"github.com/stratumhq/sluice/sink"
	"github.com/stratumhq/sluice/types"
)

func stamp(t *testing.T, m types.DatasetManifest, root string) {
	t.Helper()
	store, err := sink.NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	if _, err := NewRecorder(store).Record(t.Context(), m); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestRecordAndLoadHistory(t *testing.T) {
	root := t.TempDir()
	older := types.DatasetManifest{
		JobName:     "visits",
		RunID:       "run-1",
		ExtractedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		RowCount:    100,
		OutputFile:  "visits/visits-20260829.parquet",
		Status:      types.StatusCommitted,
	}
	newer := older
	newer.RunID = "run-2"
	newer.ExtractedAt = older.ExtractedAt.Add(24 * time.Hour)
	newer.OutputFile = "visits/visits-20260830.parquet"

	stamp(t, older, root)
	stamp(t, newer, root)

	history, err := LoadHistory(root, "visits")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d manifests, want 2", len(history))
	}
	if history[0].RunID != "run-2" {
		t.Errorf("history[0].RunID = %q, want newest first", history[0].RunID)
	}
}

func TestKeyDerivation(t *testing.T) {
	m := types.DatasetManifest{JobName: "visits", OutputFile: "visits/visits-20260830.parquet"}
	if got, want := Key(m), "visits/visits-20260830.manifest.json"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	// A run with no published dataset keys off the run ID.
	empty := types.DatasetManifest{JobName: "visits", RunID: "run-7"}
	if got, want := Key(empty), "visits/visits-run-7.manifest.json"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestLoadAllSkipsStagingDir(t *testing.T) {
	root := t.TempDir()
	stamp(t, types.DatasetManifest{
		JobName:     "visits",
		RunID:       "run-1",
		ExtractedAt: time.Now(),
		OutputFile:  "visits/visits.parquet",
	}, root)

	all, err := LoadAll(root)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d manifests, want 1", len(all))
	}
}

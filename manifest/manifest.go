// Package manifest records dataset lineage metadata beside published
// dataset files.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stratumhq/sluice/sink"
	"github.com/stratumhq/sluice/types"
)

// Key returns the storage key for a manifest, derived from the dataset
// file it describes. Runs that published no dataset (an empty incremental
// window) key off the run ID instead.
func Key(m types.DatasetManifest) string {
	if m.OutputFile == "" {
		return m.JobName + "/" + m.JobName + "-" + m.RunID + ".manifest.json"
	}
	base := filepath.Base(m.OutputFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return m.JobName + "/" + base + ".manifest.json"
}

// Recorder writes manifests through the sink store so they land on the
// same backend as the datasets they describe.
type Recorder struct {
	store sink.Store
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store sink.Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists the manifest. The manifest is the commit record for a
// run: once it exists the dataset is considered published.
func (r *Recorder) Record(ctx context.Context, m types.DatasetManifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest for %s: %w", m.JobName, err)
	}
	key := Key(m)
	if err := r.store.PutBytes(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// LoadHistory reads all committed manifests for a job from a filesystem
// store root, newest first. Used by the inspect and stats surfaces.
func LoadHistory(root, jobName string) ([]types.DatasetManifest, error) {
	pattern := filepath.Join(root, jobName, "*.manifest.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob manifests: %w", err)
	}
	out := make([]types.DatasetManifest, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", p, err)
		}
		var m types.DatasetManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", p, err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExtractedAt.After(out[j].ExtractedAt)
	})
	return out, nil
}

// LoadAll reads manifests for every job directory under root, newest
// first across jobs.
func LoadAll(root string) ([]types.DatasetManifest, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}
	var out []types.DatasetManifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ms, err := LoadHistory(root, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExtractedAt.After(out[j].ExtractedAt)
	})
	return out, nil
}

// Package watermark persists per-job extraction boundaries across runs.
package watermark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/stratumhq/sluice/types"
)

const stateVersion = 1

// Store reads and writes job watermarks. Read returns the
// beginning-of-time default when no watermark exists, so callers never
// special-case a first run.
type Store interface {
	Read(jobName string) (types.Watermark, error)
	Write(wm types.Watermark) error
	All() ([]types.Watermark, error)
	Reset(jobName string) error
}

type fileState struct {
	Version int                        `msgpack:"version"`
	Jobs    map[string]types.Watermark `msgpack:"jobs"`
}

// FileStore keeps all watermarks in a single msgpack file. Writes go
// through a temp file and rename so a crash mid-write never corrupts
// previously committed state.
type FileStore struct {
	path string

	mu    sync.Mutex
	state fileState
}

// NewFileStore opens (or lazily creates) the watermark file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		state: fileState{Version: stateVersion, Jobs: map[string]types.Watermark{}},
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermark file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := msgpack.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("decode watermark file %s: %w", path, err)
	}
	if s.state.Jobs == nil {
		s.state.Jobs = map[string]types.Watermark{}
	}
	return s, nil
}

// Read returns the watermark for a job, or the beginning-of-time default
// when none has been committed.
func (s *FileStore) Read(jobName string) (types.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wm, ok := s.state.Jobs[jobName]; ok {
		return wm, nil
	}
	return types.DefaultWatermark(jobName), nil
}

// Write commits a watermark. The file on disk is fully rewritten.
func (s *FileStore) Write(wm types.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Jobs[wm.JobName] = wm
	return s.flushLocked()
}

// Reset removes a job's watermark, forcing its next run to be a full load.
func (s *FileStore) Reset(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Jobs[jobName]; !ok {
		return nil
	}
	delete(s.state.Jobs, jobName)
	return s.flushLocked()
}

// All returns every committed watermark, sorted by job name.
func (s *FileStore) All() ([]types.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Watermark, 0, len(s.state.Jobs))
	for _, wm := range s.state.Jobs {
		out = append(out, wm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })
	return out, nil
}

func (s *FileStore) flushLocked() error {
	data, err := msgpack.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode watermark state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watermark dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watermark temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit watermark file: %w", err)
	}
	return nil
}

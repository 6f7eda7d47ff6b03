package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/stratumhq/sluice/adapter"
	"github.com/stratumhq/sluice/source"
	"github.com/stratumhq/sluice/types"
)

// StubSource is a scripted Source for tests. Batches are replayed in
// order; FailAt injects an extraction error after that many successful
// batches (-1 disables injection).
type StubSource struct {
	CheckErr error
	Batches  []*types.Batch
	FailAt   int
	FailErr  error

	mu      sync.Mutex
	Windows []source.Window
	Checks  int
}

// NewStubSource returns a stub that yields the given batches.
func NewStubSource(batches ...*types.Batch) *StubSource {
	return &StubSource{Batches: batches, FailAt: -1}
}

func (s *StubSource) Check(context.Context) error {
	s.mu.Lock()
	s.Checks++
	s.mu.Unlock()
	return s.CheckErr
}

func (s *StubSource) Extract(_ types.ExtractionJob, win source.Window) source.Stream {
	s.mu.Lock()
	s.Windows = append(s.Windows, win)
	s.mu.Unlock()
	return &stubStream{src: s}
}

type stubStream struct {
	src *StubSource
	pos int
}

func (st *stubStream) Next(context.Context) (*types.Batch, error) {
	if st.src.FailAt >= 0 && st.pos == st.src.FailAt {
		return nil, st.src.FailErr
	}
	if st.pos >= len(st.src.Batches) {
		return nil, io.EOF
	}
	b := st.src.Batches[st.pos]
	st.pos++
	return b, nil
}

func (st *stubStream) Close() error { return nil }

// StubAdapter records published events and optionally fails.
type StubAdapter struct {
	PublishErr error

	mu     sync.Mutex
	Events []*adapter.JobCompletedEvent
	Closed bool
}

func (a *StubAdapter) Publish(_ context.Context, event *adapter.JobCompletedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PublishErr != nil {
		return a.PublishErr
	}
	a.Events = append(a.Events, event)
	return nil
}

func (a *StubAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Closed = true
	return nil
}

// Published returns a snapshot of recorded events.
func (a *StubAdapter) Published() []*adapter.JobCompletedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*adapter.JobCompletedEvent(nil), a.Events...)
}

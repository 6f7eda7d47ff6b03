// Package pipeline orchestrates extraction runs: connection check,
// batched extraction, validation, dataset publication, manifest commit
// and watermark advancement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stratumhq/sluice/adapter"
	"github.com/stratumhq/sluice/log"
	"github.com/stratumhq/sluice/manifest"
	"github.com/stratumhq/sluice/metrics"
	"github.com/stratumhq/sluice/retry"
	"github.com/stratumhq/sluice/sink"
	"github.com/stratumhq/sluice/source"
	"github.com/stratumhq/sluice/types"
	"github.com/stratumhq/sluice/validate"
	"github.com/stratumhq/sluice/watermark"
)

// ErrTimeout indicates a job exceeded its wall-clock budget.
var ErrTimeout = errors.New("job timeout exceeded")

// Source abstracts the extraction side of a database connector.
type Source interface {
	Check(ctx context.Context) error
	Extract(job types.ExtractionJob, win source.Window) source.Stream
}

// Config wires a single pipeline run.
type Config struct {
	RunID string
	Jobs  []types.ExtractionJob

	Source     Source
	Watermarks watermark.Store
	Store      sink.Store
	StagingDir string
	Recorder   *manifest.Recorder
	Adapter    adapter.Adapter
	Collector  *metrics.Collector
	Logger     *log.Logger
	Clock      retry.Clock

	// WindowStart/WindowEnd override the derived extraction window.
	WindowStart string
	WindowEnd   string
	// Full forces a beginning-of-time window regardless of watermarks.
	Full bool
	// Parallel caps concurrently running jobs. Zero or one is serial.
	Parallel int
}

// Runner executes extraction jobs.
type Runner struct {
	cfg Config
}

// NewRunner validates the wiring and returns a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.RunID == "" {
		return nil, errors.New("run ID is required")
	}
	if cfg.Source == nil || cfg.Watermarks == nil || cfg.Store == nil || cfg.Recorder == nil {
		return nil, errors.New("source, watermark store, sink store and recorder are required")
	}
	for i := range cfg.Jobs {
		if err := cfg.Jobs[i].Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(".", ".staging")
	}
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger(cfg.RunID).WithOutput(io.Discard)
	}
	return &Runner{cfg: cfg}, nil
}

// Run executes every configured job. Jobs are isolated: one failure
// never stops the siblings. The returned report always covers all jobs;
// the error is reserved for wiring problems, not job outcomes.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	started := r.cfg.Clock.Now()
	reports := make([]JobReport, len(r.cfg.Jobs))

	parallel := r.cfg.Parallel
	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, job := range r.cfg.Jobs {
		wg.Add(1)
		go func(i int, job types.ExtractionJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[i] = r.runJob(ctx, job)
		}(i, job)
	}
	wg.Wait()

	report := buildRunReport(r.cfg.RunID, started, r.cfg.Clock.Now(), reports, r.cfg.Collector)
	return report, nil
}

// jobState threads mutable progress through the run stages.
type jobState struct {
	job     types.ExtractionJob
	logger  *log.Logger
	started time.Time

	win     source.Window
	frame   *validate.Frame
	writer  *sink.Writer
	batches int
	rows    int64
	maxInc  string

	// extractErr is a mid-extraction failure; batches already appended
	// stay in the staged file.
	extractErr error
}

func (r *Runner) runJob(ctx context.Context, job types.ExtractionJob) JobReport {
	logger := r.cfg.Logger.WithJob(job.Name)
	started := r.cfg.Clock.Now()
	r.cfg.Collector.IncJobStarted()
	logger.Info("job started", map[string]any{"batch_size": job.BatchSize})

	rep := JobReport{Job: job.Name, Status: types.StatusConnectionCheck}
	fail := func(err error) JobReport {
		r.cfg.Collector.IncJobFailed()
		rep.Status = types.StatusFailed
		rep.Error = err.Error()
		rep.DurationMs = r.cfg.Clock.Now().Sub(started).Milliseconds()
		logger.Error("job failed", map[string]any{"error": err.Error()})
		r.notify(ctx, rep, "")
		return rep
	}

	if err := r.cfg.Source.Check(ctx); err != nil {
		return fail(fmt.Errorf("connection check: %w", err))
	}

	wm, err := r.cfg.Watermarks.Read(job.Name)
	if err != nil {
		return fail(fmt.Errorf("read watermark: %w", err))
	}
	win := r.deriveWindow(wm)
	logger.Debug("extraction window", map[string]any{"start": win.Start, "end": win.End})

	st := &jobState{
		job:     job,
		logger:  logger,
		started: started,
		win:     win,
		frame:   validate.NewFrame(),
	}

	rep.Status = types.StatusExtracting
	if err := r.extract(ctx, st); err != nil && st.batches == 0 {
		// Nothing extracted: no dataset, no manifest.
		if st.writer != nil {
			st.writer.Abort()
		}
		return fail(err)
	}

	rep.Status = types.StatusValidating
	report := types.BuildReport(validate.Validate(st.frame, job.Rules, r.cfg.Clock.Now()))
	r.cfg.Collector.AbsorbValidation(int64(report.CriticalFailures()), int64(report.WarningFailures()))
	rep.Critical = report.CriticalFailures()
	rep.Warning = report.WarningFailures()

	rep.Status = types.StatusWritingManifest
	outputKey := datasetKey(job, st.started)
	var result sink.Result
	if st.writer != nil {
		result, err = st.writer.Close()
		if err != nil {
			st.writer.Abort()
			return fail(fmt.Errorf("finalize dataset: %w", err))
		}
	}
	if result.Created {
		if err := r.cfg.Store.Publish(ctx, result.Path, outputKey); err != nil {
			r.cfg.Collector.IncStoreWriteFailure()
			return fail(err)
		}
		r.cfg.Collector.IncStoreWriteSuccess()
		r.cfg.Collector.AddWritten(result.Rows, result.Bytes)
		rep.Output = outputKey
	}

	// Terminal status. A partial extraction keeps its committed batches
	// but never counts as success; a failed validation likewise ends in
	// partial failure, with the dataset retained for inspection.
	switch {
	case st.extractErr != nil:
		rep.Status = types.StatusPartialFailure
		rep.Error = st.extractErr.Error()
		r.cfg.Collector.IncJobPartial()
	case report.Overall == types.ValidationFailed:
		rep.Status = types.StatusPartialFailure
		rep.Error = "validation failed"
		r.cfg.Collector.IncJobPartial()
	default:
		rep.Status = types.StatusCommitted
		r.cfg.Collector.IncJobCommitted()
	}

	now := r.cfg.Clock.Now()
	rep.Rows = st.rows
	rep.Batches = st.batches
	rep.Bytes = result.Bytes
	rep.DurationMs = now.Sub(started).Milliseconds()

	m := types.DatasetManifest{
		JobName:     job.Name,
		RunID:       r.cfg.RunID,
		ExtractedAt: now,
		RowCount:    st.rows,
		ByteSize:    result.Bytes,
		BatchCount:  st.batches,
		SourceQuery: job.QueryTemplate,
		Incremental: job.IncrementalColumn != "",
		WindowStart: win.Start,
		WindowEnd:   win.End,
		Validation:  report,
		OutputFile:  rep.Output,
		Status:      rep.Status,
		DurationMs:  rep.DurationMs,
	}
	manifestKey, err := r.cfg.Recorder.Record(ctx, m)
	if err != nil {
		r.cfg.Collector.IncStoreWriteFailure()
		// The dataset may already be published; surface as failure so
		// the watermark stays put and a re-run repeats the window.
		rep.Status = types.StatusFailed
		rep.Error = fmt.Sprintf("record manifest: %v", err)
		r.notify(ctx, rep, "")
		return rep
	}
	r.cfg.Collector.IncStoreWriteSuccess()
	rep.Manifest = manifestKey

	if rep.Status == types.StatusCommitted {
		// Full-load jobs keep their boundary but still record the run,
		// so they show up with a last-run timestamp.
		boundary := wm.Boundary
		if job.IncrementalColumn != "" {
			boundary = types.MaxBoundary(wm.Boundary, st.maxInc)
		}
		err := r.cfg.Watermarks.Write(types.Watermark{
			JobName:  job.Name,
			Boundary: boundary,
			LastRun:  now,
		})
		if err != nil {
			// Extraction committed but the boundary did not: the next
			// run re-extracts this window, which is safe but noisy.
			logger.Warn("watermark write failed", map[string]any{"error": err.Error()})
		} else {
			logger.Info("watermark recorded", map[string]any{"boundary": boundary})
		}
	}

	logger.Info("job finished", map[string]any{
		"status":  string(rep.Status),
		"rows":    st.rows,
		"batches": st.batches,
	})
	r.notify(ctx, rep, manifestKey)
	return rep
}

// extract drains the batch stream into the frame and staged dataset
// file. Fetches are pipelined one batch deep so the writer and the next
// query overlap. Returns an error only when zero batches landed; later
// failures are recorded in st.extractErr for partial handling.
func (r *Runner) extract(ctx context.Context, st *jobState) error {
	stream := r.cfg.Source.Extract(st.job, st.win)
	defer stream.Close()

	var deadline time.Time
	if st.job.Timeout > 0 {
		deadline = st.started.Add(st.job.Timeout)
	}

	type fetched struct {
		batch *types.Batch
		err   error
	}
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()
	ch := make(chan fetched, 1)
	go func() {
		defer close(ch)
		for {
			b, err := stream.Next(fetchCtx)
			select {
			case ch <- fetched{batch: b, err: err}:
			case <-fetchCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	fileName := filepath.Base(datasetKey(st.job, st.started))
	for f := range ch {
		if f.err == io.EOF {
			return nil
		}
		if f.err != nil {
			st.extractErr = f.err
			break
		}
		if !deadline.IsZero() && r.cfg.Clock.Now().After(deadline) {
			st.extractErr = fmt.Errorf("%w after %d batches", ErrTimeout, st.batches)
			break
		}
		if err := ctx.Err(); err != nil {
			st.extractErr = err
			break
		}

		if st.writer == nil {
			w, err := sink.NewWriter(r.cfg.StagingDir, fileName)
			if err != nil {
				st.extractErr = err
				break
			}
			st.writer = w
		}
		// Schema drift mid-run is job-fatal; earlier batches stay
		// committed in the staged file.
		if err := st.frame.Append(f.batch); err != nil {
			st.extractErr = fmt.Errorf("%w: %v", sink.ErrSchemaMismatch, err)
			break
		}
		if err := st.writer.Append(f.batch); err != nil {
			st.extractErr = err
			break
		}
		st.batches++
		st.rows += f.batch.RowCount()
		st.maxInc = types.MaxBoundary(st.maxInc, f.batch.MaxIncremental)
		r.cfg.Collector.AddBatch(f.batch.RowCount())
		st.logger.Debug("batch extracted", map[string]any{
			"batch": f.batch.Index,
			"rows":  f.batch.RowCount(),
		})
	}
	if st.batches == 0 && st.extractErr != nil {
		return st.extractErr
	}
	return nil
}

// deriveWindow resolves the extraction window from overrides and the
// committed watermark.
func (r *Runner) deriveWindow(wm types.Watermark) source.Window {
	win := source.Window{
		Start: wm.Boundary,
		End:   r.cfg.Clock.Now().UTC().Format(time.RFC3339),
	}
	if r.cfg.Full {
		win.Start = types.BeginningOfTime
	}
	if r.cfg.WindowStart != "" {
		win.Start = r.cfg.WindowStart
	}
	if r.cfg.WindowEnd != "" {
		win.End = r.cfg.WindowEnd
	}
	return win
}

// notify publishes the job outcome through the adapter, best effort.
func (r *Runner) notify(ctx context.Context, rep JobReport, manifestKey string) {
	if r.cfg.Adapter == nil {
		return
	}
	event := &adapter.JobCompletedEvent{
		EventType:        "job_completed",
		RunID:            r.cfg.RunID,
		Job:              rep.Job,
		Status:           string(rep.Status),
		RowCount:         rep.Rows,
		DurationMs:       rep.DurationMs,
		OutputPath:       rep.Output,
		ManifestPath:     manifestKey,
		CriticalFindings: rep.Critical,
		WarningFindings:  rep.Warning,
		Timestamp:        r.cfg.Clock.Now().UTC().Format(time.RFC3339),
	}
	if err := r.cfg.Adapter.Publish(ctx, event); err != nil {
		r.cfg.Logger.WithJob(rep.Job).Warn("notification failed", map[string]any{"error": err.Error()})
	}
}

// datasetKey names the published dataset file for a job run.
func datasetKey(job types.ExtractionJob, started time.Time) string {
	stamp := started.UTC().Format("20060102T150405Z")
	return job.OutputPath + "/" + sanitize(job.Name) + "-" + stamp + ".parquet"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

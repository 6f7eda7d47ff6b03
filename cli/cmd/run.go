package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/adapter"
	"github.com/stratumhq/sluice/adapter/redis"
	"github.com/stratumhq/sluice/adapter/webhook"
	"github.com/stratumhq/sluice/cli/config"
	"github.com/stratumhq/sluice/log"
	"github.com/stratumhq/sluice/manifest"
	"github.com/stratumhq/sluice/metrics"
	"github.com/stratumhq/sluice/pipeline"
	"github.com/stratumhq/sluice/sink"
	"github.com/stratumhq/sluice/source"
	"github.com/stratumhq/sluice/watermark"
)

// RunCommand returns the run command, the pipeline's main entrypoint.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute extraction jobs from a pipeline configuration",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringSliceFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Run only the named jobs (repeatable, default all)",
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "Override the window start boundary (RFC 3339 or numeric)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Override the window end boundary",
			},
			&cli.IntFlag{
				Name:  "last-n-days",
				Usage: "Start the window N days before now",
			},
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Ignore watermarks and extract from the beginning of time",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "Concurrent job limit (overrides config defaults)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the run report JSON to a file ('-' for stderr)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress progress logging",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	// Local .env is optional and only feeds ${VAR} config expansion.
	_ = godotenv.Load()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}
	if c.IsSet("start") && c.IsSet("last-n-days") {
		return cli.Exit("--start and --last-n-days are mutually exclusive", pipeline.ExitConfigError)
	}

	jobs, err := cfg.ExtractionJobs(c.StringSlice("jobs"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}

	runID := uuid.NewString()
	logger := log.NewLogger(runID)
	if c.Bool("quiet") {
		logger = logger.WithOutput(io.Discard)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	connector, err := source.Connect(source.Config{
		Driver:   cfg.Source.Driver,
		DSN:      cfg.Source.DSN,
		PoolSize: cfg.Source.PoolSize,
		Retry:    cfg.Source.Retry.Policy(),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid source config: %v", err), pipeline.ExitConfigError)
	}
	defer func() { _ = connector.Close() }()

	store, stagingDir, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid storage config: %v", err), pipeline.ExitConfigError)
	}

	marks, err := watermark.NewFileStore(watermarkPath(cfg))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid watermark store: %v", err), pipeline.ExitConfigError)
	}

	notifier, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), pipeline.ExitConfigError)
	}
	if notifier != nil {
		defer func() { _ = notifier.Close() }()
	}

	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "fs"
	}
	collector := metrics.NewCollector(backend, cfg.Source.Driver, runID)
	connector.WithRetryHook(collector.IncConnectRetry)

	parallel := cfg.Defaults.Parallel
	if c.IsSet("parallel") {
		parallel = c.Int("parallel")
	}

	windowStart := c.String("start")
	if days := c.Int("last-n-days"); days > 0 {
		windowStart = time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		RunID:       runID,
		Jobs:        jobs,
		Source:      connector,
		Watermarks:  marks,
		Store:       store,
		StagingDir:  stagingDir,
		Recorder:    manifest.NewRecorder(store),
		Adapter:     notifier,
		Collector:   collector,
		Logger:      logger,
		WindowStart: windowStart,
		WindowEnd:   c.String("end"),
		Full:        c.Bool("full"),
		Parallel:    parallel,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid run config: %v", err), pipeline.ExitConfigError)
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if path := c.String("report"); path != "" {
		if err := pipeline.WriteRunReport(report, path); err != nil {
			return fmt.Errorf("write run report: %w", err)
		}
	}
	if !c.Bool("quiet") {
		printRunSummary(c.App.Writer, report)
	}

	return cli.Exit("", report.ExitCode())
}

// buildStore returns the dataset store plus a local staging directory
// for in-progress dataset files.
func buildStore(ctx context.Context, cfg config.StorageConfig) (sink.Store, string, error) {
	switch cfg.Backend {
	case "", "fs":
		store, err := sink.NewFSStore(cfg.Path)
		if err != nil {
			return nil, "", err
		}
		return store, store.StagingDir(), nil

	case "s3":
		store, err := sink.NewS3Store(ctx, sink.S3Config{
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		staging, err := os.MkdirTemp("", "sluice-staging-")
		if err != nil {
			return nil, "", err
		}
		return store, staging, nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// watermarkPath resolves the watermark file location, defaulting to a
// file alongside fs-backed datasets.
func watermarkPath(cfg *config.Config) string {
	if cfg.Watermarks.Path != "" {
		return cfg.Watermarks.Path
	}
	if cfg.Storage.Path != "" {
		return filepath.Join(cfg.Storage.Path, ".watermarks.msgpack")
	}
	return ".watermarks.msgpack"
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := 0
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

func printRunSummary(w io.Writer, report *pipeline.RunReport) {
	fmt.Fprintf(w, "run %s: %s in %dms\n", report.RunID, report.Status, report.DurationMs)
	for _, j := range report.Jobs {
		line := fmt.Sprintf("  %-20s %-16s rows=%d batches=%d", j.Job, j.Status, j.Rows, j.Batches)
		if j.Critical > 0 || j.Warning > 0 {
			line += fmt.Sprintf(" critical=%d warning=%d", j.Critical, j.Warning)
		}
		if j.Error != "" {
			line += " error=" + j.Error
		}
		fmt.Fprintln(w, line)
	}
}

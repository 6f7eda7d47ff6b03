// Package config handles YAML pipeline configuration for sluice run.
package config

import (
	"fmt"
	"time"

	"github.com/stratumhq/sluice/retry"
	"github.com/stratumhq/sluice/types"
)

// Config represents a sluice.yaml configuration file.
// CLI flags always override config values.
type Config struct {
	Source     SourceConfig    `yaml:"source"`
	Storage    StorageConfig   `yaml:"storage"`
	Watermarks WatermarkConfig `yaml:"watermarks"`
	Adapter    AdapterConfig   `yaml:"adapter"`
	Defaults   DefaultsConfig  `yaml:"defaults"`
	Jobs       []JobConfig     `yaml:"jobs"`
}

// SourceConfig holds source database settings.
type SourceConfig struct {
	Driver   string      `yaml:"driver"`
	DSN      string      `yaml:"dsn"`
	PoolSize int         `yaml:"pool_size"`
	Retry    RetryConfig `yaml:"retry"`
}

// RetryConfig overrides the connection backoff schedule.
type RetryConfig struct {
	MaxRetries *int     `yaml:"max_retries,omitempty"`
	BaseDelay  Duration `yaml:"base_delay,omitempty"`
	Multiplier float64  `yaml:"multiplier,omitempty"`
	MaxDelay   Duration `yaml:"max_delay,omitempty"`
}

// Policy converts the config into a retry policy, filling defaults.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxRetries != nil {
		p.MaxRetries = *r.MaxRetries
	}
	if r.BaseDelay.Duration > 0 {
		p.BaseDelay = r.BaseDelay.Duration
	}
	if r.Multiplier > 0 {
		p.Multiplier = r.Multiplier
	}
	if r.MaxDelay.Duration > 0 {
		p.MaxDelay = r.MaxDelay.Duration
	}
	return p
}

// StorageConfig holds dataset store settings.
type StorageConfig struct {
	// Backend is "fs" or "s3". Default fs.
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// WatermarkConfig holds watermark store settings.
type WatermarkConfig struct {
	Path string `yaml:"path"`
}

// AdapterConfig holds notification adapter settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"` // redis, webhook or empty
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// DefaultsConfig holds per-job defaults applied when a job omits them.
type DefaultsConfig struct {
	BatchSize int      `yaml:"batch_size"`
	Parallel  int      `yaml:"parallel"`
	Timeout   Duration `yaml:"timeout"`
}

// JobConfig is one extraction job definition.
type JobConfig struct {
	Name              string                 `yaml:"name"`
	Query             string                 `yaml:"query"`
	BatchSize         int                    `yaml:"batch_size"`
	OutputPath        string                 `yaml:"output_path"`
	IncrementalColumn string                 `yaml:"incremental_column"`
	Timeout           Duration               `yaml:"timeout"`
	Rules             []types.ValidationRule `yaml:"rules"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the config for structural problems before any
// connection is attempted.
func (c *Config) Validate() error {
	if c.Source.Driver == "" {
		return fmt.Errorf("source.driver is required")
	}
	if c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required")
	}
	switch c.Storage.Backend {
	case "", "fs":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the fs backend")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Adapter.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("unknown adapter type %q", c.Adapter.Type)
	}
	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job is required")
	}
	seen := map[string]struct{}{}
	for i, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("duplicate job name %q", j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	return nil
}

// ExtractionJobs converts the job definitions into pipeline jobs,
// applying defaults and selecting a subset by name. An empty selection
// means all jobs.
func (c *Config) ExtractionJobs(selected []string) ([]types.ExtractionJob, error) {
	want := map[string]bool{}
	for _, name := range selected {
		want[name] = true
	}
	jobs := make([]types.ExtractionJob, 0, len(c.Jobs))
	for _, jc := range c.Jobs {
		if len(want) > 0 && !want[jc.Name] {
			continue
		}
		delete(want, jc.Name)
		job := types.ExtractionJob{
			Name:              jc.Name,
			QueryTemplate:     jc.Query,
			BatchSize:         jc.BatchSize,
			OutputPath:        jc.OutputPath,
			IncrementalColumn: jc.IncrementalColumn,
			Timeout:           jc.Timeout.Duration,
			Rules:             jc.Rules,
		}
		if job.BatchSize == 0 {
			job.BatchSize = c.Defaults.BatchSize
		}
		if job.Timeout == 0 {
			job.Timeout = c.Defaults.Timeout.Duration
		}
		if job.OutputPath == "" {
			job.OutputPath = jc.Name
		}
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("job %q: %w", jc.Name, err)
		}
		jobs = append(jobs, job)
	}
	for name := range want {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return jobs, nil
}

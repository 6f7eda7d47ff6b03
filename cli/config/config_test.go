package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratumhq/sluice/types"
)

const validYAML = `
source:
  driver: postgres
  dsn: ${SLUICE_TEST_DSN:-postgres://localhost/etl}
  pool_size: 4
  retry:
    max_retries: 2
    base_delay: 1s

storage:
  backend: fs
  path: /var/lib/sluice/data

watermarks:
  path: /var/lib/sluice/watermarks.bin

defaults:
  batch_size: 10000
  timeout: 30m

jobs:
  - name: visits
    query: "SELECT * FROM visits WHERE updated_at >= '{start}' AND updated_at < '{end}'"
    incremental_column: updated_at
    rules:
      - kind: primary_key_unique
        column: id
      - kind: numeric_range
        column: age
        min: 0
        max: 120
  - name: billing
    query: "SELECT * FROM billing LIMIT {limit} OFFSET {offset}"
    batch_size: 500
    timeout: 5m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sluice.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Source.Driver)
	}
	if cfg.Source.DSN != "postgres://localhost/etl" {
		t.Errorf("dsn = %q, want env default applied", cfg.Source.DSN)
	}
	if got := cfg.Source.Retry.Policy(); got.MaxRetries != 2 || got.BaseDelay != time.Second {
		t.Errorf("retry policy = %+v", got)
	}
	if len(cfg.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(cfg.Jobs))
	}
	rules := cfg.Jobs[0].Rules
	if len(rules) != 2 || rules[0].Kind != types.RulePrimaryKeyUnique {
		t.Errorf("rules = %+v", rules)
	}
	if rules[1].Min == nil || *rules[1].Min != 0 || rules[1].Max == nil || *rules[1].Max != 120 {
		t.Errorf("numeric_range bounds = %+v", rules[1])
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SLUICE_TEST_DSN", "postgres://db.internal/prod")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.DSN != "postgres://db.internal/prod" {
		t.Errorf("dsn = %q, want env value", cfg.Source.DSN)
	}
}

func TestExtractionJobsAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	jobs, err := cfg.ExtractionJobs(nil)
	if err != nil {
		t.Fatalf("ExtractionJobs() error = %v", err)
	}
	if jobs[0].BatchSize != 10000 {
		t.Errorf("visits batch size = %d, want default 10000", jobs[0].BatchSize)
	}
	if jobs[0].Timeout != 30*time.Minute {
		t.Errorf("visits timeout = %v, want default 30m", jobs[0].Timeout)
	}
	if jobs[1].BatchSize != 500 {
		t.Errorf("billing batch size = %d, want job override 500", jobs[1].BatchSize)
	}
	if jobs[1].Timeout != 5*time.Minute {
		t.Errorf("billing timeout = %v, want job override 5m", jobs[1].Timeout)
	}
}

func TestExtractionJobsSelection(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	jobs, err := cfg.ExtractionJobs([]string{"billing"})
	if err != nil {
		t.Fatalf("ExtractionJobs() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "billing" {
		t.Errorf("jobs = %+v, want billing only", jobs)
	}
	if _, err := cfg.ExtractionJobs([]string{"nonexistent"}); err == nil {
		t.Error("unknown job selection succeeded, want error")
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := map[string]string{
		"missing driver":  "source:\n  dsn: x\nstorage:\n  path: /d\njobs:\n  - name: a\n    query: q",
		"missing dsn":     "source:\n  driver: postgres\nstorage:\n  path: /d\njobs:\n  - name: a\n    query: q",
		"bad backend":     "source:\n  driver: postgres\n  dsn: x\nstorage:\n  backend: ftp\njobs:\n  - name: a\n    query: q",
		"no jobs":         "source:\n  driver: postgres\n  dsn: x\nstorage:\n  path: /d\njobs: []",
		"duplicate names": "source:\n  driver: postgres\n  dsn: x\nstorage:\n  path: /d\njobs:\n  - name: a\n    query: q\n  - name: a\n    query: q",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: Load() succeeded, want error", name)
		}
	}
}

func TestExpandEnvDefaults(t *testing.T) {
	os.Unsetenv("SLUICE_MISSING_VAR")
	if got := ExpandEnv("a ${SLUICE_MISSING_VAR:-fallback} b"); got != "a fallback b" {
		t.Errorf("ExpandEnv() = %q", got)
	}
	if got := ExpandEnv("a ${SLUICE_MISSING_VAR} b"); got != "a  b" {
		t.Errorf("ExpandEnv() = %q, want empty expansion", got)
	}
}

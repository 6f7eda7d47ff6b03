package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stratumhq/sluice/cli/config"
	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/types"
)

func TestJobsResponseTable(t *testing.T) {
	jobs := []types.ExtractionJob{
		{
			Name:              "visits",
			QueryTemplate:     "SELECT 1",
			BatchSize:         5000,
			OutputPath:        "visits",
			IncrementalColumn: "updated_at",
			Timeout:           10 * time.Minute,
			Rules:             []types.ValidationRule{{Kind: types.RuleNonNull, Columns: []string{"id"}}},
		},
		{
			Name:          "labs",
			QueryTemplate: "SELECT 2",
			BatchSize:     1000,
			OutputPath:    "labs",
		},
	}
	resp := jobsResponse(jobs)

	var out bytes.Buffer
	r := render.NewRendererWithWriter(render.FormatTable, &out)
	if err := r.Render(resp); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "visits") || !strings.Contains(got, "updated_at") {
		t.Errorf("table output missing incremental job row:\n%s", got)
	}
	if !strings.Contains(got, "10m0s") {
		t.Errorf("table output missing timeout:\n%s", got)
	}
	rows := resp.TableRows()
	if rows[1][2] != "-" {
		t.Errorf("snapshot job incremental column = %q, want -", rows[1][2])
	}
}

func TestWatermarksResponseTable(t *testing.T) {
	resp := WatermarksResponse{Watermarks: []types.Watermark{
		{JobName: "visits", Boundary: "2026-08-01T00:00:00Z", LastRun: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)},
		{JobName: "labs", Boundary: types.BeginningOfTime},
	}}

	rows := resp.TableRows()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0][1] != "2026-08-01T00:00:00Z" {
		t.Errorf("boundary = %q", rows[0][1])
	}
	if rows[1][2] != "-" {
		t.Errorf("missing last run should render as -, got %q", rows[1][2])
	}
}

func TestVersionResponseJSON(t *testing.T) {
	var out bytes.Buffer
	r := render.NewRendererWithWriter(render.FormatJSON, &out)
	if err := r.Render(VersionResponse{Version: types.Version, Commit: "abc123"}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var decoded VersionResponse
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if decoded.Version != types.Version || decoded.Commit != "abc123" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestBuildAdapter(t *testing.T) {
	if a, err := buildAdapter(config.AdapterConfig{}); err != nil || a != nil {
		t.Errorf("empty adapter config = (%v, %v), want (nil, nil)", a, err)
	}

	if _, err := buildAdapter(config.AdapterConfig{Type: "webhook", URL: "http://localhost:9"}); err != nil {
		t.Errorf("webhook adapter error = %v", err)
	}

	if _, err := buildAdapter(config.AdapterConfig{Type: "redis", URL: "not a url"}); err == nil {
		t.Error("invalid redis URL should fail")
	}

	if _, err := buildAdapter(config.AdapterConfig{Type: "kafka"}); err == nil {
		t.Error("unknown adapter type should fail")
	}
}

func TestWatermarkPathDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Path = "/data/sluice"
	if got := watermarkPath(cfg); got != "/data/sluice/.watermarks.msgpack" {
		t.Errorf("watermarkPath() = %q", got)
	}

	cfg.Watermarks.Path = "/var/lib/sluice/marks"
	if got := watermarkPath(cfg); got != "/var/lib/sluice/marks" {
		t.Errorf("watermarkPath() override = %q", got)
	}
}

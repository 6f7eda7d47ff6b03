package cmd

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/cli/config"
	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/pipeline"
	"github.com/stratumhq/sluice/types"
)

// JobsResponse lists the configured extraction jobs.
type JobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobSummary is one configured job with its effective settings.
type JobSummary struct {
	Name              string `json:"name"`
	BatchSize         int    `json:"batch_size"`
	IncrementalColumn string `json:"incremental_column,omitempty"`
	OutputPath        string `json:"output_path"`
	Rules             int    `json:"rules"`
	Timeout           string `json:"timeout,omitempty"`
}

func (r JobsResponse) TableHeaders() []string {
	return []string{"NAME", "BATCH", "INCREMENTAL", "OUTPUT", "RULES", "TIMEOUT"}
}

func (r JobsResponse) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		inc := j.IncrementalColumn
		if inc == "" {
			inc = "-"
		}
		timeout := j.Timeout
		if timeout == "" {
			timeout = "-"
		}
		rows = append(rows, []string{
			j.Name,
			strconv.Itoa(j.BatchSize),
			inc,
			j.OutputPath,
			strconv.Itoa(j.Rules),
			timeout,
		})
	}
	return rows
}

// JobsCommand returns the jobs command, listing configured jobs with
// their effective defaults applied.
func JobsCommand() *cli.Command {
	return &cli.Command{
		Name:   "jobs",
		Usage:  "List configured extraction jobs",
		Flags:  ReadOnlyFlags(),
		Action: jobsAction,
	}
}

func jobsAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for jobs command", 1)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}
	jobs, err := cfg.ExtractionJobs(nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(jobsResponse(jobs))
}

func jobsResponse(jobs []types.ExtractionJob) JobsResponse {
	resp := JobsResponse{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		s := JobSummary{
			Name:              j.Name,
			BatchSize:         j.BatchSize,
			IncrementalColumn: j.IncrementalColumn,
			OutputPath:        j.OutputPath,
			Rules:             len(j.Rules),
		}
		if j.Timeout > 0 {
			s.Timeout = j.Timeout.String()
		}
		resp.Jobs = append(resp.Jobs, s)
	}
	return resp
}

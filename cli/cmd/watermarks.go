package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/cli/config"
	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/pipeline"
	"github.com/stratumhq/sluice/types"
	"github.com/stratumhq/sluice/watermark"
)

// WatermarksResponse lists stored per-job watermarks.
type WatermarksResponse struct {
	Watermarks []types.Watermark `json:"watermarks"`
}

func (r WatermarksResponse) TableHeaders() []string {
	return []string{"JOB", "BOUNDARY", "LAST RUN"}
}

func (r WatermarksResponse) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Watermarks))
	for _, wm := range r.Watermarks {
		lastRun := "-"
		if !wm.LastRun.IsZero() {
			lastRun = wm.LastRun.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{wm.JobName, wm.Boundary, lastRun})
	}
	return rows
}

// WatermarksCommand returns the watermarks command with subcommands.
func WatermarksCommand() *cli.Command {
	return &cli.Command{
		Name:   "watermarks",
		Usage:  "Show or reset per-job extraction watermarks",
		Flags:  ReadOnlyFlags(),
		Action: watermarksListAction,
		Subcommands: []*cli.Command{
			{
				Name:      "reset",
				Usage:     "Reset a job's watermark to the beginning of time",
				ArgsUsage: "<job-name>",
				Flags:     ReadOnlyFlags(),
				Action:    watermarksResetAction,
			},
		},
	}
}

func watermarksListAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for watermarks command", 1)
	}

	marks, err := openWatermarks(c)
	if err != nil {
		return err
	}
	all, err := marks.All()
	if err != nil {
		return fmt.Errorf("read watermarks: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(WatermarksResponse{Watermarks: all})
}

func watermarksResetAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("job-name required", 1)
	}
	jobName := c.Args().First()

	marks, err := openWatermarks(c)
	if err != nil {
		return err
	}
	if err := marks.Reset(jobName); err != nil {
		return fmt.Errorf("reset watermark for %s: %w", jobName, err)
	}

	fmt.Fprintf(c.App.Writer, "watermark for %s reset to %s\n", jobName, types.BeginningOfTime)
	return nil
}

func openWatermarks(c *cli.Context) (watermark.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}
	return watermark.NewFileStore(watermarkPath(cfg))
}

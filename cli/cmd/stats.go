package cmd

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/cli/tui"
	"github.com/stratumhq/sluice/manifest"
)

// StatsResponse wraps aggregated job statistics for rendering.
type StatsResponse struct {
	*tui.JobStats
}

func (r StatsResponse) TableHeaders() []string {
	return []string{"TOTAL", "COMMITTED", "PARTIAL", "FAILED", "ROWS"}
}

func (r StatsResponse) TableRows() [][]string {
	if r.JobStats == nil {
		return nil
	}
	return [][]string{{
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Committed),
		strconv.Itoa(r.Partial),
		strconv.Itoa(r.Failed),
		strconv.FormatInt(r.Rows, 10),
	}}
}

// StatsCommand returns the stats command with subcommands.
// Stats returns aggregated, derived facts from recorded manifests.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated statistics (jobs)",
		Subcommands: []*cli.Command{
			statsJobsCommand(),
		},
	}
}

func statsJobsCommand() *cli.Command {
	return &cli.Command{
		Name:   "jobs",
		Usage:  "Show job run statistics",
		Flags:  ReadOnlyFlags(),
		Action: statsJobsAction,
	}
}

func statsJobsAction(c *cli.Context) error {
	root, err := manifestRoot(c)
	if err != nil {
		return err
	}
	manifests, err := manifest.LoadAll(root)
	if err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	stats := tui.BuildJobStats(manifests)

	if c.Bool("tui") {
		return tui.Run("stats_jobs", stats)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(StatsResponse{JobStats: stats})
}

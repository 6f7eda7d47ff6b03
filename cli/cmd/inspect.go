package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/cli/config"
	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/cli/tui"
	"github.com/stratumhq/sluice/manifest"
	"github.com/stratumhq/sluice/pipeline"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single entity (job)",
		Subcommands: []*cli.Command{
			inspectJobCommand(),
		},
	}
}

func inspectJobCommand() *cli.Command {
	return &cli.Command{
		Name:      "job",
		Usage:     "Inspect a job's most recent dataset manifest",
		ArgsUsage: "<job-name>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectJobAction,
	}
}

func inspectJobAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("job-name required", 1)
	}
	jobName := c.Args().First()

	root, err := manifestRoot(c)
	if err != nil {
		return err
	}
	history, err := manifest.LoadHistory(root, jobName)
	if err != nil {
		return fmt.Errorf("load manifests for %s: %w", jobName, err)
	}
	if len(history) == 0 {
		return cli.Exit(fmt.Sprintf("no manifests found for job %s", jobName), 1)
	}
	latest := history[0]

	if c.Bool("tui") {
		return tui.Run("inspect_job", &latest)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(latest)
}

// manifestRoot resolves the local directory manifests are read from.
// Inspection reads straight off the filesystem, so it needs fs storage.
func manifestRoot(c *cli.Context) (string, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return "", cli.Exit(fmt.Sprintf("invalid config: %v", err), pipeline.ExitConfigError)
	}
	switch cfg.Storage.Backend {
	case "", "fs":
		return cfg.Storage.Path, nil
	default:
		return "", cli.Exit("inspect and stats require the fs storage backend", 1)
	}
}

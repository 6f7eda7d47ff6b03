package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/stratumhq/sluice/cli/render"
	"github.com/stratumhq/sluice/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (r VersionResponse) TableHeaders() []string {
	return []string{"VERSION", "COMMIT"}
}

func (r VersionResponse) TableRows() [][]string {
	return [][]string{{r.Version, r.Commit}}
}

// VersionCommand returns the version command.
// It must not touch the source database or any store.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{Version: types.Version, Commit: commit})
	}
}

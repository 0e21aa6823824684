package version

import (
	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version of ceres"
}

func (c *Command) Help() string {
	return `Usage: ceres version

  This command prints the version of ceres.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.FullVersion())
	return 0
}

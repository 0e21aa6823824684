package base

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command carries what every ceres subcommand shares.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
	}
}

package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/internal/cmd/commands/operator"
	"github.com/fairspace/ceres/internal/cmd/commands/server"
	"github.com/fairspace/ceres/internal/cmd/commands/version"
)

// Commands is the mapping of all available ceres commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"server": func() (cli.Command, error) {
			return &server.Command{Command: b}, nil
		},
		"operator": func() (cli.Command, error) {
			return &operator.Command{Command: b}, nil
		},
		"operator import": func() (cli.Command, error) {
			return &operator.ImportCommand{Command: b}, nil
		},
		"operator outbox": func() (cli.Command, error) {
			return &operator.OutboxCommand{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}

package cmd

import (
	"sort"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCommands(t *testing.T) {
	initCommands(hclog.NewNullLogger(), cli.NewMockUi())

	var names []string
	for name, factory := range Commands {
		names = append(names, name)
		c, err := factory()
		require.NoError(t, err)
		assert.NotEmpty(t, c.Synopsis(), name)
		assert.NotEmpty(t, c.Help(), name)
	}
	sort.Strings(names)

	assert.Equal(t, []string{
		"operator",
		"operator import",
		"operator outbox",
		"server",
		"version",
	}, names)
}

func TestVersionCommand(t *testing.T) {
	ui := cli.NewMockUi()
	initCommands(hclog.NewNullLogger(), ui)

	c, err := Commands["version"]()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Run(nil))
	assert.NotEmpty(t, ui.OutputWriter.String())
}

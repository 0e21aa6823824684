package base

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlagSet_Help(t *testing.T) {
	var (
		config  string
		dryRun  bool
		cleanup time.Duration
	)
	f := NewFlagSet(flag.NewFlagSet("test", flag.ContinueOnError))
	f.StringVar(&config, "config", "", "(Required) Path to `file`")
	f.BoolVar(&dryRun, "dry-run", false, "Validate without writing.")
	f.DurationVar(&cleanup, "cleanup", 168*time.Hour, "Delete published rows older than this.")

	want := `

Options:

  -cleanup=<duration>
    Delete published rows older than this. (default: 168h0m0s)

  -config=<file>
    (Required) Path to file

  -dry-run
    Validate without writing.`

	assert.Equal(t, want, f.Help())
}

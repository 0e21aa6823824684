package config

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

func parseLevel(s string) (hclog.Level, error) {
	level := hclog.LevelFromString(s)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("log_level %q is invalid", s)
	}
	return level, nil
}

// Level returns the configured hclog level.
func (c *Config) Level() hclog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return hclog.Info
	}
	return level
}

package transfer

import (
	"time"
)

const (
	defaultBuildDir              = "/tmp"
	defaultDefaultRemote         = "origin"
	defaultProgressEventInterval = 5 * time.Second
)

// Config configures the orchestrator
type Config struct {
	// BuildDir is the directory on the source target the temporary build directory is created in
	BuildDir string `mapstructure:"build_dir" validate:"required"`
	// TempDir holds streamed archive entries locally until they are added to the archive
	TempDir string `mapstructure:"temp_dir"`
	// BytesPerSecond limits the speed entries are written and read with, zero or less is unlimited
	BytesPerSecond int64 `mapstructure:"bytes_per_second" validate:"gte=0"`
	// DefaultRemote is the git remote used when the current branch has none configured
	DefaultRemote string `mapstructure:"default_remote" validate:"required"`
	// ProgressEventInterval is the minimum time between two progress events of one part
	ProgressEventInterval time.Duration `mapstructure:"progress_event_interval"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.BuildDir = defaultBuildDir
	c.DefaultRemote = defaultDefaultRemote
	c.ProgressEventInterval = defaultProgressEventInterval
}

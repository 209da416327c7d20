package sspak

import "os"

const (
	defaultSSHBinary = "ssh"
	defaultSCPBinary = "scp"
	defaultShell     = "/bin/sh"
)

// Config configures how commands are executed on local and remote targets
type Config struct {
	// SSHBinary is the ssh client used to reach remote targets
	SSHBinary string `mapstructure:"ssh_binary" validate:"required"`
	// SCPBinary is the client used to copy files to and from remote targets
	SCPBinary string `mapstructure:"scp_binary" validate:"required"`
	// Shell runs raw shell pipelines on the local machine
	Shell string `mapstructure:"shell" validate:"required"`
	// Identity is an optional SSH private key passed to ssh and scp with -i
	Identity string `mapstructure:"identity" validate:"omitempty,file"`
	// When set, uses a rate-limiter to limit archive streams to this amount of bytes per second
	BytesPerSecond int64 `mapstructure:"bytes_per_second" validate:"min=0"`
	// TempDir holds local temporary files, such as streamed archive entries before they are added
	TempDir string `mapstructure:"temp_dir"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.SSHBinary = defaultSSHBinary
	c.SCPBinary = defaultSCPBinary
	c.Shell = defaultShell
	c.TempDir = os.TempDir()
}

package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sspak "github.com/vansante/go-sspak"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("identity", "", "")
	flags.Int64("bytes-per-second", 0, "")
	flags.String("sniffer", "", "")
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	conf, err := loadConfig("", testFlags())
	require.NoError(t, err)

	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, "ssh", conf.Exec.SSHBinary)
	assert.Equal(t, os.TempDir(), conf.Transfer.TempDir)
	assert.Equal(t, "origin", conf.Transfer.DefaultRemote)
	assert.Equal(t, 7655, conf.HTTP.Port)
	assert.Equal(t, "us-east-1", conf.S3.Region)
}

func TestLoadConfigFile(t *testing.T) {
	file := writeConfig(t, `
log_level = "debug"
ssh_binary = "/usr/local/bin/ssh"
bytes_per_second = 1024

[sniffer]
runtime = "php8.2"

[transfer]
build_dir = "/var/tmp"

[http]
port = 8080
tokens = ["secret-token-1"]

[s3]
region = "eu-west-1"

[job]
directory = "/var/backups/sspak"

[[job.sites]]
name = "shop"
location = "deploy@web1:/var/www/shop"
interval = "6h"
retention_count = 4
`)

	conf, err := loadConfig(file, testFlags())
	require.NoError(t, err)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "/usr/local/bin/ssh", conf.Exec.SSHBinary)
	assert.Equal(t, "scp", conf.Exec.SCPBinary)
	assert.EqualValues(t, 1024, conf.Exec.BytesPerSecond)
	assert.EqualValues(t, 1024, conf.Transfer.BytesPerSecond)
	assert.Equal(t, "php8.2", conf.Sniffer.Runtime)
	assert.Equal(t, "/var/tmp", conf.Transfer.BuildDir)
	assert.Equal(t, "origin", conf.Transfer.DefaultRemote)
	assert.Equal(t, 8080, conf.HTTP.Port)
	assert.Equal(t, []string{"secret-token-1"}, conf.HTTP.AuthenticationTokens)
	assert.Equal(t, "eu-west-1", conf.S3.Region)
	assert.Equal(t, "/var/backups/sspak", conf.Job.Directory)
	assert.True(t, conf.Job.EnablePakSave)
	require.Len(t, conf.Job.Sites, 1)
	assert.Equal(t, "deploy@web1:/var/www/shop", conf.Job.Sites[0].Location)
	assert.Equal(t, 6*time.Hour, conf.Job.Sites[0].Interval)
	assert.Equal(t, 4, conf.Job.Sites[0].RetentionCount)
}

func TestLoadConfigPrecedence(t *testing.T) {
	file := writeConfig(t, `
log_level = "debug"
bytes_per_second = 1024
`)
	t.Setenv("SSPAK_BYTES_PER_SECOND", "2048")
	t.Setenv("SSPAK_SNIFFER_RUNTIME", "php7")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--log-level", "warn"}))

	conf, err := loadConfig(file, flags)
	require.NoError(t, err)
	assert.Equal(t, "warn", conf.LogLevel)
	assert.EqualValues(t, 2048, conf.Exec.BytesPerSecond)
	assert.Equal(t, "php7", conf.Sniffer.Runtime)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), testFlags())
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, `log_level = "loud"`), testFlags())
	assert.ErrorContains(t, err, "invalid log level")

	_, err = loadConfig(writeConfig(t, "[transfer]\nbuild_dir = \"\"\n"), testFlags())
	assert.ErrorContains(t, err, "BuildDir")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(sspak.Preconditionf("file exists")))
	assert.Equal(t, 3, exitCode(&sspak.CommandError{Err: errors.New("exit status 3"), ExitCode: 3}))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, verb := range []string{
		"save", "load", "install", "saveexisting", "extract", "bundle", "info", "serve", "fetch", "push", "pull", "schedule",
	} {
		cmd, _, err := root.Find([]string{verb})
		require.NoError(t, err, verb)
		assert.Equal(t, verb, cmd.Name())
	}

	load, _, err := root.Find([]string{"load"})
	require.NoError(t, err)
	assert.NotNil(t, load.Flags().Lookup("drop-db"))
	assert.NotNil(t, load.Flags().Lookup("git-remote"))
}

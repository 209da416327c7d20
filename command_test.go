package sspak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		expect string
	}{
		{"plain args", NewCommand("mkdir", "/tmp/sspak-1"), "mkdir /tmp/sspak-1"},
		{"args with spaces", NewCommand("cp", "my file", "dest"), "cp 'my file' dest"},
		{"pipeline", ShellCommand("tar cfh - assets | gzip -c"), "tar cfh - assets | gzip -c"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, test.cmd.String())
		})
	}
}

func TestCommand_Prefixed(t *testing.T) {
	cmd := NewCommand("php", "/tmp/sniffer.php", "/var/www").Prefixed("sudo", "-n", "-u", "www-data")
	require.False(t, cmd.IsShell())
	require.Equal(t, []string{"sudo", "-n", "-u", "www-data", "php", "/tmp/sniffer.php", "/var/www"}, cmd.Args())

	pipe := ShellCommand("mysqldump db | gzip -c").Prefixed("sudo", "-u", "www")
	require.Equal(t, []string{"sudo", "-u", "www", "sh", "-c", "mysqldump db | gzip -c"}, pipe.Args())
	require.Equal(t, "sudo -u www sh -c 'mysqldump db | gzip -c'", pipe.String())
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(" /usr/bin/env php ")
	require.NoError(t, err)
	require.Equal(t, []string{"/usr/bin/env", "php"}, cmd.Args())

	_, err = ParseCommand(`php "unterminated`)
	require.Error(t, err)

	require.True(t, Command{}.IsZero())
	require.False(t, ShellCommand("true").IsZero())
	require.Nil(t, ShellCommand("true").Args())
}

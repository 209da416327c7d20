package database

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/sniff"
)

// MySQL family database kinds
const (
	KindMySQL    = "MySQLDatabase"
	KindMySQLPDO = "MySQLPDODatabase"
)

// MySQL dumps with mysqldump and restores with the mysql client
type MySQL struct{}

func (MySQL) connectionArgs(p *sniff.Profile) []string {
	args := []string{"--user=" + p.DatabaseUser, "--password=" + p.DatabasePassword}
	if p.DatabaseHost != "" && p.DatabaseHost != "localhost" {
		args = append(args, "--host="+p.DatabaseHost)
	}
	if p.DatabasePort != "" {
		args = append(args, "--port="+p.DatabasePort)
	}
	return args
}

// DumpCommand returns a mysqldump command, compressed by the caller
func (m MySQL) DumpCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand(fmt.Sprintf(
		"mysqldump --skip-opt --add-drop-table --extended-insert --create-options --quick --set-charset "+
			"--default-character-set=utf8 %s %s",
		shellquote.Join(m.connectionArgs(p)...), sspak.Quote(p.DatabaseName),
	))
}

// Prepare creates the database if it does not exist, after dropping it when drop is set
func (m MySQL) Prepare(ctx context.Context, target *sspak.Target, p *sniff.Profile, drop bool) error {
	name := "`" + strings.ReplaceAll(p.DatabaseName, "`", "``") + "`"
	if drop {
		_, err := target.Exec(ctx, m.statement(p, "DROP DATABASE IF EXISTS "+name), sspak.ExecOptions{})
		if err != nil {
			return fmt.Errorf("error dropping database: %w", err)
		}
	}
	_, err := target.Exec(ctx, m.statement(p, "CREATE DATABASE IF NOT EXISTS "+name), sspak.ExecOptions{})
	if err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	return nil
}

func (m MySQL) statement(p *sniff.Profile, sql string) sspak.Command {
	args := append([]string{"mysql"}, m.connectionArgs(p)...)
	return sspak.NewCommand(append(args, "-e", sql)...)
}

// RestoreCommand returns a pipeline decompressing the dump into the mysql client
func (m MySQL) RestoreCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand(fmt.Sprintf(
		"gunzip -c | mysql --default-character-set=utf8 %s %s",
		shellquote.Join(m.connectionArgs(p)...), sspak.Quote(p.DatabaseName),
	))
}

// FilterDump removes CREATE DATABASE and USE statements
func (MySQL) FilterDump(src io.Reader) io.ReadCloser {
	return mysqlFilter.filter(src)
}

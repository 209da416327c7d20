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

// PostgreSQL family database kinds
const (
	KindPostgreSQL = "PostgreSQLDatabase"
	KindPostgrePDO = "PostgrePDODatabase"
)

const maintenanceDatabase = "postgres"

// PostgreSQL dumps with pg_dump and restores with psql. The password is passed in PGPASSWORD.
type PostgreSQL struct{}

func (PostgreSQL) connectionArgs(p *sniff.Profile) []string {
	args := []string{"--username=" + p.DatabaseUser}
	if p.DatabaseHost != "" {
		args = append(args, "--host="+p.DatabaseHost)
	}
	if p.DatabasePort != "" {
		args = append(args, "--port="+p.DatabasePort)
	}
	return args
}

func (PostgreSQL) passwordEnv(p *sniff.Profile) string {
	return "PGPASSWORD=" + sspak.Quote(p.DatabasePassword)
}

// command runs a single postgres tool with the password in its environment
func (pg PostgreSQL) command(p *sniff.Profile, tool string, args ...string) sspak.Command {
	cmd := []string{"env", "PGPASSWORD=" + p.DatabasePassword, tool}
	cmd = append(cmd, pg.connectionArgs(p)...)
	return sspak.NewCommand(append(cmd, args...)...)
}

// DumpCommand returns a pg_dump command, compressed by the caller
func (pg PostgreSQL) DumpCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand(fmt.Sprintf(
		"%s pg_dump --clean --no-owner --no-tablespaces %s %s",
		pg.passwordEnv(p), shellquote.Join(pg.connectionArgs(p)...), sspak.Quote(p.DatabaseName),
	))
}

// Prepare creates the database if it does not exist, after dropping it when drop is set
func (pg PostgreSQL) Prepare(ctx context.Context, target *sspak.Target, p *sniff.Profile, drop bool) error {
	if drop {
		_, err := target.Exec(ctx, pg.command(p, "dropdb", "--if-exists", p.DatabaseName), sspak.ExecOptions{})
		if err != nil {
			return fmt.Errorf("error dropping database: %w", err)
		}
	}

	query := fmt.Sprintf("select count(*) from pg_catalog.pg_database where datname = '%s'",
		strings.ReplaceAll(p.DatabaseName, "'", "''"))
	res, err := target.Exec(ctx, pg.command(p, "psql", "-qtA", "-d", maintenanceDatabase, "-c", query), sspak.ExecOptions{})
	if err != nil {
		return fmt.Errorf("error checking database existence: %w", err)
	}
	if strings.TrimSpace(res.Output) != "0" {
		return nil
	}

	_, err = target.Exec(ctx, pg.command(p, "createdb", p.DatabaseName), sspak.ExecOptions{})
	if err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	return nil
}

// RestoreCommand returns a pipeline decompressing the dump into psql
func (pg PostgreSQL) RestoreCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand(fmt.Sprintf(
		"gunzip -c | %s psql -q %s %s",
		pg.passwordEnv(p), shellquote.Join(pg.connectionArgs(p)...), sspak.Quote(p.DatabaseName),
	))
}

// FilterDump removes CREATE DATABASE and \connect statements, leaving the rows of COPY blocks alone
func (PostgreSQL) FilterDump(src io.Reader) io.ReadCloser {
	return postgresFilter.filter(src)
}

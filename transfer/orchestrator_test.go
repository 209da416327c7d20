package transfer

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	eventemitter "github.com/vansante/go-event-emitter"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
	"github.com/vansante/go-sspak/database"
	"github.com/vansante/go-sspak/sniff"
)

const fileDatabaseKind = "FileDatabase"

// testPayload reports a site whose database is the file db.sql in the site directory
const testPayload = `site="$1"
printf '{"db_type": "FileDatabase", "db_database": "%s/db.sql", "assets_path": "%s/assets"}\n' "$site" "$site"
`

// fileDatabase is a database strategy storing the whole database as a single plain SQL file
type fileDatabase struct {
	drops int
}

func (f *fileDatabase) DumpCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand("cat < " + sspak.Quote(p.DatabaseName))
}

func (f *fileDatabase) FilterDump(src io.Reader) io.ReadCloser {
	return database.MySQL{}.FilterDump(src)
}

func (f *fileDatabase) Prepare(ctx context.Context, target *sspak.Target, p *sniff.Profile, drop bool) error {
	if drop {
		f.drops++
		_, err := target.Exec(ctx, sspak.NewCommand("rm", "-f", p.DatabaseName), sspak.ExecOptions{})
		if err != nil {
			return err
		}
	}
	_, err := target.Exec(ctx, sspak.NewCommand("touch", p.DatabaseName), sspak.ExecOptions{})
	return err
}

func (f *fileDatabase) RestoreCommand(p *sniff.Profile) sspak.Command {
	return sspak.ShellCommand("gunzip -c > " + sspak.Quote(p.DatabaseName))
}

type testEnv struct {
	orchestrator *Orchestrator
	executor     *sspak.Executor
	database     *fileDatabase
	buildDir     string
	events       map[eventemitter.EventType][]any
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := sspak.NewTestLogger(t)

	var conf sspak.Config
	conf.ApplyDefaults()
	executor := sspak.NewExecutor(conf, logger)

	var snifferConf sniff.Config
	snifferConf.ApplyDefaults()
	snifferConf.Runtime = "sh"
	snifferConf.Extension = ".sh"
	sniffer, err := sniff.NewSniffer(snifferConf, []byte(testPayload), logger)
	require.NoError(t, err)

	db := &fileDatabase{}
	registry := database.NewRegistry()
	registry.Register(fileDatabaseKind, db)

	var transferConf Config
	transferConf.ApplyDefaults()
	transferConf.BuildDir = t.TempDir()
	transferConf.TempDir = t.TempDir()

	env := &testEnv{
		orchestrator: NewOrchestrator(transferConf, executor, registry, sniffer, logger),
		executor:     executor,
		database:     db,
		buildDir:     transferConf.BuildDir,
		events:       make(map[eventemitter.EventType][]any),
	}
	for _, event := range []eventemitter.EventType{SavedPartEvent, LoadedPartEvent, ClonedRepositoryEvent} {
		event := event
		env.orchestrator.AddListener(event, func(arguments ...interface{}) {
			env.events[event] = append(env.events[event], arguments[0])
		})
	}
	return env
}

func (e *testEnv) target(t *testing.T, path string) *sspak.Target {
	t.Helper()
	return sspak.NewTarget(path, e.executor, sspak.NewTestLogger(t))
}

const testDump = "CREATE DATABASE `other`;\nUSE `other`;\nCREATE TABLE t (id int);\nINSERT INTO t VALUES (1),(2);\n"

func createSite(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		tree[rel] = string(content)
		return err
	})
	require.NoError(t, err)
	return tree
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	entries, err := archive.Open(path).Entries()
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names
}

func requireNoOldAssets(t *testing.T, site string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(site, "assets.old-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

var sourceAssets = map[string]string{
	"assets/logo.png":         "png",
	"assets/Uploads/doc.pdf":  "pdf",
	"assets/Uploads/note.txt": "hello",
}

func TestOrchestrator_SaveLoad(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	source := t.TempDir()
	createSite(t, source, sourceAssets)
	createSite(t, source, map[string]string{"db.sql": testDump})

	pak := filepath.Join(t.TempDir(), "site.sspak")
	require.NoError(t, env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{}))
	require.Equal(t, []string{archive.EntryDatabase, archive.EntryAssets}, entryNames(t, pak))
	require.Len(t, env.events[SavedPartEvent], 2)

	// The build directory is gone again
	leftovers, err := os.ReadDir(env.buildDir)
	require.NoError(t, err)
	require.Empty(t, leftovers)

	dest := t.TempDir()
	createSite(t, dest, map[string]string{
		"db.sql":            "stale",
		"assets/stale.txt":  "stale",
		"assets/logo.png":   "old png",
		"other/keep-me.txt": "keep",
	})

	require.NoError(t, env.orchestrator.Load(ctx, pak, env.target(t, dest), sspak.Parts{}, true))
	require.Equal(t, 1, env.database.drops)
	require.Len(t, env.events[LoadedPartEvent], 2)

	db, err := os.ReadFile(filepath.Join(dest, "db.sql"))
	require.NoError(t, err)
	require.Equal(t, "CREATE TABLE t (id int);\nINSERT INTO t VALUES (1),(2);\n", string(db))

	require.Equal(t, readTree(t, filepath.Join(source, "assets")), readTree(t, filepath.Join(dest, "assets")))
	require.FileExists(t, filepath.Join(dest, "other", "keep-me.txt"))
	requireNoOldAssets(t, dest)
}

func TestOrchestrator_SaveDatabaseOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	source := t.TempDir()
	createSite(t, source, sourceAssets)
	createSite(t, source, map[string]string{"db.sql": testDump})

	pak := filepath.Join(t.TempDir(), "db.sspak")
	require.NoError(t, env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{DB: true}))
	require.Equal(t, []string{archive.EntryDatabase}, entryNames(t, pak))

	// Assets are selected but absent from the pak, they are left alone
	dest := t.TempDir()
	createSite(t, dest, map[string]string{"assets/mine.txt": "mine"})
	require.NoError(t, env.orchestrator.Load(ctx, pak, env.target(t, dest), sspak.Parts{DB: true, Assets: true}, false))
	require.Equal(t, map[string]string{"mine.txt": "mine"}, readTree(t, filepath.Join(dest, "assets")))
	require.FileExists(t, filepath.Join(dest, "db.sql"))
	require.Zero(t, env.database.drops)
}

func TestOrchestrator_SaveFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	source := t.TempDir()
	createSite(t, source, map[string]string{"db.sql": testDump, "assets/a.txt": "a"})

	pak := filepath.Join(t.TempDir(), "site.sspak")
	require.NoError(t, os.WriteFile(pak, []byte("existing"), 0o644))
	err := env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{})
	require.ErrorIs(t, err, sspak.ErrPreconditionFailed)
	content, err := os.ReadFile(pak)
	require.NoError(t, err)
	require.Equal(t, "existing", string(content))

	// A failing dump leaves no partial pak behind
	require.NoError(t, os.Remove(filepath.Join(source, "db.sql")))
	pak = filepath.Join(t.TempDir(), "failed.sspak")
	err = env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{})
	_, ok := sspak.IsCommandError(err)
	require.True(t, ok)
	require.NoFileExists(t, pak)

	// So does a failing assets tar
	require.NoError(t, os.WriteFile(filepath.Join(source, "db.sql"), []byte(testDump), 0o644))
	require.NoError(t, os.RemoveAll(filepath.Join(source, "assets")))
	err = env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{})
	_, ok = sspak.IsCommandError(err)
	require.True(t, ok)
	require.NoFileExists(t, pak)

	// An unknown database kind is refused before anything is dumped
	registry := database.NewRegistry()
	env.orchestrator.registry = registry
	err = env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{DB: true})
	require.ErrorIs(t, err, sspak.ErrUnsupportedDatabase)
	require.NoFileExists(t, pak)
}

func TestOrchestrator_LoadFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.orchestrator.Load(ctx, filepath.Join(t.TempDir(), "missing.sspak"), env.target(t, t.TempDir()), sspak.Parts{}, false)
	require.ErrorIs(t, err, sspak.ErrPreconditionFailed)

	// A corrupt assets entry keeps the previous assets in the .old sibling
	pak := filepath.Join(t.TempDir(), "corrupt.sspak")
	w, err := archive.Create(pak, archive.WriterOptions{}, sspak.NewTestLogger(t))
	require.NoError(t, err)
	_, err = w.WriteEntry(archive.EntryAssets, []byte("not a tarball"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	dest := t.TempDir()
	createSite(t, dest, map[string]string{"assets/precious.txt": "precious"})
	err = env.orchestrator.Load(ctx, pak, env.target(t, dest), sspak.Parts{Assets: true}, false)
	require.Error(t, err)

	matches, err := filepath.Glob(filepath.Join(dest, "assets.old-*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.FileExists(t, filepath.Join(matches[0], "precious.txt"))
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	args = append([]string{"-c", "user.name=sspak", "-c", "user.email=sspak@example.com"}, args...)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestOrchestrator_Install(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
	env := newTestEnv(t)
	ctx := context.Background()
	root := t.TempDir()

	upstream := filepath.Join(root, "upstream")
	require.NoError(t, os.Mkdir(upstream, 0o755))
	git(t, upstream, "init", "-q")
	createSite(t, upstream, map[string]string{"README.md": "site"})
	git(t, upstream, "add", "README.md")
	git(t, upstream, "commit", "-q", "-m", "Initial commit")

	source := filepath.Join(root, "source")
	git(t, root, "clone", "-q", upstream, source)
	createSite(t, source, sourceAssets)
	createSite(t, source, map[string]string{"db.sql": testDump})

	pak := filepath.Join(root, "site.sspak")
	require.NoError(t, env.orchestrator.Save(ctx, env.target(t, source), pak, sspak.Parts{}))
	require.Equal(t, []string{archive.EntryDatabase, archive.EntryAssets, archive.EntryGitRemote}, entryNames(t, pak))

	remote, err := archive.Open(pak).GitRemote()
	require.NoError(t, err)
	require.Equal(t, upstream, remote.Remote)
	require.Equal(t, git(t, source, "rev-parse", "--abbrev-ref", "HEAD"), remote.Branch)
	require.Equal(t, git(t, source, "rev-parse", "HEAD"), remote.SHA)

	installed := filepath.Join(root, "installed")
	require.NoError(t, env.orchestrator.Install(ctx, pak, env.target(t, installed), sspak.Parts{}, false))
	require.Len(t, env.events[ClonedRepositoryEvent], 1)
	require.Equal(t, remote.SHA, git(t, installed, "rev-parse", "HEAD"))
	require.FileExists(t, filepath.Join(installed, "README.md"))
	require.Equal(t, readTree(t, filepath.Join(source, "assets")), readTree(t, filepath.Join(installed, "assets")))
	requireNoOldAssets(t, installed)

	// Installing over an existing path does nothing at all
	before := readTree(t, installed)
	err = env.orchestrator.Install(ctx, pak, env.target(t, installed), sspak.Parts{}, true)
	require.ErrorIs(t, err, sspak.ErrPreconditionFailed)
	require.Equal(t, before, readTree(t, installed))
	require.Zero(t, env.database.drops)
}

func TestOrchestrator_SaveExistingExtract(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	createSite(t, dir, map[string]string{"dump.sql": testDump})
	createSite(t, dir, sourceAssets)

	pak := filepath.Join(dir, "existing.sspak")
	err := env.orchestrator.SaveExisting(context.Background(), pak, "", "")
	require.ErrorIs(t, err, errNothingToSave)
	require.NoFileExists(t, pak)

	require.NoError(t, env.orchestrator.SaveExisting(context.Background(), pak, filepath.Join(dir, "dump.sql"), filepath.Join(dir, "assets")))
	require.Equal(t, []string{archive.EntryDatabase, archive.EntryAssets}, entryNames(t, pak))

	out := filepath.Join(dir, "out")
	entries, err := env.orchestrator.Extract(pak, out)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.FileExists(t, filepath.Join(out, archive.EntryDatabase))
	require.FileExists(t, filepath.Join(out, archive.EntryAssets))

	_, err = env.orchestrator.Extract(pak, out)
	require.ErrorIs(t, err, sspak.ErrPreconditionFailed)

	// The compressed dump round trips into a pak of its own
	again := filepath.Join(dir, "again.sspak")
	require.NoError(t, env.orchestrator.SaveExisting(context.Background(), again, filepath.Join(out, archive.EntryDatabase), ""))
	content, err := archive.Open(again).Content(archive.EntryDatabase)
	require.NoError(t, err)
	original, err := os.ReadFile(filepath.Join(out, archive.EntryDatabase))
	require.NoError(t, err)
	require.Equal(t, original, content)
}

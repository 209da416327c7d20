package transfer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
	"github.com/vansante/go-sspak/database"
	"github.com/vansante/go-sspak/sniff"
)

// Save writes the selected parts of the site on the source target into a new pak at archivePath.
// On failure the partial pak is removed, the build directory on the source is left for inspection.
func (o *Orchestrator) Save(ctx context.Context, source *sspak.Target, archivePath string, parts sspak.Parts) error {
	parts = parts.Effective()

	w, err := archive.Create(archivePath, o.writerOptions(), o.logger)
	if err != nil {
		return err
	}
	err = o.save(ctx, source, w, parts)
	if err != nil {
		abortErr := w.Abort()
		if abortErr != nil {
			o.logger.Error("sspak.transfer.Orchestrator.Save: Error removing partial archive",
				"error", abortErr,
				"archive", archivePath,
			)
		}
		return err
	}
	err = w.Close()
	if err != nil {
		_ = w.Abort()
		return err
	}

	o.logger.Info("sspak.transfer.Orchestrator.Save: Saved site",
		"source", source.String(),
		"archive", archivePath,
		"parts", parts.String(),
	)
	return nil
}

func (o *Orchestrator) save(ctx context.Context, source *sspak.Target, w *archive.Writer, parts sspak.Parts) error {
	site, profile, err := o.discover(ctx, source)
	if err != nil {
		return err
	}

	var strategy database.Strategy
	if parts.DB {
		strategy, err = o.registry.Lookup(profile.DatabaseKind)
		if err != nil {
			return err
		}
	}

	buildDir := path.Join(o.config.BuildDir, "sspak-"+uuid.NewString())
	err = source.Mkdir(ctx, buildDir)
	if err != nil {
		return fmt.Errorf("error creating build directory: %w", err)
	}

	if parts.DB {
		err = o.saveEntry(ctx, site, w, archive.EntryDatabase, inDir(buildDir, strategy.DumpCommand(profile)))
		if err != nil {
			return err
		}
	}

	if parts.Assets {
		parent, base, err := assetsLocation(site, profile)
		if err != nil {
			return err
		}
		cmd := sspak.ShellCommand(fmt.Sprintf("cd %s && tar cfh - %s", sspak.Quote(parent), sspak.Quote(base)))
		err = o.saveEntry(ctx, site, w, archive.EntryAssets, cmd)
		if err != nil {
			return err
		}
	}

	if parts.GitRemote {
		err = o.saveGitRemote(ctx, site, w)
		if err != nil {
			return err
		}
	}

	return source.Remove(ctx, buildDir)
}

// inDir runs the command with the directory as working directory and scratch space
func inDir(dir string, cmd sspak.Command) sspak.Command {
	quoted := sspak.Quote(dir)
	return sspak.ShellCommand(fmt.Sprintf("cd %s && TMPDIR=%s && export TMPDIR && %s", quoted, quoted, cmd.String()))
}

func (o *Orchestrator) saveEntry(ctx context.Context, site *sniff.Site, w *archive.Writer, entry string, cmd sspak.Command) error {
	o.EmitEvent(SavingPartEvent, entry, site.String())
	info, err := w.WriteCompressedEntryFromProcess(ctx, entry, site.CreateProcess(cmd, sspak.ExecOptions{}))
	if err != nil {
		return err
	}
	o.EmitEvent(SavedPartEvent, info)
	return nil
}

// saveGitRemote records the remote, branch and commit of the site repository. Sites without a repository
// or without a remote have nothing to record.
func (o *Orchestrator) saveGitRemote(ctx context.Context, site *sniff.Site, w *archive.Writer) error {
	gitDir := path.Join(site.Path(), ".git")
	exists, err := site.Exists(ctx, gitDir)
	if err != nil {
		return err
	}
	if !exists {
		o.logger.Info("sspak.transfer.Orchestrator.saveGitRemote: No git repository, skipping",
			"target", site.String(),
		)
		return nil
	}

	git := func(ignoreExitCode bool, args ...string) (string, error) {
		res, err := site.Exec(ctx, sspak.NewCommand(append([]string{"git", "--git-dir=" + gitDir}, args...)...), sspak.ExecOptions{
			IgnoreExitCode: ignoreExitCode,
		})
		if err != nil {
			return "", err
		}
		if res.ExitCode != 0 {
			return "", nil
		}
		return strings.TrimSpace(res.Output), nil
	}

	var remote sspak.GitRemote
	// A detached HEAD has no branch
	remote.Branch, err = git(true, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return err
	}

	remoteName := ""
	if remote.Branch != "" {
		remoteName, err = git(true, "config", "branch."+remote.Branch+".remote")
		if err != nil {
			return err
		}
	}
	if remoteName == "" {
		remoteName = o.config.DefaultRemote
	}

	remote.Remote, err = git(true, "config", "remote."+remoteName+".url")
	if err != nil {
		return err
	}
	if remote.Remote == "" {
		o.logger.Info("sspak.transfer.Orchestrator.saveGitRemote: Repository has no remote, skipping",
			"target", site.String(),
			"remote", remoteName,
		)
		return nil
	}

	remote.SHA, err = git(false, "rev-parse", "HEAD")
	if err != nil {
		return err
	}

	o.EmitEvent(SavingPartEvent, archive.EntryGitRemote, site.String())
	info, err := w.WriteEntry(archive.EntryGitRemote, remote.Format())
	if err != nil {
		return err
	}
	o.EmitEvent(SavedPartEvent, info)
	return nil
}

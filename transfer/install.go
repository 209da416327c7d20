package transfer

import (
	"context"
	"fmt"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

// Install creates a new site at the destination path from the pak: it clones the recorded git remote into
// it and then loads the selected parts. The destination path must not exist yet.
func (o *Orchestrator) Install(ctx context.Context, archivePath string, dest *sspak.Target, parts sspak.Parts, dropDatabase bool) error {
	parts = parts.Effective()

	exists, err := dest.Exists(ctx, dest.Path())
	if err != nil {
		return err
	}
	if exists {
		return sspak.Preconditionf("destination %s already exists", dest.String())
	}

	a, err := o.openArchive(archivePath)
	if err != nil {
		return err
	}

	err = dest.Mkdir(ctx, dest.Path())
	if err != nil {
		return fmt.Errorf("error creating destination: %w", err)
	}

	if parts.GitRemote {
		err = o.clone(ctx, a, dest)
		if err != nil {
			return err
		}
	}

	return o.load(ctx, a, dest, parts, dropDatabase)
}

func (o *Orchestrator) clone(ctx context.Context, a *archive.Archive, dest *sspak.Target) error {
	found, err := a.Contains(archive.EntryGitRemote)
	if err != nil || !found {
		return err
	}
	remote, err := a.GitRemote()
	if err != nil {
		return err
	}

	_, err = dest.Exec(ctx, sspak.NewCommand("git", "clone", remote.Remote, dest.Path()), sspak.ExecOptions{})
	if err != nil {
		return fmt.Errorf("error cloning %s: %w", remote.Remote, err)
	}

	// Without a recorded branch the commit is checked out as a detached HEAD
	ref := remote.Branch
	if ref == "" {
		ref = remote.SHA
	}
	if ref != "" {
		_, err = dest.Exec(ctx, sspak.NewCommand("git", "-C", dest.Path(), "checkout", ref), sspak.ExecOptions{})
		if err != nil {
			return fmt.Errorf("error checking out %s: %w", ref, err)
		}
	}

	o.logger.Info("sspak.transfer.Orchestrator.clone: Cloned repository",
		"remote", remote.Remote,
		"ref", ref,
		"destination", dest.String(),
	)
	o.EmitEvent(ClonedRepositoryEvent, remote, dest.Path())
	return nil
}

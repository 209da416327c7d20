package transfer

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
	"github.com/vansante/go-sspak/sniff"
)

// Load restores the selected parts of the pak into the site on the destination target.
// Parts selected but absent from the pak are skipped.
func (o *Orchestrator) Load(ctx context.Context, archivePath string, dest *sspak.Target, parts sspak.Parts, dropDatabase bool) error {
	a, err := o.openArchive(archivePath)
	if err != nil {
		return err
	}
	return o.load(ctx, a, dest, parts.Effective(), dropDatabase)
}

func (o *Orchestrator) load(ctx context.Context, a *archive.Archive, dest *sspak.Target, parts sspak.Parts, dropDatabase bool) error {
	site, profile, err := o.discover(ctx, dest)
	if err != nil {
		return err
	}

	if parts.DB {
		err = o.loadDatabase(ctx, a, site, profile, dropDatabase)
		if err != nil {
			return err
		}
	}
	if parts.Assets {
		err = o.loadAssets(ctx, a, site, profile)
		if err != nil {
			return err
		}
	}

	o.logger.Info("sspak.transfer.Orchestrator.load: Loaded archive",
		"archive", a.Location(),
		"destination", dest.String(),
		"parts", parts.String(),
	)
	return nil
}

// openEntry opens the entry for reading with progress events, it returns a nil reader when the pak lacks it
func (o *Orchestrator) openEntry(a *archive.Archive, entry string) (*sspak.CountReader, io.Closer, error) {
	found, err := a.Contains(entry)
	if err != nil || !found {
		if err == nil {
			o.logger.Debug("sspak.transfer.Orchestrator.openEntry: Archive has no such entry, skipping",
				"archive", a.Location(),
				"entry", entry,
			)
		}
		return nil, nil, err
	}

	rc, _, err := a.ReadEntry(entry)
	if err != nil {
		return nil, nil, err
	}
	counter := sspak.NewCountReader(rc)
	counter.SetProgressCallback(o.config.ProgressEventInterval, func(read int64) {
		o.EmitEvent(PartProgressEvent, entry, read)
	})
	return counter, rc, nil
}

func (o *Orchestrator) loadDatabase(ctx context.Context, a *archive.Archive, site *sniff.Site, profile *sniff.Profile, drop bool) error {
	reader, closer, err := o.openEntry(a, archive.EntryDatabase)
	if err != nil || reader == nil {
		return err
	}
	defer closer.Close()

	strategy, err := o.registry.Lookup(profile.DatabaseKind)
	if err != nil {
		return err
	}

	o.EmitEvent(LoadingPartEvent, archive.EntryDatabase, site.String())
	err = strategy.Prepare(ctx, site.Target, profile, drop)
	if err != nil {
		return fmt.Errorf("error preparing database %s: %w", profile.DatabaseName, err)
	}

	filtered := strategy.FilterDump(reader)
	defer filtered.Close()
	_, err = site.Exec(ctx, strategy.RestoreCommand(profile), sspak.ExecOptions{
		InputStream:  filtered,
		OutputStream: io.Discard,
	})
	if err != nil {
		return err
	}
	o.EmitEvent(LoadedPartEvent, archive.EntryDatabase, reader.Count())
	return nil
}

// loadAssets moves the current assets aside, extracts the new ones in their place and only then removes
// the old ones. A failure during extraction leaves the old assets in the .old sibling.
func (o *Orchestrator) loadAssets(ctx context.Context, a *archive.Archive, site *sniff.Site, profile *sniff.Profile) error {
	reader, closer, err := o.openEntry(a, archive.EntryAssets)
	if err != nil || reader == nil {
		return err
	}
	defer closer.Close()

	parent, base, err := assetsLocation(site, profile)
	if err != nil {
		return err
	}
	old := base + ".old-" + uuid.NewString()
	qParent, qBase, qOld := sspak.Quote(parent), sspak.Quote(base), sspak.Quote(old)

	o.EmitEvent(LoadingPartEvent, archive.EntryAssets, site.String())
	_, err = site.Exec(ctx, sspak.ShellCommand(fmt.Sprintf(
		"mkdir -p %s && cd %s && if [ -d %s ]; then mv %s %s; fi", qParent, qParent, qBase, qBase, qOld,
	)), sspak.ExecOptions{})
	if err != nil {
		return fmt.Errorf("error moving assets aside: %w", err)
	}

	// The pak may hold the assets under another directory name than the destination uses
	_, err = site.Exec(ctx, sspak.ShellCommand(fmt.Sprintf(
		"cd %s && mkdir %s && tar xzf - -C %s --strip-components=1", qParent, qBase, qBase,
	)), sspak.ExecOptions{
		InputStream:  reader,
		OutputStream: io.Discard,
	})
	if err != nil {
		o.logger.Error("sspak.transfer.Orchestrator.loadAssets: Error extracting assets, previous assets kept",
			"error", err,
			"target", site.String(),
			"previous", path.Join(parent, old),
		)
		return fmt.Errorf("error extracting assets: %w", err)
	}

	err = site.Remove(ctx, path.Join(parent, old))
	if err != nil {
		return fmt.Errorf("error removing previous assets: %w", err)
	}
	o.EmitEvent(LoadedPartEvent, archive.EntryAssets, reader.Count())
	return nil
}

package job

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sspak "github.com/vansante/go-sspak"
)

func (r *Runner) savePaks() error {
	for _, site := range r.config.Sites {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}

		err := r.saveSitePak(site)
		switch {
		case isContextError(err):
			return err
		case err != nil:
			r.logger.Error("sspak.job.Runner.savePaks: Error saving site", "error", err, "site", site.Name)
			continue // on to the next site
		}
	}
	return nil
}

func (r *Runner) saveSitePak(site Site) error {
	paks, err := r.listPaks(site.Name)
	if err != nil {
		return fmt.Errorf("error listing existing paks: %w", err)
	}
	latest := time.Unix(1, 0) // A long, long time ago...
	for _, p := range paks {
		if p.State.CreatedAt.After(latest) {
			latest = p.State.CreatedAt
		}
	}

	if time.Since(latest) < site.Interval {
		return nil // The interval since the last pak has not elapsed
	}

	err = os.MkdirAll(r.siteDirectory(site.Name), 0o755)
	if err != nil {
		return err
	}

	tm := time.Now()
	path := filepath.Join(r.siteDirectory(site.Name), r.pakName(site.Name, tm))
	source := sspak.NewTarget(site.Location, r.executor, r.logger)
	source.SetSudo(site.Sudo)

	err = r.saver.Save(r.ctx, source, path, site.parts())
	if err != nil {
		return fmt.Errorf("error saving %s: %w", site.Location, err)
	}
	err = writeState(path, pakState{Site: site.Name, CreatedAt: tm})
	if err != nil {
		return fmt.Errorf("error writing state of %s: %w", path, err)
	}

	r.logger.Info("sspak.job.Runner.saveSitePak: Saved pak", "site", site.Name, "pak", path)
	r.EmitEvent(CreatedPakEvent, site.Name, path, tm)
	return nil
}

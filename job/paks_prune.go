package job

import (
	"errors"
	"fmt"
	"os"
	"time"
)

func (r *Runner) prunePaks() error {
	now := time.Now()
	for _, site := range r.config.Sites {
		if r.ctx.Err() != nil {
			return nil // context expired, no problem
		}

		paks, err := r.listPaks(site.Name)
		if err != nil {
			return fmt.Errorf("error finding prunable paks of %s: %w", site.Name, err)
		}
		for _, p := range paks {
			if p.State.DeleteAt.IsZero() || p.State.DeleteAt.After(now) {
				continue // Not due for removal yet
			}

			err = os.Remove(p.Path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("error removing %s: %w", p.Path, err)
			}
			err = os.Remove(statePath(p.Path))
			if err != nil {
				return fmt.Errorf("error removing state of %s: %w", p.Path, err)
			}

			r.logger.Info("sspak.job.Runner.prunePaks: Removed pak", "site", site.Name, "pak", p.Path)
			r.EmitEvent(DeletedPakEvent, p.Path, site.Name)
		}
	}
	return nil
}

package job

import (
	"fmt"
	"time"
)

func (r *Runner) markPrunablePaks() error {
	for _, site := range r.config.Sites {
		if r.ctx.Err() != nil {
			return nil // context expired, no problem
		}
		if site.RetentionCount <= 0 && site.RetentionAge <= 0 {
			continue
		}

		err := r.markSitePaks(site)
		if err != nil {
			r.logger.Error("sspak.job.Runner.markPrunablePaks: Error marking paks", "error", err, "site", site.Name)
			continue // on to the next site
		}
	}
	return nil
}

// prunable returns whether a pak may be marked for deletion, unpushed paks are kept while pushing is enabled
func (r *Runner) prunable(p pak) bool {
	if !p.State.DeleteAt.IsZero() {
		return false
	}
	return !r.config.EnablePakPush || !p.State.PushedAt.IsZero()
}

func (r *Runner) markSitePaks(site Site) error {
	paks, err := r.listPaks(site.Name)
	if err != nil {
		return fmt.Errorf("error listing paks: %w", err)
	}

	// Newest first, so the newest are the ones kept
	reverse(paks)
	now := time.Now()
	kept := 0
	for _, p := range paks {
		if !p.State.DeleteAt.IsZero() {
			continue
		}
		kept++

		excess := site.RetentionCount > 0 && kept > site.RetentionCount
		aged := site.RetentionAge > 0 && p.State.CreatedAt.Add(site.RetentionAge).Before(now)
		if !excess && !aged {
			continue
		}
		if !r.prunable(p) {
			continue
		}

		p.State.DeleteAt = now
		err = writeState(p.Path, p.State)
		if err != nil {
			return fmt.Errorf("error marking %s: %w", p.Path, err)
		}
		r.EmitEvent(MarkPakDeletionEvent, p.Path, site.Name)
	}
	return nil
}

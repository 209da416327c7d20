package job

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/store"
)

func (r *Runner) pushPaks() error {
	for _, site := range r.config.Sites {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}

		paks, err := r.listPaks(site.Name)
		if err != nil {
			return fmt.Errorf("error listing paks of %s: %w", site.Name, err)
		}
		for _, p := range paks {
			if !p.State.PushedAt.IsZero() || !p.State.DeleteAt.IsZero() {
				continue
			}

			err = r.pushPakLocked(p)
			switch {
			case isContextError(err) && r.ctx.Err() != nil:
				return err
			case err != nil:
				r.logger.Error("sspak.job.Runner.pushPaks: Error pushing pak", "error", err, "pak", p.Path)
			}
		}
	}
	return nil
}

func (r *Runner) pushLocation(p pak) (store.Location, error) {
	loc, err := store.ParseLocation(r.config.PushPrefix)
	if err != nil {
		return store.Location{}, err
	}
	loc.Key = path.Join(loc.Key, p.State.Site, filepath.Base(p.Path))
	return loc, nil
}

func (r *Runner) pushPakLocked(p pak) error {
	locked, unlock := r.pushLock(p.Path)
	if !locked {
		return nil // Another routine is pushing this pak
	}
	defer unlock()

	// Reread, the pak may have been pushed while waiting for the lock
	state, err := readState(p.Path)
	if err != nil {
		return err
	}
	if !state.PushedAt.IsZero() {
		return nil
	}
	p.State = state
	return r.pushPak(p)
}

func (r *Runner) pushPak(p pak) error {
	loc, err := r.pushLocation(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.config.MaximumPushTime)
	defer cancel()
	untrack := r.trackPush(pakPush{
		pak:      p.Path,
		site:     p.State.Site,
		location: loc.String(),
		started:  time.Now(),
		cancel:   cancel,
	})
	defer untrack()

	r.EmitEvent(StartPushingPakEvent, p.Path, loc.String())
	err = r.pusher.Push(ctx, p.Path, loc)
	if errors.Is(err, sspak.ErrPreconditionFailed) {
		// The object exists, an earlier push completed without recording it
		r.logger.Warn("sspak.job.Runner.pushPak: Pak already pushed", "pak", p.Path, "location", loc.String())
		err = nil
	}
	if err != nil {
		return err
	}

	p.State.PushedAt = time.Now()
	p.State.PushedTo = loc.String()
	err = writeState(p.Path, p.State)
	if err != nil {
		return fmt.Errorf("error writing state of %s: %w", p.Path, err)
	}

	r.EmitEvent(PushedPakEvent, p.Path, loc.String())
	return nil
}

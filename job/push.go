package job

import (
	"context"
	"time"
)

// PakPush represents a pak being pushed to the object store
type PakPush interface {
	// Pak returns the path of the pak
	Pak() string
	// Site returns the site the pak was saved from
	Site() string
	// Location returns the s3:// location the pak is pushed to
	Location() string
	// StartedAt returns when the push was started
	StartedAt() time.Time
	// CancelPush cancels the push
	CancelPush()
}

type pakPush struct {
	pak      string
	site     string
	location string
	started  time.Time
	cancel   context.CancelFunc
}

func (p pakPush) Pak() string {
	return p.pak
}

func (p pakPush) Site() string {
	return p.site
}

func (p pakPush) Location() string {
	return p.location
}

func (p pakPush) StartedAt() time.Time {
	return p.started
}

func (p pakPush) CancelPush() {
	p.cancel()
}

// ListCurrentPushes returns the pushes currently running
func (r *Runner) ListCurrentPushes() []PakPush {
	r.mapLock.Lock()
	defer r.mapLock.Unlock()

	pushes := make([]PakPush, 0, len(r.currentPushes))
	for _, push := range r.currentPushes {
		pushes = append(pushes, push)
	}
	return pushes
}

func (r *Runner) trackPush(push pakPush) (untrack func()) {
	r.mapLock.Lock()
	r.currentPushes[push.pak] = push
	r.mapLock.Unlock()

	return func() {
		r.mapLock.Lock()
		delete(r.currentPushes, push.pak)
		r.mapLock.Unlock()
	}
}

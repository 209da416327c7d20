package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/store"
)

const (
	savePakInterval  = time.Minute
	pushPakInterval  = time.Minute
	markPakInterval  = time.Minute
	prunePakInterval = time.Minute
)

// Saver saves a site into a new pak
type Saver interface {
	Save(ctx context.Context, source *sspak.Target, archivePath string, parts sspak.Parts) error
}

// Pusher uploads a pak to an object store
type Pusher interface {
	Push(ctx context.Context, path string, loc store.Location) error
}

// NewRunner creates a new job runner. The pusher is only used when pushing is enabled.
func NewRunner(ctx context.Context, conf Config, executor *sspak.Executor, saver Saver, pusher Pusher, logger *slog.Logger) *Runner {
	return &Runner{
		Emitter:       eventemitter.NewEmitter(false),
		config:        conf,
		executor:      executor,
		saver:         saver,
		pusher:        pusher,
		pakPushLock:   make(map[string]struct{}),
		currentPushes: make(map[string]pakPush),
		logger:        logger,
		ctx:           ctx,
	}
}

// Runner runs Save, Push, Mark and Prune pak jobs for the configured sites
type Runner struct {
	*eventemitter.Emitter

	config   Config
	executor *sspak.Executor
	saver    Saver
	pusher   Pusher

	mapLock       sync.Mutex
	pakPushLock   map[string]struct{}
	currentPushes map[string]pakPush

	logger *slog.Logger
	ctx    context.Context
}

func (r *Runner) pushLock(pak string) (succeeded bool, unlock func()) {
	r.mapLock.Lock()
	_, ok := r.pakPushLock[pak]
	if ok {
		// Entry found, already locked.
		r.mapLock.Unlock()
		return false, func() {} // Noop unlock
	}
	r.pakPushLock[pak] = struct{}{}
	r.mapLock.Unlock()

	return true, func() {
		r.mapLock.Lock()
		delete(r.pakPushLock, pak)
		r.mapLock.Unlock()
	}
}

// Run starts the goroutines for the different types of jobs
func (r *Runner) Run() {
	if r.config.EnablePakSave {
		go r.runJob("savePaks", savePakInterval, r.savePaks)
	}

	if r.config.EnablePakPush && r.pusher != nil {
		// Start as many go routines as configured
		for i := 1; i <= r.config.PushRoutines; i++ {
			go r.runPushRoutine(i)
		}
	}

	if r.config.EnablePakMark {
		go r.runJob("markPrunablePaks", markPakInterval, r.markPrunablePaks)
	}

	if r.config.EnablePakPrune {
		go r.runJob("prunePaks", prunePakInterval, r.prunePaks)
	}
}

func (r *Runner) runPushRoutine(id int) {
	// Add some sleep, so not all push routines start at the same time:
	sleepTime := time.Duration(int(pushPakInterval) / r.config.PushRoutines * (id - 1))
	select {
	case <-time.After(sleepTime):
	case <-r.ctx.Done():
		return
	}
	r.runJob("pushPaks", pushPakInterval, r.pushPaks, "routineID", id)
}

func (r *Runner) runJob(name string, interval time.Duration, job func() error, args ...any) {
	logger := r.logger.With(args...)
	dur := randomizeDuration(interval)
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	logger.Info("sspak.job.Runner.runJob: Running", "job", name, "interval", dur)
	defer logger.Info("sspak.job.Runner.runJob: Stopped", "job", name)

	for {
		select {
		case <-ticker.C:
			err := job()
			switch {
			case isContextError(err):
				logger.Info("sspak.job.Runner.runJob: Job interrupted", "job", name, "error", err)
			case err != nil:
				logger.Error("sspak.job.Runner.runJob: Job failed", "job", name, "error", err)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// Package transfer moves sites into and out of paks: it saves the database, assets and git remote of a
// site into a pak, loads a pak into an existing site and installs a pak as a new site.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	eventemitter "github.com/vansante/go-event-emitter"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
	"github.com/vansante/go-sspak/database"
	"github.com/vansante/go-sspak/sniff"
)

// Orchestrator runs the save, load and install operations. It emits events while doing so.
type Orchestrator struct {
	*eventemitter.Emitter

	config   Config
	executor *sspak.Executor
	registry *database.Registry
	sniffer  *sniff.Sniffer
	logger   *slog.Logger
}

// NewOrchestrator creates a new orchestrator. The executor runs the local commands of SaveExisting.
func NewOrchestrator(conf Config, executor *sspak.Executor, registry *database.Registry, sniffer *sniff.Sniffer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Emitter:  eventemitter.NewEmitter(false),
		config:   conf,
		executor: executor,
		registry: registry,
		sniffer:  sniffer,
		logger:   logger,
	}
}

func (o *Orchestrator) writerOptions() archive.WriterOptions {
	return archive.WriterOptions{
		TempDir:          o.config.TempDir,
		BytesPerSecond:   o.config.BytesPerSecond,
		ProgressInterval: o.config.ProgressEventInterval,
		Progress: func(entry string, written int64) {
			o.EmitEvent(PartProgressEvent, entry, written)
		},
	}
}

func (o *Orchestrator) openArchive(location string) (*archive.Archive, error) {
	a := archive.Open(location)
	a.SetBytesPerSecond(o.config.BytesPerSecond)
	return a, a.RequireExists()
}

func (o *Orchestrator) discover(ctx context.Context, target *sspak.Target) (*sniff.Site, *sniff.Profile, error) {
	site := sniff.NewSite(target, o.sniffer)
	profile, err := site.Profile(ctx)
	if err != nil {
		return nil, nil, err
	}
	o.logger.Info("sspak.transfer.Orchestrator.discover: Discovered site",
		"target", target.String(),
		"databaseKind", profile.DatabaseKind,
		"database", profile.DatabaseName,
		"assetsPath", profile.AssetsPath,
	)
	o.EmitEvent(DiscoveredSiteEvent, target.String(), profile)
	return site, profile, nil
}

// assetsLocation returns the parent directory and base name of the assets directory of a site
func assetsLocation(site *sniff.Site, profile *sniff.Profile) (parent, base string, err error) {
	assets := profile.AssetsPath
	if !path.IsAbs(assets) {
		assets = path.Join(site.Path(), assets)
	}
	assets = path.Clean(assets)
	parent, base = path.Split(assets)
	if base == "" || base == "." || base == "/" {
		return "", "", fmt.Errorf("%w: invalid assets path %q", sspak.ErrDiscoveryFailed, profile.AssetsPath)
	}
	return path.Clean(parent), base, nil
}

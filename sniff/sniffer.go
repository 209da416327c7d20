package sniff

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"

	sspak "github.com/vansante/go-sspak"
)

//go:embed sspak-sniffer.php
var defaultPayload []byte

const (
	defaultRuntime   = "/usr/bin/env php"
	defaultRemoteDir = "/tmp"
	defaultExtension = ".php"
)

// DefaultPayload returns the bundled SilverStripe sniffer script
func DefaultPayload() []byte {
	return append([]byte(nil), defaultPayload...)
}

// Config configures how the sniffer is executed
type Config struct {
	// Runtime is the command line the sniffer script is passed to
	Runtime string `mapstructure:"runtime" validate:"required"`
	// RemoteDir is where the sniffer script is uploaded to on remote targets
	RemoteDir string `mapstructure:"remote_dir" validate:"required"`
	// Extension is the file extension of the uploaded script
	Extension string `mapstructure:"extension"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.Runtime = defaultRuntime
	c.RemoteDir = defaultRemoteDir
	c.Extension = defaultExtension
}

// Sniffer runs a sniffer script on a target to discover its site Profile
type Sniffer struct {
	config  Config
	runtime sspak.Command
	payload []byte
	logger  *slog.Logger
}

// NewSniffer creates a sniffer executing payload with the configured runtime
func NewSniffer(conf Config, payload []byte, logger *slog.Logger) (*Sniffer, error) {
	runtime, err := sspak.ParseCommand(conf.Runtime)
	if err != nil {
		return nil, fmt.Errorf("invalid sniffer runtime %q: %w", conf.Runtime, err)
	}
	if runtime.IsZero() || len(runtime.Args()) == 0 {
		return nil, fmt.Errorf("empty sniffer runtime")
	}
	if len(payload) == 0 {
		return nil, errors.New("empty sniffer payload")
	}
	return &Sniffer{
		config:  conf,
		runtime: runtime,
		payload: payload,
		logger:  logger,
	}, nil
}

// Discover places the sniffer on the target, runs it with sudo escalation against the target path,
// removes it again and parses its output.
func (s *Sniffer) Discover(ctx context.Context, target *sspak.Target) (*Profile, error) {
	scriptPath, cleanup, err := s.place(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("error placing sniffer: %w", err)
	}
	defer cleanup()

	args := append(s.runtime.Args(), scriptPath, target.Path())
	res, err := target.ExecSudo(ctx, sspak.NewCommand(args...), sspak.ExecOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sspak.ErrDiscoveryFailed, err)
	}

	profile, err := Parse([]byte(res.Output))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sspak.sniff.Sniffer.Discover: Discovered site",
		"target", target.String(),
		"databaseKind", profile.DatabaseKind,
		"assetsPath", profile.AssetsPath,
	)
	return profile, nil
}

// place writes the payload to a temporary file on the target and returns a function removing it again
func (s *Sniffer) place(ctx context.Context, target *sspak.Target) (string, func(), error) {
	if target.IsLocal() {
		file, err := os.CreateTemp("", "sspak-sniffer-*"+s.config.Extension)
		if err != nil {
			return "", nil, err
		}
		name := file.Name()
		cleanup := func() {
			_ = os.Remove(name)
		}
		_, err = file.Write(s.payload)
		if err == nil {
			// A sudo user has to be able to read it
			err = file.Chmod(0o644)
		}
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			cleanup()
			return "", nil, err
		}
		return name, cleanup, nil
	}

	name := path.Join(s.config.RemoteDir, "sspak-sniffer-"+uuid.NewString()+s.config.Extension)
	err := target.UploadContent(ctx, s.payload, name)
	if err != nil {
		return "", nil, err
	}
	return name, func() {
		err := target.Remove(context.WithoutCancel(ctx), name)
		if err != nil {
			s.logger.Error("sspak.sniff.Sniffer.place: Error removing sniffer",
				"error", err,
				"target", target.String(),
				"path", name,
			)
		}
	}, nil
}

// Site is a target together with its lazily discovered profile, which is discovered only once
type Site struct {
	*sspak.Target

	sniffer *Sniffer
	mu      sync.Mutex
	profile *Profile
}

// NewSite creates a new site on the target
func NewSite(target *sspak.Target, sniffer *Sniffer) *Site {
	return &Site{
		Target:  target,
		sniffer: sniffer,
	}
}

// Profile returns the site profile, discovering it on first use
func (s *Site) Profile(ctx context.Context) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil {
		return s.profile, nil
	}
	profile, err := s.sniffer.Discover(ctx, s.Target)
	if err != nil {
		return nil, err
	}
	s.profile = profile
	return profile, nil
}

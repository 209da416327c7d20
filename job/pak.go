package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	pakExtension   = ".sspak"
	stateExtension = ".state.yaml"
)

// pakState is kept next to every pak the runner saves. Paks without one are left alone.
type pakState struct {
	Site      string    `yaml:"site"`
	CreatedAt time.Time `yaml:"created_at"`
	PushedAt  time.Time `yaml:"pushed_at,omitempty"`
	PushedTo  string    `yaml:"pushed_to,omitempty"`
	DeleteAt  time.Time `yaml:"delete_at,omitempty"`
}

type pak struct {
	Path  string
	State pakState
}

func statePath(pakPath string) string {
	return pakPath + stateExtension
}

func readState(pakPath string) (pakState, error) {
	data, err := os.ReadFile(statePath(pakPath))
	if err != nil {
		return pakState{}, err
	}
	var state pakState
	err = yaml.Unmarshal(data, &state)
	if err != nil {
		return pakState{}, fmt.Errorf("error parsing state of %s: %w", pakPath, err)
	}
	return state, nil
}

// writeState replaces the state file in one rename, so it is never read half written
func writeState(pakPath string, state pakState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return err
	}
	tmp := statePath(pakPath) + ".tmp"
	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		return err
	}
	err = os.Rename(tmp, statePath(pakPath))
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

func (r *Runner) siteDirectory(site string) string {
	return filepath.Join(r.config.Directory, site)
}

// listPaks returns the paks of a site with the oldest first
func (r *Runner) listPaks(site string) ([]pak, error) {
	files, err := filepath.Glob(filepath.Join(r.siteDirectory(site), "*"+pakExtension))
	if err != nil {
		return nil, err
	}

	paks := make([]pak, 0, len(files))
	for _, file := range files {
		state, err := readState(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		paks = append(paks, pak{Path: file, State: state})
	}
	orderPaksByCreated(paks)
	return paks, nil
}

func (r *Runner) pakName(site string, tm time.Time) string {
	name := r.config.PakNameTemplate
	name = strings.ReplaceAll(name, "%SITE%", site)
	name = strings.ReplaceAll(name, "%UNIXTIME%", strconv.FormatInt(tm.Unix(), 10))
	name = strings.ReplaceAll(name, "%DATETIME%", tm.UTC().Format("20060102-150405"))
	if !strings.HasSuffix(name, pakExtension) {
		name += pakExtension
	}
	return name
}

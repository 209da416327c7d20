// Package database dumps and restores site databases with the external tools of each database kind.
package database

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/sniff"
)

// Strategy dumps and restores one kind of database through shell pipelines on a target
type Strategy interface {
	// DumpCommand returns a command writing a plain SQL dump to stdout
	DumpCommand(profile *sniff.Profile) sspak.Command
	// FilterDump strips the statements that create or switch databases from a gzip compressed dump
	FilterDump(src io.Reader) io.ReadCloser
	// Prepare makes sure the database exists, dropping it first when drop is set
	Prepare(ctx context.Context, target *sspak.Target, profile *sniff.Profile, drop bool) error
	// RestoreCommand returns a pipeline restoring a gzip compressed dump read from stdin
	RestoreCommand(profile *sniff.Profile) sspak.Command
}

// Registry maps the database kinds reported by the sniffer to their strategies
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a registry with the MySQL and PostgreSQL strategies registered
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, kind := range []string{KindMySQL, KindMySQLPDO} {
		r.Register(kind, MySQL{})
	}
	for _, kind := range []string{KindPostgreSQL, KindPostgrePDO} {
		r.Register(kind, PostgreSQL{})
	}
	return r
}

// Register adds or replaces the strategy for a database kind
func (r *Registry) Register(kind string, strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[kind] = strategy
}

// Lookup returns the strategy for a database kind, or an error wrapping ErrUnsupportedDatabase
func (r *Registry) Lookup(kind string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sspak.ErrUnsupportedDatabase, kind)
	}
	return strategy, nil
}

// Kinds returns the registered database kinds in alphabetical order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.strategies))
	for kind := range r.strategies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

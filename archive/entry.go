// Package archive reads and writes pak files: tar containers holding a database dump, an assets tarball
// and a git remote descriptor. A pak can also be appended to an executable, see Bundle.
package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// The fixed vocabulary of entries a pak can hold
const (
	EntryDatabase  = "database.sql.gz"
	EntryAssets    = "assets.tar.gz"
	EntryGitRemote = "git-remote"
)

// Entries lists all entry names in the order they are written
var Entries = []string{EntryDatabase, EntryAssets, EntryGitRemote}

// SelfLocation refers to the pak appended to the running executable
const SelfLocation = "@self"

const checksumRecord = "SSPAK.xxhash64"

var (
	ErrUnknownEntry    = errors.New("unknown archive entry")
	ErrEntryExists     = errors.New("archive entry already written")
	ErrEntryNotFound   = errors.New("archive entry not found")
	ErrSelfNotWritable = errors.New("the running executable cannot be written to")
	ErrNoPayload       = errors.New("the running executable carries no archive")
	ErrWriterClosed    = errors.New("archive writer is closed")
)

// ValidEntry returns whether name is part of the entry vocabulary
func ValidEntry(name string) bool {
	for _, entry := range Entries {
		if entry == name {
			return true
		}
	}
	return false
}

func checkEntry(name string) error {
	if !ValidEntry(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEntry, name)
	}
	return nil
}

// EntryInfo describes an entry in a pak
type EntryInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	// Checksum is the hex encoded xxhash64 of the entry content, empty when the writer did not record one
	Checksum string `json:"checksum,omitempty"`
}

func formatChecksum(d *xxhash.Digest) string {
	return fmt.Sprintf("%016x", d.Sum64())
}

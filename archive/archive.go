package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	sspak "github.com/vansante/go-sspak"
)

// Archive reads the entries of an existing pak, either a file or the pak appended to the running executable
type Archive struct {
	location       string
	executable     string
	bytesPerSecond int64
}

// Open refers to the pak at location, which is a local path or SelfLocation. Nothing is read until needed.
func Open(location string) *Archive {
	return &Archive{location: location}
}

// Location returns where the pak is read from
func (a *Archive) Location() string {
	return a.location
}

// IsSelf returns whether the pak is appended to the running executable
func (a *Archive) IsSelf() bool {
	return a.location == SelfLocation
}

// SetBytesPerSecond limits the speed of entries read with ReadEntry
func (a *Archive) SetBytesPerSecond(bytesPerSecond int64) {
	a.bytesPerSecond = bytesPerSecond
}

// Exists returns whether the pak exists, for the running executable whether it carries a pak
func (a *Archive) Exists() (bool, error) {
	if a.IsSelf() {
		rc, err := a.openContainer()
		if errors.Is(err, ErrNoPayload) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, rc.Close()
	}

	stat, err := os.Stat(a.location)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	case stat.IsDir():
		return false, fmt.Errorf("%s is a directory", a.location)
	}
	return true, nil
}

// RequireExists returns an error wrapping ErrPreconditionFailed when the pak does not exist
func (a *Archive) RequireExists() error {
	exists, err := a.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return sspak.Preconditionf("archive %s does not exist", a.location)
	}
	return nil
}

type sectionReadCloser struct {
	*io.SectionReader
	io.Closer
}

// Raw opens the pak container itself for reading, for the running executable only the appended pak
func (a *Archive) Raw() (io.ReadCloser, int64, error) {
	if !a.IsSelf() {
		file, err := os.Open(a.location)
		if err != nil {
			return nil, 0, err
		}
		stat, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, 0, err
		}
		return file, stat.Size(), nil
	}

	executable := a.executable
	if executable == "" {
		var err error
		executable, err = os.Executable()
		if err != nil {
			return nil, 0, fmt.Errorf("error locating executable: %w", err)
		}
	}
	file, err := os.Open(executable)
	if err != nil {
		return nil, 0, err
	}
	offset, size, err := payloadBounds(file)
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return sectionReadCloser{SectionReader: io.NewSectionReader(file, offset, size), Closer: file}, size, nil
}

func (a *Archive) openContainer() (io.ReadCloser, error) {
	rc, _, err := a.Raw()
	return rc, err
}

// walk calls fn for every entry header until fn returns false
func (a *Archive) walk(fn func(hdr *tar.Header, tr *tar.Reader) (bool, error)) error {
	rc, err := a.openContainer()
	if err != nil {
		return err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading archive %s: %w", a.location, err)
		}
		cont, err := fn(hdr, tr)
		if err != nil || !cont {
			return err
		}
	}
}

func headerInfo(hdr *tar.Header) EntryInfo {
	return EntryInfo{
		Name:     hdr.Name,
		Size:     hdr.Size,
		ModTime:  hdr.ModTime,
		Checksum: hdr.PAXRecords[checksumRecord],
	}
}

// Entries lists the entries of the pak
func (a *Archive) Entries() ([]EntryInfo, error) {
	var entries []EntryInfo
	err := a.walk(func(hdr *tar.Header, _ *tar.Reader) (bool, error) {
		entries = append(entries, headerInfo(hdr))
		return true, nil
	})
	return entries, err
}

// Contains returns whether the pak holds the entry
func (a *Archive) Contains(name string) (bool, error) {
	err := checkEntry(name)
	if err != nil {
		return false, err
	}
	found := false
	err = a.walk(func(hdr *tar.Header, _ *tar.Reader) (bool, error) {
		found = hdr.Name == name
		return !found, nil
	})
	return found, err
}

type entryReader struct {
	io.Reader
	container io.Closer
}

func (r *entryReader) Close() error {
	return r.container.Close()
}

// ReadEntry opens the entry for streamed reading. The caller must close the returned reader.
func (a *Archive) ReadEntry(name string) (io.ReadCloser, EntryInfo, error) {
	err := checkEntry(name)
	if err != nil {
		return nil, EntryInfo{}, err
	}

	rc, err := a.openContainer()
	if err != nil {
		return nil, EntryInfo{}, err
	}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			_ = rc.Close()
			return nil, EntryInfo{}, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
		}
		if err != nil {
			_ = rc.Close()
			return nil, EntryInfo{}, fmt.Errorf("error reading archive %s: %w", a.location, err)
		}
		if hdr.Name == name {
			return &entryReader{
				Reader:    sspak.RateLimitReader(tr, a.bytesPerSecond),
				container: rc,
			}, headerInfo(hdr), nil
		}
	}
}

// Content returns the full content of a small entry
func (a *Archive) Content(name string) ([]byte, error) {
	r, _, err := a.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// GitRemote parses the git remote descriptor entry
func (a *Archive) GitRemote() (sspak.GitRemote, error) {
	content, err := a.Content(EntryGitRemote)
	if err != nil {
		return sspak.GitRemote{}, err
	}
	return sspak.ParseGitRemote(content)
}

// Verify recomputes the checksum of an entry and compares it with the recorded one.
// Entries without a recorded checksum, as written by other tools, are reported as valid.
func (a *Archive) Verify(name string) (bool, error) {
	r, info, err := a.ReadEntry(name)
	if err != nil {
		return false, err
	}
	defer r.Close()

	digest := xxhash.New()
	_, err = io.Copy(digest, r)
	if err != nil {
		return false, err
	}
	return info.Checksum == "" || info.Checksum == formatChecksum(digest), nil
}

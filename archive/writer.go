package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	sspak "github.com/vansante/go-sspak"
)

// WriterOptions are options you can specify to customize writing a pak
type WriterOptions struct {
	// TempDir holds streamed entries until their size is known and they can be added, defaults to os.TempDir()
	TempDir string
	// When set, uses a rate-limiter to limit streamed entries to this amount of bytes per second
	BytesPerSecond int64
	// Progress is called with the bytes streamed into an entry so far, at most once every ProgressInterval
	Progress         func(entry string, written int64)
	ProgressInterval time.Duration
}

// Writer adds entries to a new pak. Every entry can be written only once.
type Writer struct {
	path    string
	file    *os.File
	tw      *tar.Writer
	options WriterOptions
	logger  *slog.Logger

	mu      sync.Mutex
	written []EntryInfo
	closed  bool
}

// Create creates a new pak at the path, it fails when the file already exists
func Create(path string, options WriterOptions, logger *slog.Logger) (*Writer, error) {
	if path == SelfLocation {
		return nil, ErrSelfNotWritable
	}
	if options.TempDir == "" {
		options.TempDir = os.TempDir()
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, sspak.Preconditionf("file %s already exists", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating archive: %w", err)
	}

	return &Writer{
		path:    path,
		file:    file,
		tw:      tar.NewWriter(file),
		options: options,
		logger:  logger,
	}, nil
}

// Path returns the path of the pak being written
func (w *Writer) Path() string {
	return w.path
}

// Entries returns the entries written so far
func (w *Writer) Entries() []EntryInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]EntryInfo(nil), w.written...)
}

func (w *Writer) reserve(name string) error {
	err := checkEntry(name)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	for _, info := range w.written {
		if info.Name == name {
			return fmt.Errorf("%w: %s", ErrEntryExists, name)
		}
	}
	return nil
}

// WriteEntryFromProcess executes the process with its stdout streamed into the entry.
// The stream is spooled through a temporary file because a tar header needs the entry size upfront.
func (w *Writer) WriteEntryFromProcess(ctx context.Context, name string, proc *sspak.Process) (EntryInfo, error) {
	err := w.reserve(name)
	if err != nil {
		return EntryInfo{}, err
	}

	return w.spool(name, func(dst io.Writer) error {
		_, err := proc.Exec(ctx, sspak.ExecOptions{
			OutputStream: sspak.RateLimitWriter(dst, w.options.BytesPerSecond),
		})
		return err
	})
}

// WriteCompressedEntryFromProcess executes the process with its stdout gzip compressed into the entry.
// Compressing here instead of in a shell pipeline keeps the exit status of the process itself.
func (w *Writer) WriteCompressedEntryFromProcess(ctx context.Context, name string, proc *sspak.Process) (EntryInfo, error) {
	err := w.reserve(name)
	if err != nil {
		return EntryInfo{}, err
	}

	return w.spool(name, func(dst io.Writer) error {
		gzw := gzip.NewWriter(dst)
		_, err := proc.Exec(ctx, sspak.ExecOptions{
			OutputStream: sspak.RateLimitWriter(gzw, w.options.BytesPerSecond),
		})
		if err != nil {
			_ = gzw.Close()
			return err
		}
		return gzw.Close()
	})
}

// WriteEntryFromReader streams the reader into the entry
func (w *Writer) WriteEntryFromReader(name string, r io.Reader) (EntryInfo, error) {
	err := w.reserve(name)
	if err != nil {
		return EntryInfo{}, err
	}

	return w.spool(name, func(dst io.Writer) error {
		_, err := io.Copy(sspak.RateLimitWriter(dst, w.options.BytesPerSecond), r)
		return err
	})
}

// WriteEntry writes small literal content into the entry
func (w *Writer) WriteEntry(name string, content []byte) (EntryInfo, error) {
	err := w.reserve(name)
	if err != nil {
		return EntryInfo{}, err
	}

	digest := xxhash.New()
	_, _ = digest.Write(content)
	info := EntryInfo{
		Name:     name,
		Size:     int64(len(content)),
		ModTime:  time.Now(),
		Checksum: formatChecksum(digest),
	}
	return info, w.add(info, bytes.NewReader(content))
}

func (w *Writer) spool(name string, fill func(dst io.Writer) error) (EntryInfo, error) {
	temp, err := os.CreateTemp(w.options.TempDir, "sspak-entry-*")
	if err != nil {
		return EntryInfo{}, fmt.Errorf("error creating temporary file: %w", err)
	}
	defer func() {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
	}()

	digest := xxhash.New()
	counter := sspak.NewCountWriter(io.MultiWriter(temp, digest))
	if w.options.Progress != nil {
		counter.SetProgressCallback(w.options.ProgressInterval, func(written int64) {
			w.options.Progress(name, written)
		})
	}
	err = fill(counter)
	if err != nil {
		return EntryInfo{}, fmt.Errorf("error streaming entry %s: %w", name, err)
	}

	_, err = temp.Seek(0, io.SeekStart)
	if err != nil {
		return EntryInfo{}, err
	}

	info := EntryInfo{
		Name:     name,
		Size:     counter.Count(),
		ModTime:  time.Now(),
		Checksum: formatChecksum(digest),
	}
	return info, w.add(info, temp)
}

func (w *Writer) add(info EntryInfo, content io.Reader) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	err := w.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     info.Name,
		Mode:     0o644,
		Size:     info.Size,
		ModTime:  info.ModTime,
		Format:   tar.FormatPAX,
		PAXRecords: map[string]string{
			checksumRecord: info.Checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("error writing header for %s: %w", info.Name, err)
	}
	n, err := io.Copy(w.tw, content)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", info.Name, err)
	}
	if n != info.Size {
		return fmt.Errorf("error writing %s: wrote %d of %d bytes", info.Name, n, info.Size)
	}

	w.written = append(w.written, info)
	w.logger.Info("sspak.archive.Writer.add: Added entry",
		"archive", w.path,
		"entry", info.Name,
		"size", humanize.IBytes(uint64(info.Size)),
		"checksum", info.Checksum,
	)
	return nil
}

// Close finalizes the pak
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	err := w.tw.Close()
	closeErr := w.file.Close()
	if err != nil {
		return fmt.Errorf("error finalizing archive: %w", err)
	}
	return closeErr
}

// Abort closes and removes the partially written pak
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		_ = w.file.Close()
	}
	err := os.Remove(w.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

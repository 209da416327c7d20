package sspak

import (
	"io"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// ChunkSize is the size of the buffer used when pumping streams in and out of processes
const ChunkSize = 8 * 1024

// RateLimitWriter wraps the writer in a rate limiter, unless bytesPerSecond is zero or less
func RateLimitWriter(writer io.Writer, bytesPerSecond int64) io.Writer {
	if bytesPerSecond <= 0 {
		return writer
	}
	return ratelimit.Writer(writer, ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond))
}

// RateLimitReader wraps the reader in a rate limiter, unless bytesPerSecond is zero or less
func RateLimitReader(reader io.Reader, bytesPerSecond int64) io.Reader {
	if bytesPerSecond <= 0 {
		return reader
	}
	return ratelimit.Reader(reader, ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond))
}

// pump copies src into dst in chunks of ChunkSize, without using ReaderFrom or WriterTo shortcuts
func pump(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// ProgressCallback receives the amount of bytes transferred so far
type ProgressCallback func(bytes int64)

type progress struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	fn       ProgressCallback
}

func (p *progress) report(n int64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	if time.Since(p.last) < p.interval {
		p.mu.Unlock()
		return
	}
	p.last = time.Now()
	p.mu.Unlock()
	p.fn(n)
}

// NewCountReader creates a new CountReader
func NewCountReader(reader io.Reader) *CountReader {
	return &CountReader{
		Reader: reader,
	}
}

// CountReader counts the bytes it has read
type CountReader struct {
	io.Reader
	n        int64
	progress progress
}

// SetProgressCallback calls fn with the amount of bytes read at most once every interval
func (r *CountReader) SetProgressCallback(interval time.Duration, fn ProgressCallback) {
	r.progress = progress{interval: interval, fn: fn, last: time.Now()}
}

func (r *CountReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.n += int64(n)
	r.progress.report(r.n)
	return n, err
}

func (r *CountReader) Count() int64 {
	return r.n
}

// NewCountWriter creates a new CountWriter
func NewCountWriter(writer io.Writer) *CountWriter {
	return &CountWriter{
		Writer: writer,
	}
}

// CountWriter counts the bytes it has written
type CountWriter struct {
	io.Writer
	n        int64
	progress progress
}

// SetProgressCallback calls fn with the amount of bytes written at most once every interval
func (w *CountWriter) SetProgressCallback(interval time.Duration, fn ProgressCallback) {
	w.progress = progress{interval: interval, fn: fn, last: time.Now()}
}

func (w *CountWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.n += int64(n)
	w.progress.report(w.n)
	return n, err
}

func (w *CountWriter) Count() int64 {
	return w.n
}

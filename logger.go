package sspak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logfmt/logfmt"
)

// NewLogfmtHandler creates a slog.Handler writing every record as a single logfmt line
func NewLogfmtHandler(w io.Writer, level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &logfmtHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

type logfmtHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []groupedAttr
	prefix string
}

func (h *logfmtHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *logfmtHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	enc := logfmt.NewEncoder(&buf)

	if !r.Time.IsZero() {
		encodeKeyval(enc, slog.TimeKey, r.Time.Format(time.RFC3339))
	}
	encodeKeyval(enc, slog.LevelKey, strings.ToLower(r.Level.String()))
	encodeKeyval(enc, slog.MessageKey, r.Message)

	for _, ga := range h.attrs {
		encodeAttr(enc, ga.prefix, ga.attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		encodeAttr(enc, h.prefix, attr)
		return true
	})
	err := enc.EndRecord()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(buf.Bytes())
	return err
}

func (h *logfmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]groupedAttr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{prefix: h.prefix, attr: attr})
	}
	return &clone
}

func (h *logfmtHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func encodeAttr(enc *logfmt.Encoder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = prefix + attr.Key + "."
		}
		for _, ga := range attr.Value.Group() {
			encodeAttr(enc, groupPrefix, ga)
		}
	case slog.KindTime:
		encodeKeyval(enc, prefix+attr.Key, attr.Value.Time().Format(time.RFC3339))
	case slog.KindDuration:
		encodeKeyval(enc, prefix+attr.Key, attr.Value.Duration().String())
	default:
		encodeKeyval(enc, prefix+attr.Key, attr.Value.Any())
	}
}

func encodeKeyval(enc *logfmt.Encoder, key string, value any) {
	err := enc.EncodeKeyval(key, value)
	if errors.Is(err, logfmt.ErrUnsupportedValueType) {
		_ = enc.EncodeKeyval(key, fmt.Sprintf("%+v", value))
	}
}

// NewTestLogger creates a logger that writes through the test log
func NewTestLogger(t testing.TB) *slog.Logger {
	return slog.New(NewLogfmtHandler(testWriter{t: t}, slog.LevelDebug))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/julienschmidt/httprouter"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

func (h *HTTP) handleListEntries(w http.ResponseWriter, _ *http.Request, _ httprouter.Params, logger *slog.Logger) {
	entries, err := h.archive.Entries()
	if err != nil {
		logger.Error("sspak.http.handleListEntries: Error listing entries", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []archive.EntryInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(entries)
	if err != nil {
		logger.Error("sspak.http.handleListEntries: Error encoding json", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

func (h *HTTP) handleGetEntry(w http.ResponseWriter, req *http.Request, ps httprouter.Params, logger *slog.Logger) {
	name := ps.ByName("entry")
	logger = logger.With("entry", name)

	if !archive.ValidEntry(name) {
		logger.Info("sspak.http.handleGetEntry: Invalid entry")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rc, info, err := h.archive.ReadEntry(name)
	switch {
	case errors.Is(err, archive.ErrEntryNotFound):
		logger.Info("sspak.http.handleGetEntry: Entry not found")
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		logger.Error("sspak.http.handleGetEntry: Error reading entry", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if info.Checksum != "" {
		w.Header().Set(HeaderChecksum, info.Checksum)
	}
	n, err := io.Copy(sspak.RateLimitWriter(w, h.getSpeed(req)), rc)
	if err != nil {
		logger.Error("sspak.http.handleGetEntry: Error sending entry", "error", err, "sent", n)
		return // Cannot send status code here.
	}
	logger.Info("sspak.http.handleGetEntry: Sent entry", "size", humanize.IBytes(uint64(n)))
}

func (h *HTTP) handleGetPak(w http.ResponseWriter, req *http.Request, _ httprouter.Params, logger *slog.Logger) {
	rc, size, err := h.archive.Raw()
	if err != nil {
		logger.Error("sspak.http.handleGetPak: Error opening archive", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-tar")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	n, err := io.Copy(sspak.RateLimitWriter(w, h.getSpeed(req)), rc)
	if err != nil {
		logger.Error("sspak.http.handleGetPak: Error sending archive", "error", err, "sent", n)
		return // Cannot send status code here.
	}
	logger.Info("sspak.http.handleGetPak: Sent archive", "size", humanize.IBytes(uint64(n)))
}

// Package http serves the entries of a pak over HTTP and fetches paks from such a server.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/vansante/go-sspak/archive"
)

const (
	HeaderAuthenticationToken = "X-SSPak-Auth-Token"
	HeaderChecksum            = "X-SSPak-Checksum"

	GETParamBytesPerSecond = "bytesPerSecond"

	shutdownTimeout = 10 * time.Second
)

// HTTP is the main object for serving a pak
type HTTP struct {
	router     *httprouter.Router
	config     Config
	archive    *archive.Archive
	httpSocket net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	ctx        context.Context
}

type handle func(http.ResponseWriter, *http.Request, httprouter.Params, *slog.Logger)

// NewHTTP creates a new HTTP server serving the pak
func NewHTTP(ctx context.Context, conf Config, pak *archive.Archive, logger *slog.Logger) (*HTTP, error) {
	h := newHTTP(ctx, conf, pak, logger)
	return h, h.init()
}

func newHTTP(ctx context.Context, conf Config, pak *archive.Archive, logger *slog.Logger) *HTTP {
	h := &HTTP{
		router:  httprouter.New(),
		config:  conf,
		archive: pak,
		logger:  logger,
		ctx:     ctx,
	}
	h.registerRoutes()
	return h
}

func (h *HTTP) init() error {
	h.logger.Info("sspak.http.init: Opening socket", "port", h.config.Port)
	var err error
	h.httpSocket, err = net.Listen("tcp", fmt.Sprintf("%s:%d", h.config.Host, h.config.Port))
	if err != nil {
		h.logger.Error("sspak.http.init: Failed to open socket", "error", err, "port", h.config.Port)
		return err
	}
	h.logger.Info("sspak.http.init: Serving", "host", h.config.Host, "port", h.config.Port, "archive", h.archive.Location())
	h.httpServer = &http.Server{
		Handler: h.router,
		BaseContext: func(_ net.Listener) context.Context {
			return h.ctx
		},
	}
	return nil
}

func (h *HTTP) registerRoutes() {
	h.router.GET("/entries", h.authenticated(h.handleListEntries))
	h.router.GET("/entries/:entry", h.authenticated(h.handleGetEntry))
	h.router.GET("/pak", h.authenticated(h.handleGetPak))
}

// Addr returns the address the server listens on
func (h *HTTP) Addr() net.Addr {
	return h.httpSocket.Addr()
}

// Serve serves until the context is cancelled. Running downloads get a short while to complete.
func (h *HTTP) Serve() {
	go func() {
		<-h.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if h.httpServer.Shutdown(ctx) != nil {
			_ = h.httpServer.Close()
		}
	}()

	err := h.httpServer.Serve(h.httpSocket)
	if !errors.Is(err, http.ErrServerClosed) && h.ctx.Err() == nil {
		h.logger.Error("sspak.http.Serve: HTTP server error", "error", err)
	} else {
		h.logger.Info("sspak.http.Serve: HTTP server closed")
	}
}

// authenticated is an HTTP handler wrapper that ensures a valid authentication is used for the request
func (h *HTTP) authenticated(handle handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		if !h.validToken(req.Header.Get(HeaderAuthenticationToken)) {
			h.logger.Info("sspak.http.authenticated: Invalid authentication",
				"URL", req.URL.String(),
				"method", req.Method,
			)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		logger := h.logger.With(slog.Group("req",
			"URL", req.URL.String(),
			"method", req.Method),
		)
		logger.Info("sspak.http.authenticated: Handling")

		handle(w, req, ps, logger)
	}
}

func (h *HTTP) validToken(token string) bool {
	if token == "" {
		return false
	}
	valid := false
	for _, tkn := range h.config.AuthenticationTokens {
		if subtle.ConstantTimeCompare([]byte(tkn), []byte(token)) == 1 {
			valid = true
		}
	}
	return valid
}

func (h *HTTP) getSpeed(req *http.Request) int64 {
	speed := h.config.SpeedBytesPerSecond
	if !h.config.AllowSpeedOverride {
		return speed
	}
	speedStr := req.URL.Query().Get(GETParamBytesPerSecond)
	if speedStr == "" {
		return speed
	}
	customSpeed, err := strconv.ParseInt(speedStr, 10, 64)
	if err == nil {
		return customSpeed
	}
	return speed
}

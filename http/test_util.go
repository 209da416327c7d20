package http

import (
	"context"
	"log/slog"
	"net/http/httptest"

	"github.com/vansante/go-sspak/archive"
)

// TestHTTPArchive serves the pak on a test server for the duration of fn
func TestHTTPArchive(pak *archive.Archive, testAuthToken string, logger *slog.Logger, fn func(server *httptest.Server)) {
	h := newHTTP(context.Background(), Config{
		AuthenticationTokens: []string{testAuthToken},
		AllowSpeedOverride:   true,
	}, pak, logger)

	server := httptest.NewServer(h.router)
	defer server.Close()
	fn(server)
}

package sspak

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogfmtHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogfmtHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	require.Empty(t, buf.String())

	logger.With("target", "web1:/var/www").
		WithGroup("db").
		Info("sspak.test: Saved database", "kind", "MySQLDatabase", "error", errors.New("some failure"))

	line := buf.String()
	require.Contains(t, line, `level=info`)
	require.Contains(t, line, `msg="sspak.test: Saved database"`)
	require.Contains(t, line, `target=web1:/var/www`)
	require.Contains(t, line, `db.kind=MySQLDatabase`)
	require.Contains(t, line, `db.error="some failure"`)
	require.Equal(t, byte('\n'), line[len(line)-1])
}

func TestLogfmtHandler_UnsupportedValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogfmtHandler(&buf, slog.LevelDebug))

	logger.Debug("structs", "parts", struct{ DB bool }{true}, slog.Group("req", "method", "GET"))
	require.Contains(t, buf.String(), `parts={DB:true}`)
	require.Contains(t, buf.String(), `req.method=GET`)
}

package http

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

func clientTest(t *testing.T, fn func(client *Client, pak string)) {
	t.Helper()
	httpHandlerTest(t, func(server *httptest.Server, pak string) {
		fn(NewClient(server.URL, testAuthToken, sspak.NewTestLogger(t)), pak)
	})
}

func TestClient_Entries(t *testing.T) {
	clientTest(t, func(client *Client, _ string) {
		entries, err := client.Entries(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 2)

		client.SetHeader(HeaderAuthenticationToken, "wrong")
		_, err = client.Entries(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestClient_FetchEntry(t *testing.T) {
	clientTest(t, func(client *Client, _ string) {
		var buf bytes.Buffer
		res, err := client.FetchEntry(context.Background(), archive.EntryDatabase, &buf, FetchOptions{})
		require.NoError(t, err)
		require.EqualValues(t, len(testDump), res.BytesReceived)
		require.Equal(t, testDump, buf.Bytes())

		_, err = client.FetchEntry(context.Background(), archive.EntryAssets, &buf, FetchOptions{})
		require.ErrorIs(t, err, archive.ErrEntryNotFound)
		_, err = client.FetchEntry(context.Background(), "../etc/passwd", &buf, FetchOptions{})
		require.ErrorIs(t, err, archive.ErrUnknownEntry)
	})
}

func TestClient_Fetch(t *testing.T) {
	clientTest(t, func(client *Client, pak string) {
		dest := filepath.Join(t.TempDir(), "fetched.sspak")

		var progress []int64
		res, err := client.Fetch(context.Background(), dest, FetchOptions{
			ProgressEvery: time.Nanosecond,
			ProgressFn: func(bytes int64) {
				progress = append(progress, bytes)
			},
		})
		require.NoError(t, err)
		require.NotEmpty(t, progress)

		original, err := os.ReadFile(pak)
		require.NoError(t, err)
		require.EqualValues(t, len(original), res.BytesReceived)

		content, err := archive.Open(dest).Content(archive.EntryDatabase)
		require.NoError(t, err)
		require.Equal(t, testDump, content)

		_, err = client.Fetch(context.Background(), dest, FetchOptions{})
		require.ErrorIs(t, err, sspak.ErrPreconditionFailed)

		client.SetHeader(HeaderAuthenticationToken, "wrong")
		failed := filepath.Join(t.TempDir(), "failed.sspak")
		_, err = client.Fetch(context.Background(), failed, FetchOptions{})
		require.ErrorIs(t, err, ErrUnauthorized)
		require.NoFileExists(t, failed)
	})
}

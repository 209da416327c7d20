package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

const testAuthToken = "blaatblaat"

var testDump = bytes.Repeat([]byte("INSERT INTO t VALUES (1);\n"), 1000)

func testPak(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.sspak")
	w, err := archive.Create(path, archive.WriterOptions{}, sspak.NewTestLogger(t))
	require.NoError(t, err)
	_, err = w.WriteEntry(archive.EntryDatabase, testDump)
	require.NoError(t, err)
	_, err = w.WriteEntry(archive.EntryGitRemote, sspak.GitRemote{Remote: "git@x:y.git", Branch: "main", SHA: "abc"}.Format())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func httpHandlerTest(t *testing.T, fn func(server *httptest.Server, pak string)) {
	t.Helper()
	pak := testPak(t)
	TestHTTPArchive(archive.Open(pak), testAuthToken, sspak.NewTestLogger(t), func(server *httptest.Server) {
		fn(server, pak)
	})
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(HeaderAuthenticationToken, token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHTTP_authenticated(t *testing.T) {
	httpHandlerTest(t, func(server *httptest.Server, _ string) {
		for _, token := range []string{"", "wrong"} {
			resp := get(t, server.URL+"/entries", token)
			_ = resp.Body.Close()
			require.EqualValues(t, http.StatusUnauthorized, resp.StatusCode)
		}
	})
}

func TestHTTP_handleListEntries(t *testing.T) {
	httpHandlerTest(t, func(server *httptest.Server, _ string) {
		resp := get(t, server.URL+"/entries", testAuthToken)
		defer resp.Body.Close()
		require.EqualValues(t, http.StatusOK, resp.StatusCode)

		var list []archive.EntryInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		require.Len(t, list, 2)
		require.Equal(t, archive.EntryDatabase, list[0].Name)
		require.EqualValues(t, len(testDump), list[0].Size)
		require.Equal(t, archive.EntryGitRemote, list[1].Name)
	})
}

func TestHTTP_handleGetEntry(t *testing.T) {
	httpHandlerTest(t, func(server *httptest.Server, _ string) {
		resp := get(t, fmt.Sprintf("%s/entries/%s?%s=%d", server.URL, archive.EntryDatabase, GETParamBytesPerSecond, 1024*1024), testAuthToken)
		defer resp.Body.Close()
		require.EqualValues(t, http.StatusOK, resp.StatusCode)
		require.Len(t, resp.Header.Get(HeaderChecksum), 16)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, testDump, data)

		tests := []struct {
			entry  string
			status int
		}{
			{archive.EntryAssets, http.StatusNotFound},
			{"secrets.txt", http.StatusBadRequest},
		}
		for _, test := range tests {
			resp := get(t, server.URL+"/entries/"+test.entry, testAuthToken)
			_ = resp.Body.Close()
			require.EqualValues(t, test.status, resp.StatusCode, test.entry)
		}
	})
}

func TestHTTP_handleGetPak(t *testing.T) {
	httpHandlerTest(t, func(server *httptest.Server, pak string) {
		resp := get(t, server.URL+"/pak", testAuthToken)
		defer resp.Body.Close()
		require.EqualValues(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		original, err := os.ReadFile(pak)
		require.NoError(t, err)
		require.Equal(t, original, data)
	})
}

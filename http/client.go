package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

var ErrUnauthorized = errors.New("invalid authentication token")

// Client is the struct used to fetch paks from a pak server
type Client struct {
	server  string
	headers map[string]string
	logger  *slog.Logger
	client  *http.Client
}

// NewClient creates a new client for a pak server, authenticating with the token
func NewClient(server, token string, logger *slog.Logger) *Client {
	c := &Client{
		server:  server,
		headers: make(map[string]string, 8),
		logger:  logger,
		client:  http.DefaultClient,
	}
	c.SetHeader(HeaderAuthenticationToken, token)
	return c
}

// SetClient configures a custom http client for doing requests
func (c *Client) SetClient(client *http.Client) {
	c.client = client
}

// SetHeader configures a header to be sent with all requests
func (c *Client) SetHeader(name, value string) {
	c.headers[name] = value
}

// Server returns the server
func (c *Client) Server() string {
	return c.server
}

func (c *Client) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/%s", c.server, url), body)
	if err != nil {
		return nil, err
	}
	for hdr := range c.headers {
		req.Header.Set(hdr, c.headers[hdr])
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := c.request(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s: %w", url, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		_ = resp.Body.Close()
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, archive.ErrEntryNotFound
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d requesting %s", resp.StatusCode, url)
	}
}

// Entries lists the entries of the served pak
func (c *Client) Entries(ctx context.Context) ([]archive.EntryInfo, error) {
	resp, err := c.get(ctx, "entries")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []archive.EntryInfo
	err = json.NewDecoder(resp.Body).Decode(&entries)
	return entries, err
}

// FetchOptions are options for fetching content from a pak server
type FetchOptions struct {
	// ProgressFn: Set a callback function to receive updates about progress
	ProgressFn sspak.ProgressCallback
	// ProgressEvery determines progress update interval
	ProgressEvery time.Duration
}

// FetchResult contains some statistics from fetching content
type FetchResult struct {
	BytesReceived int64
	TimeTaken     time.Duration
}

func (c *Client) fetch(ctx context.Context, url string, w io.Writer, options FetchOptions) (FetchResult, error) {
	startTime := time.Now()
	resp, err := c.get(ctx, url)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	counter := sspak.NewCountWriter(w)
	counter.SetProgressCallback(options.ProgressEvery, options.ProgressFn)
	_, err = io.Copy(counter, resp.Body)
	result := FetchResult{
		BytesReceived: counter.Count(),
		TimeTaken:     time.Since(startTime),
	}
	if err != nil {
		return result, fmt.Errorf("error receiving %s: %w", url, err)
	}
	if resp.ContentLength >= 0 && result.BytesReceived != resp.ContentLength {
		return result, fmt.Errorf("received %d of %d bytes of %s", result.BytesReceived, resp.ContentLength, url)
	}
	return result, nil
}

// FetchEntry streams one entry of the served pak into w
func (c *Client) FetchEntry(ctx context.Context, name string, w io.Writer, options FetchOptions) (FetchResult, error) {
	if !archive.ValidEntry(name) {
		return FetchResult{}, fmt.Errorf("%w: %q", archive.ErrUnknownEntry, name)
	}
	return c.fetch(ctx, "entries/"+name, w, options)
}

// Fetch downloads the served pak into a new local file at dest. A partial download is removed again.
func (c *Client) Fetch(ctx context.Context, dest string, options FetchOptions) (FetchResult, error) {
	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return FetchResult{}, sspak.Preconditionf("file %s already exists", dest)
	}
	if err != nil {
		return FetchResult{}, err
	}

	result, err := c.fetch(ctx, "pak", file, options)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		// A truncated or garbled pak fails to list
		_, err = archive.Open(dest).Entries()
	}
	if err != nil {
		_ = os.Remove(dest)
		return result, err
	}

	c.logger.Info("sspak.http.Client.Fetch: Fetched archive",
		"server", c.server,
		"file", dest,
		"bytes", result.BytesReceived,
		"timeTaken", result.TimeTaken,
	)
	return result, nil
}

// Package feed downloads and decodes the GTFS-Realtime vehicle positions
// feed into normalized vehicle observations.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"
	"transitpulse.dev/internal/logging"
)

// feedHTTPClient is a dedicated HTTP client for feed fetching, configured
// with explicit timeouts and transport limits to avoid the pitfalls of
// http.DefaultClient (no timeout, shared global state). The transport is
// cloned from http.DefaultTransport to preserve important defaults
// (ProxyFromEnvironment, DialContext, HTTP/2, keepalives).
var feedHTTPClient = newFeedHTTPClient()

func newFeedHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second
	// Gzip is negotiated explicitly below so the response can be decoded
	// with a single, known decompressor.
	transport.DisableCompression = true

	return &http.Client{
		// Absolute safety net per request; the poller also sets a per-cycle
		// context timeout, and the stricter of the two wins.
		Timeout:   25 * time.Second,
		Transport: transport,
	}
}

// defaultHeaders mimic a desktop browser. The upstream portal rejects
// requests with an unfamiliar User-Agent.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept-Encoding": "gzip",
}

const maxBodySize = 25 * 1024 * 1024

// Fetcher downloads raw feed payloads from a fixed endpoint.
type Fetcher struct {
	feedURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher for the given endpoint. The API key, when
// non-empty, is passed as the "key" query parameter. requestsPerMinute
// bounds how often the upstream is contacted regardless of how the caller
// schedules fetches.
func NewFetcher(feedURL, apiKey string, requestsPerMinute int) *Fetcher {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Fetcher{
		feedURL: feedURL,
		apiKey:  apiKey,
		client:  feedHTTPClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FetchPositions downloads one feed payload. Non-2xx statuses and transport
// failures are reported as *FetchError; the caller decides whether the
// classification is fatal.
func (f *Fetcher) FetchPositions(ctx context.Context) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestURL, err := f.buildURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range defaultHeaders {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: err}
	}

	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "feed_fetcher")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: f.feedURL, StatusCode: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer logging.SafeCloseWithLogging(gz,
			slog.Default().With(slog.String("component", "feed_fetcher")),
			"gzip_reader")
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > maxBodySize {
		return nil, fmt.Errorf("feed response exceeds size limit of %d bytes", maxBodySize)
	}

	return body, nil
}

func (f *Fetcher) buildURL() (string, error) {
	if f.apiKey == "" {
		return f.feedURL, nil
	}
	u, err := url.Parse(f.feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL: %w", err)
	}
	values := u.Query()
	values.Set("key", f.apiKey)
	u.RawQuery = values.Encode()
	return u.String(), nil
}

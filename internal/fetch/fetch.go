// Package fetch provides the HTTP client for the MediaWiki API shared by
// the CLI, TUI, and MCP frontends.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/WaffleSoul4/wikipedia-graph/internal/cache"
	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/ratelimit"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// DefaultUserAgent identifies this client to the API, which asks callers
// to send a descriptive agent string.
const DefaultUserAgent = "wikipedia-graph/0.1 (+https://github.com/WaffleSoul4/wikipedia-graph)"

// maxResponseBytes bounds a single API response body.
const maxResponseBytes = 8 << 20

// Options configures client behavior.
type Options struct {
	Cache          *cache.Cache
	Limiter        *ratelimit.Limiter
	UserAgent      string
	RequestTimeout time.Duration
	LinkLimit      int  // pllimit per query (default 500)
	HTTP3          bool // use an HTTP/3 transport instead of the default
}

func (o *Options) applyDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.LinkLimit == 0 {
		o.LinkLimit = 500
	}
}

// Client performs MediaWiki API requests with caching, rate limiting, and
// retry on transient failures.
type Client struct {
	opts  Options
	httpc *http.Client
	h3    *http3.Transport
}

// NewClient creates a new client with the given options.
func NewClient(opts Options) *Client {
	opts.applyDefaults()
	c := &Client{opts: opts}

	httpc := &http.Client{Timeout: opts.RequestTimeout}
	if opts.HTTP3 {
		c.h3 = &http3.Transport{}
		httpc.Transport = c.h3
	}
	c.httpc = httpc
	return c
}

// Close releases transport resources.
func (c *Client) Close() {
	if c.h3 != nil {
		_ = c.h3.Close()
	}
	c.httpc.CloseIdleConnections()
}

// Fetch retrieves the raw query response for a page identity. The second
// return value reports whether the response was served from cache.
func (c *Client) Fetch(ctx context.Context, id wiki.PageID) ([]byte, bool, error) {
	if c.opts.Cache != nil {
		if entry, err := c.opts.Cache.Get(id); err == nil && entry != nil {
			return entry.Body, true, nil
		}
	}

	body, err := c.get(ctx, id, wiki.QueryURL(id, c.opts.LinkLimit))
	if err != nil {
		return nil, false, err
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Put(id, body); err != nil {
			// Cache failures degrade to uncached operation.
			return body, false, nil
		}
	}
	return body, false, nil
}

// Load fetches and parses a page in one step.
func (c *Client) Load(ctx context.Context, id wiki.PageID) (extract.Page, error) {
	raw, _, err := c.Fetch(ctx, id)
	if err != nil {
		return extract.Page{}, err
	}
	page, err := extract.Extract(id.Lang, raw)
	if err != nil {
		return extract.Page{}, &Error{Kind: KindParse, ID: id, Err: err}
	}
	if page.Missing {
		return extract.Page{}, &Error{Kind: KindNotFound, ID: id}
	}
	return page, nil
}

// Random returns the identity of a random article in the given language.
func (c *Client) Random(ctx context.Context, lang string) (wiki.PageID, error) {
	id := wiki.PageID{Lang: lang}
	body, err := c.get(ctx, id, wiki.RandomURL(lang))
	if err != nil {
		return wiki.PageID{}, err
	}
	random, err := extract.RandomTitle(lang, body)
	if err != nil {
		return wiki.PageID{}, &Error{Kind: KindParse, ID: id, Err: err}
	}
	return random, nil
}

// get performs one GET with rate limiting and retries transient failures
// up to 3 times with exponential backoff + jitter.
func (c *Client) get(ctx context.Context, id wiki.PageID, url string) ([]byte, error) {
	const maxRetries = 3
	const baseBackoff = 100 * time.Millisecond

	host := fmt.Sprintf("%s.wikipedia.org", id.Lang)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return nil, &Error{Kind: KindNetwork, ID: id, Err: ctx.Err()}
			}
		}

		if c.opts.Limiter != nil {
			if err := c.opts.Limiter.Wait(ctx, host); err != nil {
				return nil, &Error{Kind: KindNetwork, ID: id, Err: err}
			}
		}

		body, err := c.getOnce(ctx, id, url)
		if err == nil {
			return body, nil
		}
		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, id wiki.PageID, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, ID: id, Err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, ID: id, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, ID: id}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &Error{Kind: KindNetwork, ID: id, Err: &statusError{code: resp.StatusCode}}
	default:
		return nil, &Error{Kind: KindNetwork, ID: id, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, ID: id, Err: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}

// statusError marks retryable HTTP statuses (429 and 5xx).
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func (e *statusError) Temporary() bool { return true }

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isTimeoutError(err) || isTemporaryError(err) {
		return true
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "EOF"):
		return true
	case strings.Contains(errStr, "connection refused"):
		return true
	case strings.Contains(errStr, "connection reset"):
		return true
	case strings.Contains(errStr, "no recent network activity"):
		return true
	}
	return false
}

func isTimeoutError(err error) bool {
	type timeoutError interface {
		Timeout() bool
	}
	for err != nil {
		if te, ok := err.(timeoutError); ok && te.Timeout() {
			return true
		}
		err = unwrap(err)
	}
	return false
}

func isTemporaryError(err error) bool {
	type temporaryError interface {
		Temporary() bool
	}
	for err != nil {
		if te, ok := err.(temporaryError); ok && te.Temporary() {
			return true
		}
		err = unwrap(err)
	}
	return false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

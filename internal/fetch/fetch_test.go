package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/WaffleSoul4/wikipedia-graph/internal/cache"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

const waffleJSON = `{"query":{"pages":{"42":{"pageid":42,"ns":0,"title":"Waffle",` +
	`"extract":"A waffle is a dish.","links":[{"ns":0,"title":"Belgium"}]}}}}`

// testClient returns a client whose requests go to the test server
// regardless of the API URL the identity would produce.
func testClient(ts *httptest.Server, opts Options) *Client {
	c := NewClient(opts)
	c.httpc = ts.Client()
	c.httpc.Transport = &rewriteTransport{base: ts.Client().Transport, target: ts.URL}
	return c
}

type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := t.target + "/?" + req.URL.RawQuery
	out, err := http.NewRequestWithContext(req.Context(), req.Method, rewritten, nil)
	if err != nil {
		return nil, err
	}
	out.Header = req.Header
	return t.base.RoundTrip(out)
}

func TestLoad(t *testing.T) {
	var gotUA atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(waffleJSON))
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	page, err := c.Load(context.Background(), wiki.Normalize("en", "Waffle"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if page.Title != "Waffle" {
		t.Errorf("Title = %q, want %q", page.Title, "Waffle")
	}
	if len(page.Links) != 1 {
		t.Errorf("Links = %v, want one link", page.Links)
	}
	if ua := gotUA.Load(); ua != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
	}
}

func TestLoadMissingPageIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"pages":{"-1":{"title":"Nope","missing":""}}}}`))
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	_, err := c.Load(context.Background(), wiki.Normalize("en", "Nope"))
	if !IsNotFound(err) {
		t.Errorf("Load() error = %v, want not-found", err)
	}
}

func TestLoadMalformedResponseIsParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>surprise</html>`))
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	_, err := c.Load(context.Background(), wiki.Normalize("en", "Waffle"))
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
	if KindOf(err) != KindParse {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindParse)
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(waffleJSON))
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	_, fromCache, err := c.Fetch(context.Background(), wiki.Normalize("en", "Waffle"))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if fromCache {
		t.Error("fromCache = true, want false")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (two retries)", got)
	}
}

func TestFetchRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	_, _, err := c.Fetch(context.Background(), wiki.Normalize("en", "Waffle"))
	if err == nil {
		t.Fatal("Fetch() error = nil, want network error")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindNetwork)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (attempt limit)", got)
	}
}

func TestFetch404NotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	_, _, err := c.Fetch(context.Background(), wiki.Normalize("en", "Waffle"))
	if !IsNotFound(err) {
		t.Fatalf("Fetch() error = %v, want not-found", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (terminal, no retry)", got)
	}
}

func TestFetchUsesCache(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(waffleJSON))
	}))
	defer ts.Close()

	c := testClient(ts, Options{Cache: cache.New(t.TempDir())})
	defer c.Close()

	id := wiki.Normalize("en", "Waffle")
	if _, fromCache, err := c.Fetch(context.Background(), id); err != nil || fromCache {
		t.Fatalf("first Fetch() = fromCache %v, err %v", fromCache, err)
	}
	_, fromCache, err := c.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("second Fetch() error: %v", err)
	}
	if !fromCache {
		t.Error("second Fetch() fromCache = false, want true")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestRandom(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"random":[{"id":1,"ns":0,"title":"Multekrem"}]}}`))
	}))
	defer ts.Close()

	c := testClient(ts, Options{})
	defer c.Close()

	id, err := c.Random(context.Background(), "en")
	if err != nil {
		t.Fatalf("Random() error: %v", err)
	}
	if id != wiki.Normalize("en", "Multekrem") {
		t.Errorf("Random() = %v, want en:Multekrem", id)
	}
}

package serve

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WaffleSoul4/wikipedia-graph/internal/build"
	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// stubLoader serves canned pages and treats everything else as missing.
type stubLoader struct {
	pages map[wiki.PageID]extract.Page
}

func (l *stubLoader) Load(_ context.Context, id wiki.PageID) (extract.Page, error) {
	p, ok := l.pages[id]
	if !ok {
		return extract.Page{}, &fetch.Error{Kind: fetch.KindNotFound, ID: id}
	}
	return p, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *build.Builder) {
	t.Helper()
	loader := &stubLoader{pages: map[wiki.PageID]extract.Page{
		wiki.Normalize("en", "Waffle"): {
			ID:      wiki.Normalize("en", "Waffle"),
			Title:   "Waffle",
			Summary: "A dish.",
			Links:   []wiki.PageID{wiki.Normalize("en", "Belgium")},
		},
	}}

	g := graph.New()
	d := build.NewDispatcher(loader, 2)
	b := build.NewBuilder(g, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d.Start(ctx)
	go b.Run(ctx)

	h := NewHandler(b, "en", 50, nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, b
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestExpandEndpoint(t *testing.T) {
	srv, b := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/expand", `{"title":"Waffle"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "loaded" {
		t.Errorf("state = %q, want loaded", body["state"])
	}
	if s := b.Graph().NodeState(wiki.Normalize("en", "Waffle")); s != graph.Loaded {
		t.Errorf("graph state = %v, want Loaded", s)
	}
}

func TestExpandEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/expand", `{"title":"No such page"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "failed" {
		t.Errorf("state = %q, want failed", body["state"])
	}
}

func TestExpandEndpointBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/expand", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGraphEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/expand", `{"title":"Waffle"}`)

	resp, err := http.Get(srv.URL + "/api/graph")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Version uint64 `json:"version"`
		Nodes   []struct {
			Title string   `json:"title"`
			State string   `json:"state"`
			Edges []string `json:"edges"`
		} `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Version == 0 {
		t.Error("version = 0, want advanced")
	}
	if len(body.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(body.Nodes))
	}
	if body.Nodes[0].Title != "Waffle" || body.Nodes[0].State != "loaded" {
		t.Errorf("first node = %+v", body.Nodes[0])
	}
	if len(body.Nodes[0].Edges) != 1 || body.Nodes[0].Edges[0] != "en:Belgium" {
		t.Errorf("edges = %v", body.Nodes[0].Edges)
	}
}

func TestRetryEndpointRequiresFailedState(t *testing.T) {
	srv, _ := newTestServer(t)

	// Unknown node is Unrequested, not Failed.
	resp := postJSON(t, srv.URL+"/api/retry", `{"title":"Waffle"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}

	// After a failed expand the retry is accepted.
	postJSON(t, srv.URL+"/api/expand", `{"title":"No such page"}`)
	resp = postJSON(t, srv.URL+"/api/retry", `{"title":"No such page"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestComponentEndpointReturnsOperation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/component", `{"title":"Waffle"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["op"] == "" {
		t.Error("missing op id")
	}
	if body["seed"] != "en:Waffle" {
		t.Errorf("seed = %q", body["seed"])
	}
}

func TestCancelEndpointValidatesOpID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/cancel", `{"op":"not-a-uuid"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/expand", `{"title":"Waffle"}`)

	resp, err := http.Get(srv.URL + "/api/graph/export?format=dot")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "digraph wikigraph {") {
		t.Errorf("body is not DOT:\n%s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

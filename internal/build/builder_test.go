package build

import (
	"context"
	"testing"
	"time"

	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// newTestBuilder wires a builder over a mock loader and runs its loop
// until the test ends.
func newTestBuilder(t *testing.T, loader Loader, workers int) *Builder {
	t.Helper()
	g := graph.New()
	d := NewDispatcher(loader, workers)
	b := NewBuilder(g, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d.Start(ctx)
	go b.Run(ctx)
	return b
}

func page(title string, links ...string) extract.Page {
	p := extract.Page{ID: pid(title), Title: title, Summary: title + " summary."}
	for _, l := range links {
		p.Links = append(p.Links, pid(l))
	}
	return p
}

func waitResult(t *testing.T, op *Operation) Result {
	t.Helper()
	select {
	case r := <-op.Done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for operation result")
		return Result{}
	}
}

func TestExpandLoadsPageAndLinks(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("Waffle")] = page("Waffle", "Belgium", "Syrup")

	b := newTestBuilder(t, loader, 2)
	if err := b.Expand(context.Background(), pid("Waffle")); err != nil {
		t.Fatalf("Expand() = %v", err)
	}

	g := b.Graph()
	if s := g.NodeState(pid("Waffle")); s != graph.Loaded {
		t.Errorf("state = %v, want Loaded", s)
	}
	if g.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
	if s := g.NodeState(pid("Belgium")); s != graph.Unrequested {
		t.Errorf("stub state = %v, want Unrequested", s)
	}
}

func TestExpandOnLoadedNodeIsFree(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("Waffle")] = page("Waffle", "Belgium")

	b := newTestBuilder(t, loader, 2)
	if err := b.Expand(context.Background(), pid("Waffle")); err != nil {
		t.Fatalf("first Expand() = %v", err)
	}
	if err := b.Expand(context.Background(), pid("Waffle")); err != nil {
		t.Fatalf("second Expand() = %v", err)
	}
	if got := loader.callCount(pid("Waffle")); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
}

func TestConcurrentExpandsCoalesce(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("Waffle")] = page("Waffle")
	loader.block = make(chan struct{})
	loader.started = make(chan wiki.PageID, 1)

	b := newTestBuilder(t, loader, 2)

	errs := make(chan error, 2)
	go func() { errs <- b.Expand(context.Background(), pid("Waffle")) }()
	<-loader.started
	go func() { errs <- b.Expand(context.Background(), pid("Waffle")) }()
	time.Sleep(50 * time.Millisecond) // let the second call attach
	close(loader.block)

	for range 2 {
		if err := <-errs; err != nil {
			t.Errorf("Expand() = %v", err)
		}
	}
	if got := loader.callCount(pid("Waffle")); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
}

func TestExpandPropagatesFailure(t *testing.T) {
	loader := newMockLoader()
	loader.errs[pid("Nope")] = &fetch.Error{Kind: fetch.KindNotFound, ID: pid("Nope")}

	b := newTestBuilder(t, loader, 2)
	err := b.Expand(context.Background(), pid("Nope"))
	if !fetch.IsNotFound(err) {
		t.Fatalf("Expand() = %v, want not-found", err)
	}

	n, _ := b.Graph().Node(pid("Nope"))
	if n.State != graph.Failed {
		t.Errorf("state = %v, want Failed", n.State)
	}
	if n.Err != "not-found" {
		t.Errorf("Err = %q, want %q", n.Err, "not-found")
	}
}

func TestRetryAfterFailure(t *testing.T) {
	loader := newMockLoader()
	loader.errs[pid("Flaky")] = &fetch.Error{Kind: fetch.KindNetwork, ID: pid("Flaky")}

	b := newTestBuilder(t, loader, 2)
	if err := b.Expand(context.Background(), pid("Flaky")); err == nil {
		t.Fatal("want first attempt to fail")
	}

	loader.mu.Lock()
	delete(loader.errs, pid("Flaky"))
	loader.pages[pid("Flaky")] = page("Flaky", "Stable")
	loader.mu.Unlock()

	if err := b.Expand(context.Background(), pid("Flaky")); err != nil {
		t.Fatalf("retry Expand() = %v", err)
	}
	n, _ := b.Graph().Node(pid("Flaky"))
	if n.State != graph.Loaded || len(n.Links) != 1 {
		t.Errorf("after retry: %+v", n)
	}
	if n.Err != "" {
		t.Errorf("Err = %q, want cleared", n.Err)
	}
}

func TestExpandComponentMixedOutcomes(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("A")] = page("A", "B", "C")
	loader.pages[pid("B")] = page("B", "A", "C")
	loader.errs[pid("C")] = &fetch.Error{Kind: fetch.KindNotFound, ID: pid("C")}

	b := newTestBuilder(t, loader, 2)
	if err := b.Expand(context.Background(), pid("A")); err != nil {
		t.Fatalf("Expand(A) = %v", err)
	}

	r := waitResult(t, b.ExpandComponent(pid("A"), 0))
	if r.Touched != 2 {
		t.Errorf("Touched = %d, want 2 (B and C; A already loaded)", r.Touched)
	}
	if r.Failures != 1 {
		t.Errorf("Failures = %d, want 1", r.Failures)
	}
	if r.Cancelled {
		t.Error("Cancelled = true, want false")
	}

	g := b.Graph()
	wantStates := map[string]graph.State{
		"A": graph.Loaded,
		"B": graph.Loaded,
		"C": graph.Failed,
	}
	for title, want := range wantStates {
		if s := g.NodeState(pid(title)); s != want {
			t.Errorf("state(%s) = %v, want %v", title, s, want)
		}
	}
	if g.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4", g.EdgeCount())
	}
}

func TestExpandComponentHonorsNodeCap(t *testing.T) {
	loader := newMockLoader()
	hub := page("Hub")
	for i := range 100 {
		hub.Links = append(hub.Links, pid("Child"+string(rune('A'+i%26))+string(rune('0'+i/26))))
	}
	loader.pages[pid("Hub")] = hub

	b := newTestBuilder(t, loader, 4)
	r := waitResult(t, b.ExpandComponent(pid("Hub"), 10))

	if r.Touched != 10 {
		t.Errorf("Touched = %d, want 10", r.Touched)
	}

	g := b.Graph()
	loaded, unrequested := 0, 0
	for _, n := range g.Snapshot().Nodes {
		switch n.State {
		case graph.Loaded:
			loaded++
		case graph.Unrequested:
			unrequested++
		default:
			t.Errorf("unexpected state %v for %v", n.State, n.ID)
		}
	}
	if loaded != 10 {
		t.Errorf("loaded nodes = %d, want 10 (hub plus nine children)", loaded)
	}
	if unrequested != 91 {
		t.Errorf("unrequested nodes = %d, want 91", unrequested)
	}
}

func TestExpandComponentFoldsInFlightFetch(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("Solo")] = page("Solo")
	loader.block = make(chan struct{})
	loader.started = make(chan wiki.PageID, 1)

	b := newTestBuilder(t, loader, 2)

	errs := make(chan error, 1)
	go func() { errs <- b.Expand(context.Background(), pid("Solo")) }()
	<-loader.started // Solo is now Pending

	op := b.ExpandComponent(pid("Solo"), 0)
	time.Sleep(50 * time.Millisecond)
	close(loader.block)

	r := waitResult(t, op)
	if err := <-errs; err != nil {
		t.Fatalf("Expand() = %v", err)
	}
	if r.Touched != 1 {
		t.Errorf("Touched = %d, want 1", r.Touched)
	}
	if got := loader.callCount(pid("Solo")); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
}

func TestCancelStopsFurtherDispatch(t *testing.T) {
	loader := newMockLoader()
	loader.pages[pid("Seed")] = page("Seed", "Next1", "Next2", "Next3")
	loader.block = make(chan struct{})
	loader.started = make(chan wiki.PageID, 8)

	b := newTestBuilder(t, loader, 2)
	op := b.ExpandComponent(pid("Seed"), 0)
	<-loader.started // seed fetch is in flight

	b.Cancel(op.ID)
	time.Sleep(50 * time.Millisecond) // let the cancel land before the fetch returns
	close(loader.block)

	r := waitResult(t, op)
	if !r.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if r.Touched != 1 {
		t.Errorf("Touched = %d, want 1 (seed only)", r.Touched)
	}

	// The in-flight seed still applied; its neighbors were never fetched.
	g := b.Graph()
	if s := g.NodeState(pid("Seed")); s != graph.Loaded {
		t.Errorf("seed state = %v, want Loaded", s)
	}
	if s := g.NodeState(pid("Next1")); s != graph.Unrequested {
		t.Errorf("neighbor state = %v, want Unrequested", s)
	}
	if got := loader.totalCalls(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
}

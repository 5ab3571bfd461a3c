package build

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// Result summarizes a finished bulk expansion.
type Result struct {
	Touched   int  // nodes this operation requested
	Failures  int  // requests that ended in a failure state
	Cancelled bool // stopped before the component was exhausted
}

// Operation is a handle to an in-progress bulk expansion.
type Operation struct {
	ID   uuid.UUID
	Done <-chan Result
}

type op struct {
	id        uuid.UUID
	seed      wiki.PageID
	limit     int
	touched   int
	failures  int
	cancelled bool
	pending   map[wiki.PageID]struct{} // completions this op is waiting on
	counted   map[wiki.PageID]struct{} // ids counted toward the limit
	result    chan Result
}

// Builder is the expansion coordinator and the graph's single writer.
// Every command and every fetch completion funnels through Run's loop,
// so no two graph mutations ever execute concurrently.
type Builder struct {
	g   *graph.Graph
	d   *Dispatcher
	log *slog.Logger

	cmds        chan func()
	completions chan Completion
	waiters     map[wiki.PageID][]chan error
	ops         map[uuid.UUID]*op
	done        chan struct{}
}

// NewBuilder wires a graph and dispatcher together. Run must be started
// before any expansion method is useful.
func NewBuilder(g *graph.Graph, d *Dispatcher, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		g:           g,
		d:           d,
		log:         logger,
		cmds:        make(chan func(), 64),
		completions: make(chan Completion, 256),
		waiters:     make(map[wiki.PageID][]chan error),
		ops:         make(map[uuid.UUID]*op),
		done:        make(chan struct{}),
	}
}

// Graph returns the builder's graph for read-only consumption.
func (b *Builder) Graph() *graph.Graph { return b.g }

// Run consumes commands and fetch completions until ctx is done. All
// graph mutation happens on this goroutine.
func (b *Builder) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-b.cmds:
			fn()
		case c := <-b.completions:
			b.apply(c)
		}
	}
}

// post hands a closure to the Run loop. Commands posted after shutdown
// are dropped.
func (b *Builder) post(fn func()) {
	select {
	case b.cmds <- fn:
	case <-b.done:
	}
}

// ExpandNode requests the page's own links. Unrequested and Failed nodes
// start a fetch; Pending and Loaded nodes are a no-op.
func (b *Builder) ExpandNode(id wiki.PageID) {
	b.post(func() { b.expand(id) })
}

// Retry re-requests a Failed node.
func (b *Builder) Retry(id wiki.PageID) {
	b.post(func() {
		if b.g.NodeState(id) == graph.Failed {
			expansionsTotal.WithLabelValues("retry").Inc()
			b.expand(id)
		}
	})
}

// expand issues a dispatcher request when the node's state calls for
// one. Runs on the loop goroutine. Reports whether a fetch was issued.
func (b *Builder) expand(id wiki.PageID) bool {
	switch b.g.NodeState(id) {
	case graph.Unrequested, graph.Failed:
		b.g.MarkPending(id)
		b.d.Request(id, b.completions)
		return true
	default:
		return false
	}
}

// Expand is ExpandNode plus waiting for that node's attempt to settle.
// Already-loaded nodes return immediately with no network activity.
func (b *Builder) Expand(ctx context.Context, id wiki.PageID) error {
	ch := make(chan error, 1)
	b.post(func() {
		switch b.g.NodeState(id) {
		case graph.Loaded:
			ch <- nil
		case graph.Pending:
			b.waiters[id] = append(b.waiters[id], ch)
		default:
			expansionsTotal.WithLabelValues("node").Inc()
			b.expand(id)
			b.waiters[id] = append(b.waiters[id], ch)
		}
	})
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return context.Canceled
	}
}

// ExpandComponent starts a breadth-first bulk expansion of the connected
// component reachable from seed over the currently known edges, growing
// as loads reveal new neighbors. At most limit nodes are requested
// (0 means unlimited); individual failures don't stop the operation and
// are reported in the Result. Cancellation halts further dispatch while
// letting in-flight fetches complete and apply.
func (b *Builder) ExpandComponent(seed wiki.PageID, limit int) *Operation {
	o := &op{
		id:      uuid.New(),
		seed:    seed,
		limit:   limit,
		pending: make(map[wiki.PageID]struct{}),
		counted: make(map[wiki.PageID]struct{}),
		result:  make(chan Result, 1),
	}
	expansionsTotal.WithLabelValues("component").Inc()
	b.post(func() {
		b.ops[o.id] = o
		b.advance(o)
		if len(o.pending) == 0 {
			b.finish(o)
		}
	})
	return &Operation{ID: o.id, Done: o.result}
}

// Cancel stops a bulk expansion. In-flight fetches still complete and
// their results are applied; no new fetches are dispatched.
func (b *Builder) Cancel(opID uuid.UUID) {
	b.post(func() {
		o, ok := b.ops[opID]
		if !ok {
			return
		}
		o.cancelled = true
		if len(o.pending) == 0 {
			b.finish(o)
		}
	})
}

// CancelAll stops every in-progress bulk expansion.
func (b *Builder) CancelAll() {
	b.post(func() {
		for _, o := range b.ops {
			o.cancelled = true
			if len(o.pending) == 0 {
				b.finish(o)
			}
		}
	})
}

// apply consolidates one fetch completion into the graph and advances
// whatever is waiting on it. Runs on the loop goroutine; a single page's
// failure is recorded, never propagated as a fault.
func (b *Builder) apply(c Completion) {
	if c.Err != nil {
		kind := fetch.KindOf(c.Err)
		b.g.MarkFailed(c.ID, kind.String())
		if kind == fetch.KindParse {
			b.log.Error("response parse failed", "page", c.ID.Key(), "err", c.Err)
		} else {
			b.log.Warn("fetch failed", "page", c.ID.Key(), "kind", kind.String())
		}
	} else {
		if c.Page.ID != c.ID {
			b.log.Debug("redirect resolved", "page", c.ID.Key(), "canonical", c.Page.ID.Key())
		}
		b.g.ApplyLoaded(c.ID, c.Page.Title, c.Page.Summary, c.Page.Links)
	}

	if ws, ok := b.waiters[c.ID]; ok {
		delete(b.waiters, c.ID)
		for _, ch := range ws {
			ch <- c.Err
		}
	}

	for _, o := range b.ops {
		if _, ok := o.pending[c.ID]; !ok {
			continue
		}
		delete(o.pending, c.ID)
		if c.Err != nil {
			o.failures++
		}
		b.advance(o)
		if len(o.pending) == 0 {
			b.finish(o)
		}
	}
}

// advance walks the component reachable from the seed over the known
// edge set and requests every reachable node that still needs a fetch,
// stopping at the node cap. Called between completion batches, so the
// cancellation flag is honored before any further dispatch.
func (b *Builder) advance(o *op) {
	if o.cancelled {
		return
	}

	visited := map[wiki.PageID]bool{o.seed: true}
	queue := []wiki.PageID{o.seed}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, seen := o.counted[id]; !seen {
			switch b.g.NodeState(id) {
			case graph.Unrequested, graph.Failed:
				if o.limit > 0 && o.touched >= o.limit {
					return
				}
				o.counted[id] = struct{}{}
				o.touched++
				o.pending[id] = struct{}{}
				b.g.MarkPending(id)
				b.d.Request(id, b.completions)
			case graph.Pending:
				// Already in flight for another caller; fold its
				// completion into this operation without recounting.
				o.counted[id] = struct{}{}
				o.pending[id] = struct{}{}
			}
		}

		for _, nb := range b.g.Neighbors(id) {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
}

func (b *Builder) finish(o *op) {
	delete(b.ops, o.id)
	o.result <- Result{Touched: o.touched, Failures: o.failures, Cancelled: o.cancelled}
	b.log.Info("component expansion finished",
		"seed", o.seed.Key(),
		"touched", o.touched,
		"failures", o.failures,
		"cancelled", o.cancelled,
	)
}

// Package build turns expansion requests into deduplicated page fetches
// and applies the results to the graph through a single consolidation
// loop.
package build

import (
	"context"
	"sync"
	"time"

	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// Loader fetches and parses one page. Implementations classify failures
// with the fetch error taxonomy.
type Loader interface {
	Load(ctx context.Context, id wiki.PageID) (extract.Page, error)
}

// Completion is the result of one finished fetch, delivered exactly once
// to every channel attached to the request.
type Completion struct {
	ID   wiki.PageID
	Page extract.Page
	Err  error
}

// Dispatcher issues at most one outstanding fetch per page identity.
// Concurrent requests for the same identity attach to the in-flight
// fetch instead of starting a second one. A fixed worker pool bounds
// simultaneous fetches; requests beyond the ceiling queue in FIFO order.
type Dispatcher struct {
	loader  Loader
	workers int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []wiki.PageID
	inflight map[wiki.PageID][]chan<- Completion
	closed   bool

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given concurrency ceiling.
// Call Start before Request.
func NewDispatcher(loader Loader, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 5
	}
	d := &Dispatcher{
		loader:   loader,
		workers:  workers,
		inflight: make(map[wiki.PageID][]chan<- Completion),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the worker pool. Workers pass ctx to the loader and
// drain when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for range d.workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		d.Stop()
	}()
}

// Stop wakes all workers and waits for in-progress fetches to deliver.
// Queued requests that never started are delivered as cancelled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	undispatched := d.queue
	d.queue = nil
	d.mu.Unlock()

	d.cond.Broadcast()
	for _, id := range undispatched {
		d.deliver(id, extract.Page{}, context.Canceled)
	}
	d.wg.Wait()
}

// Request registers interest in a page. If no fetch for id is in flight
// one is started (or queued); otherwise out joins the existing fetch's
// fan-out list. Each attached channel receives the completion exactly
// once. out must have capacity for the send or a consumer draining it.
func (d *Dispatcher) Request(id wiki.PageID, out chan<- Completion) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		out <- Completion{ID: id, Err: context.Canceled}
		return
	}
	if waiters, ok := d.inflight[id]; ok {
		for _, w := range waiters {
			if w == out {
				// Already attached; one delivery covers all interests.
				d.mu.Unlock()
				coalescedTotal.Inc()
				return
			}
		}
		d.inflight[id] = append(waiters, out)
		d.mu.Unlock()
		coalescedTotal.Inc()
		return
	}

	d.inflight[id] = []chan<- Completion{out}
	d.queue = append(d.queue, id)
	queueDepthGauge.Set(float64(len(d.queue)))
	d.mu.Unlock()
	d.cond.Signal()
}

// Outstanding returns the number of identities queued or in flight.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		id := d.queue[0]
		d.queue = d.queue[1:]
		queueDepthGauge.Set(float64(len(d.queue)))
		d.mu.Unlock()

		inFlightGauge.Inc()
		start := time.Now()
		page, err := d.loader.Load(ctx, id)
		fetchDuration.Observe(time.Since(start).Seconds())
		inFlightGauge.Dec()
		fetchesTotal.WithLabelValues(outcome(err)).Inc()

		d.deliver(id, page, err)
	}
}

// deliver fans the completion out to every attached channel, then clears
// the in-flight entry so a later request for the same identity starts
// fresh (e.g. a retry after failure).
func (d *Dispatcher) deliver(id wiki.PageID, page extract.Page, err error) {
	d.mu.Lock()
	waiters := d.inflight[id]
	delete(d.inflight, id)
	d.mu.Unlock()

	c := Completion{ID: id, Page: page, Err: err}
	for _, w := range waiters {
		w <- c
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errClass(err)
}

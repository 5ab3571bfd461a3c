// Package graph provides the in-memory page graph: one node per page
// identity ever requested, directed deduplicated link edges, and
// insertion-ordered snapshots for external renderers.
//
// The graph only grows; nodes are never deleted. Mutation methods are
// meant to be called from a single owning goroutine (the builder's
// consolidation loop); reads are safe from anywhere.
package graph

import (
	"sync"

	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// State is the lifecycle state of a page node.
type State int

const (
	// Unrequested is a stub created as a link target before any fetch.
	Unrequested State = iota
	// Pending has a fetch in flight.
	Pending
	// Loaded holds fetched content.
	Loaded
	// Failed had its last fetch attempt fail and holds no content.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unrequested"
	}
}

// Node is one page in the graph.
type Node struct {
	ID      wiki.PageID
	State   State
	Title   string        // display title, set on load
	Summary string        // plain-text intro, set on load
	Links   []wiki.PageID // outgoing links in first-occurrence order, nil until loaded
	Err     string        // last failure classification, empty when none
}

// HasContent reports whether the node holds content from a successful load.
func (n *Node) HasContent() bool {
	return n.Links != nil || n.Summary != "" || (n.State == Loaded && n.Title != "")
}

// Edge is a directed "from links to to" pair.
type Edge struct {
	From wiki.PageID
	To   wiki.PageID
}

// Snapshot is a consistent read-only copy of the graph.
type Snapshot struct {
	Version uint64
	Nodes   []Node // insertion order
	Edges   []Edge // insertion order
}

// Graph holds all nodes and edges.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[wiki.PageID]*Node
	order   []wiki.PageID
	edges   []Edge
	edgeSet map[Edge]struct{}
	version uint64
	updates chan struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[wiki.PageID]*Node),
		edgeSet: make(map[Edge]struct{}),
		updates: make(chan struct{}, 1),
	}
}

// EnsureNode creates an Unrequested stub for id if none exists.
func (g *Graph) EnsureNode(id wiki.PageID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLocked(id)
	g.notifyLocked()
}

func (g *Graph) ensureLocked(id wiki.PageID) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, State: Unrequested}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n
}

// MarkPending transitions a node to Pending, creating it if needed.
// Content from an earlier load is kept.
func (g *Graph) MarkPending(id wiki.PageID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.ensureLocked(id)
	n.State = Pending
	g.notifyLocked()
}

// ApplyLoaded records a successful load: sets the node's content, creates
// Unrequested stubs for newly-seen link targets, and adds the missing
// edges. It never overwrites an already-loaded target's content, and
// re-applying the same load leaves the graph unchanged.
func (g *Graph) ApplyLoaded(id wiki.PageID, title, summary string, links []wiki.PageID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.ensureLocked(id)
	n.State = Loaded
	n.Title = title
	n.Summary = summary
	n.Links = make([]wiki.PageID, len(links))
	copy(n.Links, links)
	n.Err = ""

	for _, target := range links {
		g.ensureLocked(target)
		g.addEdgeLocked(Edge{From: id, To: target})
	}
	g.notifyLocked()
}

// MarkFailed records a failed fetch attempt. A node that holds content
// from an earlier load keeps it and stays Loaded with the error flag set;
// only a contentless node degrades to Failed.
func (g *Graph) MarkFailed(id wiki.PageID, errClass string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.ensureLocked(id)
	if n.HasContent() {
		n.State = Loaded
	} else {
		n.State = Failed
	}
	n.Err = errClass
	g.notifyLocked()
}

func (g *Graph) addEdgeLocked(e Edge) {
	if _, exists := g.edgeSet[e]; exists {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
}

func (g *Graph) notifyLocked() {
	g.version++
	select {
	case g.updates <- struct{}{}:
	default:
	}
}

// Node returns a copy of the node for id.
func (g *Graph) Node(id wiki.PageID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// NodeState returns the lifecycle state for id; Unrequested when unknown.
func (g *Graph) NodeState(id wiki.PageID) State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.State
	}
	return Unrequested
}

// Neighbors returns the targets of all edges out of id, in edge order.
func (g *Graph) Neighbors(id wiki.PageID) []wiki.PageID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []wiki.PageID
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Version returns the current mutation counter.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Updates returns a channel that receives a signal after mutations.
// Signals are coalesced: one receive may cover many mutations, so
// consumers should re-read a full Snapshot on each signal.
func (g *Graph) Updates() <-chan struct{} {
	return g.updates
}

// Snapshot returns a consistent copy of all nodes and edges in
// insertion order.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{
		Version: g.version,
		Nodes:   make([]Node, 0, len(g.order)),
		Edges:   make([]Edge, len(g.edges)),
	}
	for _, id := range g.order {
		s.Nodes = append(s.Nodes, copyNode(g.nodes[id]))
	}
	copy(s.Edges, g.edges)
	return s
}

func copyNode(n *Node) Node {
	out := *n
	if n.Links != nil {
		out.Links = make([]wiki.PageID, len(n.Links))
		copy(out.Links, n.Links)
	}
	return out
}

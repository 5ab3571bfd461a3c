// Package serve exposes a running builder over HTTP: a JSON view of the
// graph, expansion controls, and Prometheus metrics.
package serve

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WaffleSoul4/wikipedia-graph/internal/build"
	"github.com/WaffleSoul4/wikipedia-graph/internal/export"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// Handler serves the graph API for one builder.
type Handler struct {
	builder *build.Builder
	lang    string
	nodeCap int
	log     *slog.Logger
}

// NewHandler creates the API handler. lang is the default language for
// requests that omit one; nodeCap bounds component expansions.
func NewHandler(b *build.Builder, lang string, nodeCap int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{builder: b, lang: lang, nodeCap: nodeCap, log: logger}
}

// Router returns the handler's mux, including /metrics.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/graph", h.handleGraph)
	mux.HandleFunc("GET /api/graph/export", h.handleExport)
	mux.HandleFunc("GET /api/version", h.handleVersion)
	mux.HandleFunc("POST /api/expand", h.handleExpand)
	mux.HandleFunc("POST /api/component", h.handleComponent)
	mux.HandleFunc("POST /api/retry", h.handleRetry)
	mux.HandleFunc("POST /api/cancel", h.handleCancel)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type nodeJSON struct {
	Lang    string   `json:"lang"`
	Title   string   `json:"title"`
	State   string   `json:"state"`
	Summary string   `json:"summary,omitempty"`
	Links   int      `json:"links"`
	Error   string   `json:"error,omitempty"`
	URL     string   `json:"url"`
	Edges   []string `json:"edges,omitempty"`
}

type graphJSON struct {
	Version uint64     `json:"version"`
	Nodes   []nodeJSON `json:"nodes"`
}

func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	s := h.builder.Graph().Snapshot()

	out := graphJSON{Version: s.Version, Nodes: make([]nodeJSON, 0, len(s.Nodes))}
	edgesFrom := make(map[wiki.PageID][]string, len(s.Nodes))
	for _, e := range s.Edges {
		edgesFrom[e.From] = append(edgesFrom[e.From], e.To.Key())
	}
	for _, n := range s.Nodes {
		out.Nodes = append(out.Nodes, nodeJSON{
			Lang:    n.ID.Lang,
			Title:   n.ID.DisplayTitle(),
			State:   n.State.String(),
			Summary: n.Summary,
			Links:   len(n.Links),
			Error:   n.Err,
			URL:     n.ID.PageURL(),
			Edges:   edgesFrom[n.ID],
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatDOT
	}
	s := h.builder.Graph().Snapshot()

	switch format {
	case export.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err := export.Export(w, s, format); err != nil {
		h.log.Warn("export failed", "format", format, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]uint64{"version": h.builder.Graph().Version()})
}

type pageRequest struct {
	Lang  string `json:"lang"`
	Title string `json:"title"`
}

func (h *Handler) pageID(r *http.Request) (wiki.PageID, bool) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		return wiki.PageID{}, false
	}
	if req.Lang == "" {
		req.Lang = h.lang
	}
	return wiki.Normalize(req.Lang, req.Title), true
}

// handleExpand fetches one page's links, waiting for the result so the
// caller gets a definite outcome.
func (h *Handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(r)
	if !ok {
		http.Error(w, "body must be JSON with a title", http.StatusBadRequest)
		return
	}

	h.log.Info("expand requested", "page", id.Key())
	if err := h.builder.Expand(r.Context(), id); err != nil {
		h.writeJSON(w, http.StatusBadGateway, map[string]string{
			"page":  id.Key(),
			"state": h.builder.Graph().NodeState(id).String(),
			"error": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"page":  id.Key(),
		"state": h.builder.Graph().NodeState(id).String(),
	})
}

// handleComponent starts a bulk expansion and returns its operation id
// without waiting for completion.
func (h *Handler) handleComponent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(r)
	if !ok {
		http.Error(w, "body must be JSON with a title", http.StatusBadRequest)
		return
	}

	op := h.builder.ExpandComponent(id, h.nodeCap)
	h.log.Info("component expansion started", "seed", id.Key(), "op", op.ID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"op":   op.ID.String(),
		"seed": id.Key(),
	})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pageID(r)
	if !ok {
		http.Error(w, "body must be JSON with a title", http.StatusBadRequest)
		return
	}
	if h.builder.Graph().NodeState(id) != graph.Failed {
		http.Error(w, "page is not in a failed state", http.StatusConflict)
		return
	}
	h.builder.Retry(id)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"page": id.Key()})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Op string `json:"op"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Op == "" {
		http.Error(w, "body must be JSON with an op id", http.StatusBadRequest)
		return
	}
	opID, err := uuid.Parse(req.Op)
	if err != nil {
		http.Error(w, "invalid op id", http.StatusBadRequest)
		return
	}
	h.builder.Cancel(opID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"op": opID.String()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response failed", "err", err)
	}
}

// Command wikigraph-mcp is an MCP server that exposes Wikipedia link
// graphs as tools for LLM agents. It supports fetching page summaries,
// expanding link components, and picking random articles via stdio
// transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/WaffleSoul4/wikipedia-graph/internal/build"
	"github.com/WaffleSoul4/wikipedia-graph/internal/cache"
	"github.com/WaffleSoul4/wikipedia-graph/internal/config"
	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/ratelimit"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

func main() {
	cfg := config.NewConfig()
	lang := flag.String("lang", cfg.Lang, "default Wikipedia language edition")
	workers := flag.Int("workers", cfg.Workers, "concurrent fetches")
	noCache := flag.Bool("no-cache", false, "disable response caching")
	cacheDir := flag.String("cache-dir", cache.DefaultDir(), "cache directory")
	flag.Parse()

	limiter := ratelimit.New(10, 5)
	defer limiter.Stop()

	opts := fetch.Options{
		Limiter:        limiter,
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.Timeout,
	}
	if !*noCache {
		opts.Cache = cache.New(*cacheDir)
	}
	client := fetch.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := build.NewDispatcher(client, *workers)
	b := build.NewBuilder(graph.New(), d, nil)
	d.Start(ctx)
	go b.Run(ctx)

	s := server.NewMCPServer("wikigraph-mcp", "0.1.0")

	h := &handler{client: client, builder: b, lang: *lang}
	s.AddTool(wikiPageTool(*lang), h.wikiPage)
	s.AddTool(wikiGraphTool(*lang), h.wikiGraph)
	s.AddTool(wikiRandomTool(*lang), h.wikiRandom)

	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}

type handler struct {
	client  *fetch.Client
	builder *build.Builder
	lang    string
}

// pageID resolves the tool's title and optional lang arguments.
func (h *handler) pageID(req mcp.CallToolRequest) (wiki.PageID, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return wiki.PageID{}, fmt.Errorf("title is required")
	}
	lang := req.GetString("lang", h.lang)
	if !wiki.KnownLanguage(lang) {
		return wiki.PageID{}, fmt.Errorf("unknown language code %q", lang)
	}
	return wiki.Normalize(lang, title), nil
}

// Tool definitions.

func langDesc(lang string) string {
	return fmt.Sprintf("Wikipedia language code (default %q)", lang)
}

func wikiPageTool(lang string) mcp.Tool {
	return mcp.NewTool("wiki_page",
		mcp.WithDescription(
			"Fetch a Wikipedia article's summary and its outgoing article links. "+
				"Titles are matched case-insensitively on the first letter and "+
				"redirects are followed.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("article title, e.g. Saxophone"),
		),
		mcp.WithString("lang",
			mcp.Description(langDesc(lang)),
		),
	)
}

func wikiGraphTool(lang string) mcp.Tool {
	return mcp.NewTool("wiki_graph",
		mcp.WithDescription(
			"Expand the link graph around a Wikipedia article and return it. "+
				"Follows article links breadth-first up to the node limit. "+
				"Use this to understand how topics relate.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("seed article title"),
		),
		mcp.WithString("lang",
			mcp.Description(langDesc(lang)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum articles to fetch (default 25, max 200)"),
		),
	)
}

func wikiRandomTool(lang string) mcp.Tool {
	return mcp.NewTool("wiki_random",
		mcp.WithDescription(
			"Fetch a random Wikipedia article's summary and links. "+
				"Useful as a starting point for exploration.",
		),
		mcp.WithString("lang",
			mcp.Description(langDesc(lang)),
		),
	)
}

// Tool handlers.
// Handler signatures are dictated by mcp-go's ToolHandlerFunc type.

func (h *handler) wikiPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := h.pageID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := h.client.Load(ctx, id)
	if err != nil {
		if fetch.IsNotFound(err) {
			return mcp.NewToolResultError(fmt.Sprintf("no article named %q on %s.wikipedia.org", id.DisplayTitle(), id.Lang)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatPage(page)), nil
}

func (h *handler) wikiGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	id, err := h.pageID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	limit := max(1, min(req.GetInt("limit", 25), 200))

	op := h.builder.ExpandComponent(id, limit)
	var res build.Result
	select {
	case res = <-op.Done:
	case <-ctx.Done():
		h.builder.Cancel(op.ID)
		return mcp.NewToolResultError("expansion cancelled"), nil
	}

	return mcp.NewToolResultText(formatGraph(h.builder.Graph().Snapshot(), id, res)), nil
}

func (h *handler) wikiRandom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	lang := req.GetString("lang", h.lang)
	if !wiki.KnownLanguage(lang) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown language code %q", lang)), nil
	}

	id, err := h.client.Random(ctx, lang)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("random fetch failed: %v", err)), nil
	}

	page, err := h.client.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatPage(page)), nil
}

// formatPage renders one article as plain text for LLM consumption.
func formatPage(page extract.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", page.Title, page.ID.PageURL())
	if page.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", page.Summary)
	}
	fmt.Fprintf(&b, "\n%d links:\n", len(page.Links))
	for _, l := range page.Links {
		fmt.Fprintf(&b, "  %s\n", l.DisplayTitle())
	}
	return b.String()
}

// formatGraph renders a snapshot as a plain-text summary for LLM
// consumption.
func formatGraph(s graph.Snapshot, seed wiki.PageID, res build.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expanded %d articles (%d failed) around %s: %d nodes, %d edges\n",
		res.Touched, res.Failures, seed.DisplayTitle(), len(s.Nodes), len(s.Edges))

	if len(s.Nodes) == 0 {
		return b.String()
	}

	b.WriteString("\nArticles:\n")
	for _, n := range s.Nodes {
		if n.State == graph.Unrequested {
			continue
		}
		line := fmt.Sprintf("  [%-7s] %-40s %d links", n.State, n.ID.DisplayTitle(), len(n.Links))
		if n.Err != "" {
			line += "  (" + n.Err + ")"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if len(s.Edges) > 0 {
		b.WriteString("\nLinks:\n")
		for _, e := range s.Edges {
			fmt.Fprintf(&b, "  %s -> %s\n", e.From.DisplayTitle(), e.To.DisplayTitle())
		}
	}

	return b.String()
}

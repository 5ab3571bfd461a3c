// Command wikigraph explores Wikipedia link graphs from the terminal.
// With no subcommand it fetches a single page and prints its summary and
// links; subcommands grow a graph, export it, or serve it over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/WaffleSoul4/wikipedia-graph/internal/bookmarks"
	"github.com/WaffleSoul4/wikipedia-graph/internal/build"
	"github.com/WaffleSoul4/wikipedia-graph/internal/cache"
	"github.com/WaffleSoul4/wikipedia-graph/internal/config"
	"github.com/WaffleSoul4/wikipedia-graph/internal/export"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/logging"
	"github.com/WaffleSoul4/wikipedia-graph/internal/ratelimit"
	"github.com/WaffleSoul4/wikipedia-graph/internal/serve"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "expand":
			expandMain(os.Args[2:])
			return
		case "random":
			randomMain(os.Args[2:])
			return
		case "languages":
			languagesMain()
			return
		case "bookmark":
			bookmarkMain(os.Args[2:])
			return
		case "export":
			exportMain(os.Args[2:])
			return
		case "serve":
			serveMain(os.Args[2:])
			return
		}
	}
	pageMain()
}

// clientFlags are the fetch-related flags shared by every subcommand.
type clientFlags struct {
	lang     string
	noCache  bool
	cacheDir string
	timeout  time.Duration
	agent    string
	http3    bool
}

func registerClientFlags(fs *flag.FlagSet, cfg *config.Config) *clientFlags {
	cf := &clientFlags{}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = cache.DefaultDir()
	}
	fs.StringVar(&cf.lang, "lang", cfg.Lang, "Wikipedia language edition (env: WIKIGRAPH_LANG)")
	fs.BoolVar(&cf.noCache, "no-cache", false, "disable response caching")
	fs.StringVar(&cf.cacheDir, "cache-dir", cacheDir, "cache directory (env: WIKIGRAPH_CACHE_DIR)")
	fs.DurationVar(&cf.timeout, "timeout", cfg.Timeout, "per-request timeout (env: WIKIGRAPH_TIMEOUT)")
	fs.StringVar(&cf.agent, "agent", cfg.UserAgent, "custom User-Agent string (env: WIKIGRAPH_USER_AGENT)")
	fs.BoolVar(&cf.http3, "http3", false, "use an HTTP/3 transport")
	return cf
}

func (cf *clientFlags) newClient() (*fetch.Client, *ratelimit.Limiter) {
	limiter := ratelimit.New(10, 5)
	opts := fetch.Options{
		Limiter:        limiter,
		UserAgent:      cf.agent,
		RequestTimeout: cf.timeout,
		HTTP3:          cf.http3,
	}
	if !cf.noCache {
		opts.Cache = cache.New(cf.cacheDir)
	}
	return fetch.NewClient(opts), limiter
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "wikigraph:", err)
	os.Exit(1)
}

// pageMain fetches one page and prints its summary and links.
func pageMain() {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("wikigraph", flag.ExitOnError)
	cf := registerClientFlags(fs, cfg)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wikigraph [flags] <title>\n")
		fmt.Fprintf(os.Stderr, "       wikigraph expand [-cap N] [-workers N] <title>\n")
		fmt.Fprintf(os.Stderr, "       wikigraph random\n")
		fmt.Fprintf(os.Stderr, "       wikigraph languages\n")
		fmt.Fprintf(os.Stderr, "       wikigraph bookmark <add|remove|list> [title]\n")
		fmt.Fprintf(os.Stderr, "       wikigraph export [-format dot|markdown|html] <title>\n")
		fmt.Fprintf(os.Stderr, "       wikigraph serve [-addr HOST:PORT]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	client, limiter := cf.newClient()
	defer client.Close()
	defer limiter.Stop()

	printPage(client, wiki.Normalize(cf.lang, strings.Join(fs.Args(), " ")))
}

func printPage(client *fetch.Client, id wiki.PageID) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page, err := client.Load(ctx, id)
	if err != nil {
		if fetch.IsNotFound(err) {
			fatal(fmt.Errorf("no article named %q on %s.wikipedia.org", id.DisplayTitle(), id.Lang))
		}
		fatal(err)
	}

	fmt.Printf("%s\n%s\n\n", page.Title, id.PageURL())
	if page.Summary != "" {
		fmt.Println(page.Summary)
		fmt.Println()
	}
	fmt.Printf("%d links:\n", len(page.Links))
	for _, l := range page.Links {
		fmt.Printf("  %s\n", l.DisplayTitle())
	}
}

// expandMain grows the connected component around a seed page.
func expandMain(args []string) {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("expand", flag.ExitOnError)
	cf := registerClientFlags(fs, cfg)
	nodeCap := fs.Int("cap", cfg.NodeCap, "maximum nodes to fetch, 0 for unlimited (env: WIKIGRAPH_NODE_CAP)")
	workers := fs.Int("workers", cfg.Workers, "concurrent fetches (env: WIKIGRAPH_WORKERS)")
	showEdges := fs.Bool("edges", false, "print the edge list after expanding")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wikigraph expand [-cap N] [-workers N] [-edges] <title>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	seed := wiki.Normalize(cf.lang, strings.Join(fs.Args(), " "))

	client, limiter := cf.newClient()
	defer client.Close()
	defer limiter.Stop()

	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g := graph.New()
	d := build.NewDispatcher(client, *workers)
	b := build.NewBuilder(g, d, logger)
	d.Start(ctx)
	go b.Run(ctx)

	fmt.Printf("Expanding %s (cap %d)...\n", seed.DisplayTitle(), *nodeCap)

	op := b.ExpandComponent(seed, *nodeCap)
	var res build.Result
	select {
	case res = <-op.Done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(1)
	}

	s := g.Snapshot()
	for _, n := range s.Nodes {
		if n.State == graph.Unrequested {
			continue
		}
		line := fmt.Sprintf("  [%-7s] %s (%d links)", n.State, n.ID.DisplayTitle(), len(n.Links))
		if n.Err != "" {
			line += " " + n.Err
		}
		fmt.Println(line)
	}

	fmt.Printf("\nGraph: %d nodes, %d edges (%d fetched, %d failed)\n",
		len(s.Nodes), len(s.Edges), res.Touched, res.Failures)

	if *showEdges && len(s.Edges) > 0 {
		fmt.Println("\nEdges:")
		for _, e := range s.Edges {
			fmt.Printf("  %s -> %s\n", e.From.DisplayTitle(), e.To.DisplayTitle())
		}
	}
}

// randomMain shows a random article.
func randomMain(args []string) {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("random", flag.ExitOnError)
	cf := registerClientFlags(fs, cfg)
	_ = fs.Parse(args)

	client, limiter := cf.newClient()
	defer client.Close()
	defer limiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := client.Random(ctx, cf.lang)
	if err != nil {
		fatal(err)
	}
	printPage(client, id)
}

func languagesMain() {
	for _, l := range wiki.Languages() {
		fmt.Printf("%-8s %-24s %s\n", l.Code, l.Name, l.LocalName)
	}
}

func bookmarkMain(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: wikigraph bookmark <add|remove|list>\n")
		fmt.Fprintf(os.Stderr, "  add    [-lang CODE] <title>  Save a page\n")
		fmt.Fprintf(os.Stderr, "  remove [-lang CODE] <title>  Remove a saved page\n")
		fmt.Fprintf(os.Stderr, "  list                         List saved pages\n")
		os.Exit(1)
	}

	store, err := bookmarks.Load(bookmarks.DefaultPath())
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "add", "remove":
		cfg := config.NewConfig()
		fs := flag.NewFlagSet("bookmark "+args[0], flag.ExitOnError)
		lang := fs.String("lang", cfg.Lang, "Wikipedia language edition")
		_ = fs.Parse(args[1:])
		if fs.NArg() < 1 {
			fatal(fmt.Errorf("usage: wikigraph bookmark %s [-lang CODE] <title>", args[0]))
		}
		id := wiki.Normalize(*lang, strings.Join(fs.Args(), " "))

		if args[0] == "add" {
			err = store.Add(id)
		} else {
			err = store.Remove(id)
		}
		if err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "Bookmark %sed: %s\n", strings.TrimSuffix(args[0], "e"), id.Key())

	case "list":
		pages := store.Pages()
		if len(pages) == 0 {
			fmt.Println("No bookmarks.")
			return
		}
		for _, id := range pages {
			fmt.Printf("%-4s %s\n", id.Lang, id.DisplayTitle())
		}

	default:
		fatal(fmt.Errorf("unknown bookmark command: %s", args[0]))
	}
}

// exportMain expands a component and writes it to stdout in the chosen
// format.
func exportMain(args []string) {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cf := registerClientFlags(fs, cfg)
	nodeCap := fs.Int("cap", cfg.NodeCap, "maximum nodes to fetch, 0 for unlimited")
	workers := fs.Int("workers", cfg.Workers, "concurrent fetches")
	format := fs.String("format", export.FormatDOT, "output format: dot, markdown or html")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wikigraph export [-format dot|markdown|html] [-cap N] <title>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	seed := wiki.Normalize(cf.lang, strings.Join(fs.Args(), " "))

	client, limiter := cf.newClient()
	defer client.Close()
	defer limiter.Stop()

	logger := logging.New(cfg.LogFormat, "warn", os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g := graph.New()
	d := build.NewDispatcher(client, *workers)
	b := build.NewBuilder(g, d, logger)
	d.Start(ctx)
	go b.Run(ctx)

	op := b.ExpandComponent(seed, *nodeCap)
	select {
	case <-op.Done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(1)
	}

	if err := export.Export(os.Stdout, g.Snapshot(), *format); err != nil {
		fatal(err)
	}
}

// serveMain exposes a builder over HTTP until interrupted.
func serveMain(args []string) {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cf := registerClientFlags(fs, cfg)
	addr := fs.String("addr", "localhost:8080", "listen address")
	nodeCap := fs.Int("cap", cfg.NodeCap, "maximum nodes per component expansion")
	workers := fs.Int("workers", cfg.Workers, "concurrent fetches")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wikigraph serve [-addr HOST:PORT] [-cap N] [-workers N]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	client, limiter := cf.newClient()
	defer client.Close()
	defer limiter.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g := graph.New()
	d := build.NewDispatcher(client, *workers)
	b := build.NewBuilder(g, d, logger)
	d.Start(ctx)
	go b.Run(ctx)

	h := serve.NewHandler(b, cf.lang, *nodeCap, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", *addr, "lang", cf.lang)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(err)
	}
	logger.Info("shut down")
}

// Command wikigraph-tui is a terminal browser for Wikipedia link graphs.
// Type a title to load a page, then expand its links into a navigable
// graph view that updates live as fetches complete.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/WaffleSoul4/wikipedia-graph/internal/build"
	"github.com/WaffleSoul4/wikipedia-graph/internal/cache"
	"github.com/WaffleSoul4/wikipedia-graph/internal/config"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/logging"
	"github.com/WaffleSoul4/wikipedia-graph/internal/ratelimit"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

type focus int

const (
	focusAddressBar focus = iota
	focusViewport
)

type model struct {
	addressBar textinput.Model
	viewport   viewport.Model
	focus      focus
	mode       viewMode

	builder *build.Builder
	lang    string
	nodeCap int

	current  wiki.PageID
	items    []graphItem
	selected int
	op       *build.Operation

	err     error
	loading bool
	notice  string

	width  int
	height int
	ready  bool
}

// expandDone is sent when a single-page expansion settles.
type expandDone struct {
	id  wiki.PageID
	err error
}

// graphChanged is sent whenever the graph's version advances.
type graphChanged struct{}

// opDone is sent when a bulk component expansion finishes.
type opDone struct {
	res build.Result
}

func initialModel(b *build.Builder, lang string, nodeCap int, initialTitle string) model {
	ti := textinput.New()
	ti.Placeholder = "article title, or lang:title"
	ti.Prompt = " "
	ti.SetValue(initialTitle)
	ti.Focus()

	return model{
		addressBar: ti,
		focus:      focusAddressBar,
		builder:    b,
		lang:       lang,
		nodeCap:    nodeCap,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.watchUpdates()}
	if m.addressBar.Value() != "" {
		id := m.parseInput(m.addressBar.Value())
		m.loading = true
		cmds = append(cmds, m.doExpand(id))
	}
	return tea.Batch(cmds...)
}

// parseInput turns the address bar text into a page identity. A "lang:"
// prefix selects another language edition.
func (m model) parseInput(raw string) wiki.PageID {
	lang := m.lang
	title := raw
	if code, rest, ok := strings.Cut(raw, ":"); ok && wiki.KnownLanguage(code) {
		lang = code
		title = rest
	}
	return wiki.Normalize(lang, title)
}

// watchUpdates re-arms on every delivery so the view tracks the graph.
func (m model) watchUpdates() tea.Cmd {
	updates := m.builder.Graph().Updates()
	return func() tea.Msg {
		<-updates
		return graphChanged{}
	}
}

func (m model) doExpand(id wiki.PageID) tea.Cmd {
	b := m.builder
	return func() tea.Msg {
		err := b.Expand(context.Background(), id)
		return expandDone{id: id, err: err}
	}
}

func (m model) doExpandComponent(seed wiki.PageID) (model, tea.Cmd) {
	op := m.builder.ExpandComponent(seed, m.nodeCap)
	m.op = op
	m.notice = fmt.Sprintf("Expanding component around %s...", seed.DisplayTitle())
	return m, func() tea.Msg {
		return opDone{res: <-op.Done}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2 // address bar + divider
		footerHeight := 1 // status bar
		viewportHeight := max(m.height-headerHeight-footerHeight, 1)

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.addressBar.Width = m.width - 2
		m.refreshContent()
		return m, nil

	case expandDone:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.current = msg.id
			m.mode = viewPage
			m.focus = focusViewport
			m.addressBar.Blur()
		}
		m.refreshContent()
		return m, nil

	case graphChanged:
		m.refreshContent()
		return m, m.watchUpdates()

	case opDone:
		m.op = nil
		if msg.res.Cancelled {
			m.notice = fmt.Sprintf("Expansion cancelled after %d pages", msg.res.Touched)
		} else {
			m.notice = fmt.Sprintf("Expanded %d pages (%d failed)", msg.res.Touched, msg.res.Failures)
		}
		m.refreshContent()
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyTab:
		return m.toggleFocus(), nil
	}

	if m.focus == focusAddressBar {
		switch msg.Type {
		case tea.KeyEnter:
			raw := strings.TrimSpace(m.addressBar.Value())
			if raw != "" {
				m.loading = true
				m.err = nil
				return m, m.doExpand(m.parseInput(raw))
			}
			return m, nil
		case tea.KeyEscape:
			m.focus = focusViewport
			m.addressBar.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.addressBar, cmd = m.addressBar.Update(msg)
		return m, cmd
	}

	if m.mode == viewGraph {
		return m.handleGraphKey(msg)
	}

	// Page view focused.
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "g":
		m.mode = viewGraph
		m.selected = 0
		m.refreshContent()
		return m, nil
	case "E":
		if m.current != (wiki.PageID{}) {
			var cmd tea.Cmd
			m, cmd = m.doExpandComponent(m.current)
			return m, cmd
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) toggleFocus() model {
	if m.focus == focusAddressBar {
		m.focus = focusViewport
		m.addressBar.Blur()
	} else {
		m.focus = focusAddressBar
		m.addressBar.Focus()
	}
	return m
}

// refreshContent re-renders the viewport for the current mode.
func (m *model) refreshContent() {
	if !m.ready {
		return
	}
	switch m.mode {
	case viewGraph:
		m.items = flattenGraph(m.builder.Graph(), m.current)
		if m.selected >= len(m.items) {
			m.selected = max(len(m.items)-1, 0)
		}
		m.viewport.SetContent(renderGraphView(m.items, m.selected, m.width))
	default:
		if m.err != nil {
			m.viewport.SetContent(fmt.Sprintf("\n  Error: %s\n", m.err.Error()))
			return
		}
		if m.current == (wiki.PageID{}) {
			m.viewport.SetContent("\n  Enter an article title and press Enter.\n")
			return
		}
		n, ok := m.builder.Graph().Node(m.current)
		if !ok {
			return
		}
		rendered, err := renderMarkdown(pageMarkdown(n), m.width)
		if err != nil {
			m.viewport.SetContent(pageMarkdown(n))
			return
		}
		m.viewport.SetContent(rendered)
	}
}

// pageMarkdown renders one node as a markdown document for the viewer.
func pageMarkdown(n graph.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.ID.DisplayTitle())
	if n.Summary != "" {
		b.WriteString(n.Summary)
		b.WriteString("\n\n")
	}
	if n.Err != "" {
		fmt.Fprintf(&b, "*Last fetch failed: %s*\n\n", n.Err)
	}
	if len(n.Links) > 0 {
		fmt.Fprintf(&b, "## Links (%d)\n\n", len(n.Links))
		for _, l := range n.Links {
			fmt.Fprintf(&b, "- %s\n", l.DisplayTitle())
		}
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	barStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Width(m.width)
	if m.focus == focusAddressBar {
		barStyle = barStyle.Bold(true)
	}
	b.WriteString(barStyle.Render(m.addressBar.View()))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat("─", m.width))
	b.WriteByte('\n')

	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	b.WriteString(m.statusBarView())

	return b.String()
}

func (m model) statusBarView() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1)

	if m.loading {
		return style.Render("Loading...")
	}
	if m.err != nil {
		return style.Foreground(lipgloss.Color("9")).Render("Error: " + m.err.Error())
	}

	g := m.builder.Graph()
	parts := []string{fmt.Sprintf("%d pages, %d links", g.NodeCount(), g.EdgeCount())}
	if m.op != nil {
		parts = append(parts, "expanding...")
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	if m.mode == viewPage && m.current != (wiki.PageID{}) {
		parts = append(parts, "[g] graph  [E] expand component")
	}
	return style.Render(strings.Join(parts, "  "))
}

func renderMarkdown(body string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return "", err
	}
	return r.Render(body)
}

func main() {
	cfg := config.NewConfig()
	lang := flag.String("lang", cfg.Lang, "Wikipedia language edition (env: WIKIGRAPH_LANG)")
	nodeCap := flag.Int("cap", cfg.NodeCap, "maximum nodes per component expansion")
	workers := flag.Int("workers", cfg.Workers, "concurrent fetches")
	noCache := flag.Bool("no-cache", false, "disable response caching")
	flag.Parse()

	limiter := ratelimit.New(10, 5)
	defer limiter.Stop()

	opts := fetch.Options{
		Limiter:        limiter,
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.Timeout,
	}
	if !*noCache {
		opts.Cache = cache.New(cache.DefaultDir())
	}
	client := fetch.NewClient(opts)
	defer client.Close()

	logger := logging.New(cfg.LogFormat, "error", os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := graph.New()
	d := build.NewDispatcher(client, *workers)
	b := build.NewBuilder(g, d, logger)
	d.Start(ctx)
	go b.Run(ctx)

	initialTitle := ""
	if flag.NArg() > 0 {
		initialTitle = strings.Join(flag.Args(), " ")
	}

	p := tea.NewProgram(
		initialModel(b, *lang, *nodeCap, initialTitle),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

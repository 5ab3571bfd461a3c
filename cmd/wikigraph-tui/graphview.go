package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// viewMode distinguishes between page reading and graph exploration.
type viewMode int

const (
	viewPage viewMode = iota
	viewGraph
)

// graphItem is a flattened node for display in the tree view.
type graphItem struct {
	id    wiki.PageID
	state graph.State
	links int
	depth int
	err   string
}

// flattenGraph builds a display list by BFS from the root. The root
// appears first, then its neighbors, then theirs, with depth recorded
// for indentation.
func flattenGraph(g *graph.Graph, root wiki.PageID) []graphItem {
	if root == (wiki.PageID{}) {
		return nil
	}
	if _, ok := g.Node(root); !ok {
		return nil
	}

	type queued struct {
		id    wiki.PageID
		depth int
	}

	var items []graphItem
	visited := map[wiki.PageID]bool{root: true}
	queue := []queued{{root, 0}}

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]

		n, ok := g.Node(q.id)
		if !ok {
			continue
		}

		items = append(items, graphItem{
			id:    n.ID,
			state: n.State,
			links: len(n.Links),
			depth: q.depth,
			err:   n.Err,
		})

		for _, nb := range g.Neighbors(q.id) {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, queued{nb, q.depth + 1})
			}
		}
	}

	return items
}

// renderGraphView renders the tree list as a string for the viewport.
func renderGraphView(items []graphItem, selectedIdx, width int) string {
	if len(items) == 0 {
		return "\n  No pages loaded yet.\n"
	}

	var b strings.Builder
	b.WriteString("\n  Link Graph\n\n")

	for i, item := range items {
		icon := stateIcon(item.state)

		indent := strings.Repeat("    ", item.depth)

		connector := ""
		if item.depth > 0 {
			connector = "├─ "
		}

		cursor := "  "
		if i == selectedIdx {
			cursor = "> "
		}

		label := item.id.DisplayTitle()
		if item.state == graph.Loaded {
			label = fmt.Sprintf("%s (%d links)", label, item.links)
		}
		if item.err != "" {
			label += " [" + item.err + "]"
		}

		line := fmt.Sprintf("%s%s%s%s %s", cursor, indent, connector, icon, label)

		if len(line) > width-2 && width > 5 {
			line = line[:width-5] + "..."
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("\n  [Enter] open  [e] expand  [E] expand component  [r] retry  [c] cancel  [p] back to page  [q] quit\n")
	return b.String()
}

func stateIcon(s graph.State) string {
	switch s {
	case graph.Loaded:
		return "●"
	case graph.Pending:
		return "◐"
	case graph.Failed:
		return "✗"
	default:
		return "○"
	}
}

// handleGraphKey processes key events when the graph view is active.
func (m model) handleGraphKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "p", "esc":
		m.mode = viewPage
		m.refreshContent()
		return m, nil
	case "j", "down":
		if m.selected < len(m.items)-1 {
			m.selected++
			m.refreshContent()
		}
		return m, nil
	case "k", "up":
		if m.selected > 0 {
			m.selected--
			m.refreshContent()
		}
		return m, nil
	case "e":
		if item, ok := m.selectedItem(); ok {
			m.builder.ExpandNode(item.id)
		}
		return m, nil
	case "E":
		if item, ok := m.selectedItem(); ok {
			var cmd tea.Cmd
			m, cmd = m.doExpandComponent(item.id)
			m.refreshContent()
			return m, cmd
		}
		return m, nil
	case "r":
		if item, ok := m.selectedItem(); ok && item.state == graph.Failed {
			m.builder.Retry(item.id)
		}
		return m, nil
	case "c":
		if m.op != nil {
			m.builder.Cancel(m.op.ID)
		}
		return m, nil
	case "enter":
		if item, ok := m.selectedItem(); ok {
			m.current = item.id
			m.mode = viewPage
			m.addressBar.SetValue(item.id.DisplayTitle())
			if item.state == graph.Loaded {
				m.refreshContent()
				return m, nil
			}
			m.loading = true
			return m, m.doExpand(item.id)
		}
		return m, nil
	}
	return m, nil
}

func (m model) selectedItem() (graphItem, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return graphItem{}, false
	}
	return m.items[m.selected], true
}

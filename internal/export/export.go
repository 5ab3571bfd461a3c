// Package export renders a link graph in shareable formats: Graphviz
// DOT, a markdown report, and a standalone HTML page.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/WaffleSoul4/wikipedia-graph/internal/graph"
)

// Formats accepted by Export.
const (
	FormatDOT      = "dot"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Export writes the snapshot in the given format. Unknown formats are an
// error listing the accepted ones.
func Export(w io.Writer, s graph.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case FormatDOT:
		return writeDOT(w, s)
	case FormatMarkdown, "md":
		_, err := io.WriteString(w, Markdown(s))
		return err
	case FormatHTML:
		return writeHTML(w, s)
	default:
		return fmt.Errorf("unknown export format %q (want dot, markdown or html)", format)
	}
}

// writeDOT renders the snapshot as a Graphviz digraph. Node fill encodes
// lifecycle state so failed and unfetched pages stand out.
func writeDOT(w io.Writer, s graph.Snapshot) error {
	var b strings.Builder
	b.WriteString("digraph wikigraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")

	for _, n := range s.Nodes {
		fill := "white"
		switch n.State {
		case graph.Loaded:
			fill = "palegreen"
		case graph.Pending:
			fill = "lightyellow"
		case graph.Failed:
			fill = "lightcoral"
		}
		fmt.Fprintf(&b, "  %s [label=%s, fillcolor=%s];\n",
			quote(n.ID.Key()), quote(n.ID.DisplayTitle()), quote(fill))
	}
	for _, e := range s.Edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", quote(e.From.Key()), quote(e.To.Key()))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the snapshot as a report for human or LLM consumption.
func Markdown(s graph.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Link graph\n\n%d pages, %d links.\n", len(s.Nodes), len(s.Edges))

	if len(s.Nodes) == 0 {
		return b.String()
	}

	b.WriteString("\n## Pages\n\n")
	for _, n := range s.Nodes {
		marker := stateMarker(n)
		fmt.Fprintf(&b, "- %s [%s](%s) (%d links)", marker, n.ID.DisplayTitle(), n.ID.PageURL(), len(n.Links))
		if n.Err != "" {
			fmt.Fprintf(&b, " *(%s)*", n.Err)
		}
		b.WriteString("\n")
		if n.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", firstSentence(n.Summary))
		}
	}

	if len(s.Edges) > 0 {
		b.WriteString("\n## Links\n\n")
		for _, e := range s.Edges {
			fmt.Fprintf(&b, "- %s -> %s\n", e.From.DisplayTitle(), e.To.DisplayTitle())
		}
	}

	return b.String()
}

// writeHTML converts the markdown report to a standalone HTML page.
func writeHTML(w io.Writer, s graph.Snapshot) error {
	if _, err := io.WriteString(w, htmlHeader); err != nil {
		return err
	}
	if err := goldmark.Convert([]byte(Markdown(s)), w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := io.WriteString(w, htmlFooter)
	return err
}

func stateMarker(n graph.Node) string {
	switch n.State {
	case graph.Loaded:
		return "[x]"
	case graph.Failed:
		return "[!]"
	case graph.Pending:
		return "[~]"
	default:
		return "[ ]"
	}
}

// firstSentence truncates a summary for the per-page line.
func firstSentence(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}

// quote escapes a string for a DOT identifier or attribute value.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Link graph</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
li { margin: 0.2rem 0; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`

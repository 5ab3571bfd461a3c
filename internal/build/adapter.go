package build

import (
	"context"

	"github.com/WaffleSoul4/wikipedia-graph/internal/extract"
	"github.com/WaffleSoul4/wikipedia-graph/internal/fetch"
	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// LoaderFunc adapts a function into a Loader.
type LoaderFunc func(ctx context.Context, id wiki.PageID) (extract.Page, error)

// Load implements the Loader interface.
func (f LoaderFunc) Load(ctx context.Context, id wiki.PageID) (extract.Page, error) {
	return f(ctx, id)
}

// ClientLoader adapts any client with a raw Fetch method into a Loader,
// running extraction on the fetched bytes. This avoids a direct
// dependency on the fetch client type.
type ClientLoader struct {
	// FetchFunc retrieves the raw query response for a page.
	FetchFunc func(ctx context.Context, id wiki.PageID) ([]byte, error)
}

// Load implements the Loader interface.
func (l *ClientLoader) Load(ctx context.Context, id wiki.PageID) (extract.Page, error) {
	raw, err := l.FetchFunc(ctx, id)
	if err != nil {
		return extract.Page{}, err
	}
	page, err := extract.Extract(id.Lang, raw)
	if err != nil {
		return extract.Page{}, &fetch.Error{Kind: fetch.KindParse, ID: id, Err: err}
	}
	if page.Missing {
		return extract.Page{}, &fetch.Error{Kind: fetch.KindNotFound, ID: id}
	}
	return page, nil
}

// errClass maps a loader error to its taxonomy label for graph state and
// metrics.
func errClass(err error) string {
	return fetch.KindOf(err).String()
}

// Package extract parses MediaWiki query responses into page content and
// outgoing link identities.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// filteredTitles won't be included in linked pages. Almost all citation
// footnotes link through the Wayback Machine, which drowns the real links.
var filteredTitles = []string{
	"Wayback Machine",
}

// Page is the parsed content of one fetched article.
type Page struct {
	ID      wiki.PageID // canonical identity after redirect resolution
	Title   string      // canonical display title
	Summary string      // plain-text intro, may be empty
	Links   []wiki.PageID
	Missing bool // the title does not resolve to an article
}

type queryResponse struct {
	Query *struct {
		Pages map[string]pageData `json:"pages"`
	} `json:"query"`
}

type pageData struct {
	NS      int             `json:"ns"`
	Title   string          `json:"title"`
	Missing json.RawMessage `json:"missing"`
	Extract string          `json:"extract"`
	Links   []linkData      `json:"links"`
}

type linkData struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// Extract parses a raw query response for a page in the given language.
// The link list preserves first-occurrence order with later duplicates
// dropped. A response that is valid JSON but not shaped like a query
// result is a parse failure, distinct from transport errors.
func Extract(lang string, raw []byte) (Page, error) {
	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Page{}, fmt.Errorf("decode query response: %w", err)
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return Page{}, fmt.Errorf("query response has no pages")
	}

	// The API keys the single requested page by its page ID ("-1" when
	// missing); take the first entry like the original client does.
	var data pageData
	for _, v := range resp.Query.Pages {
		data = v
		break
	}

	if data.Title == "" {
		return Page{}, fmt.Errorf("query response page has no title")
	}

	id := wiki.Normalize(lang, data.Title)
	page := Page{
		ID:      id,
		Title:   id.DisplayTitle(),
		Summary: strings.TrimSpace(data.Extract),
		Missing: data.Missing != nil,
	}
	if page.Missing {
		return page, nil
	}

	seen := make(map[wiki.PageID]struct{}, len(data.Links))
	for _, link := range data.Links {
		if link.NS != 0 || filtered(link.Title) {
			continue
		}
		target := wiki.Normalize(lang, link.Title)
		if target.IsZero() {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		page.Links = append(page.Links, target)
	}

	return page, nil
}

func filtered(title string) bool {
	for _, f := range filteredTitles {
		if strings.Contains(title, f) {
			return true
		}
	}
	return false
}

// RandomTitle parses a list=random response and returns the page identity.
func RandomTitle(lang string, raw []byte) (wiki.PageID, error) {
	var resp struct {
		Query *struct {
			Random []struct {
				Title string `json:"title"`
			} `json:"random"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return wiki.PageID{}, fmt.Errorf("decode random response: %w", err)
	}
	if resp.Query == nil || len(resp.Query.Random) == 0 || resp.Query.Random[0].Title == "" {
		return wiki.PageID{}, fmt.Errorf("random response has no title")
	}
	return wiki.Normalize(lang, resp.Query.Random[0].Title), nil
}

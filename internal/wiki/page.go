// Package wiki provides page identities for Wikipedia articles and URL
// construction for the MediaWiki API.
//
// A PageID is a (language, title) pair in canonical form. Titles follow
// the API's own matching rules: spaces become underscores, runs of
// whitespace and underscores collapse, and the first letter is uppercased
// (the API treats only the first character as case-insensitive). Equality
// and map keys use the canonical form only.
package wiki

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLanguage is the language used when none is specified.
const DefaultLanguage = "en"

// PageID identifies a Wikipedia page by language edition and canonical title.
// Construct it with Normalize; a zero PageID is not valid.
type PageID struct {
	Lang  string
	Title string
}

// Normalize canonicalizes a (language, title) pair. It never fails:
// malformed input is folded best-effort and left to the API to resolve.
func Normalize(lang, rawTitle string) PageID {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = DefaultLanguage
	}

	fields := strings.FieldsFunc(rawTitle, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_'
	})
	title := strings.Join(fields, "_")
	title = upperFirst(title)

	return PageID{Lang: lang, Title: title}
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return s
	}
	return string(upper) + s[size:]
}

// Key returns a stable string form "lang:Title", usable as a map key in
// serialized contexts.
func (id PageID) Key() string {
	return id.Lang + ":" + id.Title
}

// String implements fmt.Stringer.
func (id PageID) String() string {
	return id.Key()
}

// IsZero reports whether the identity is empty.
func (id PageID) IsZero() bool {
	return id.Title == ""
}

// DisplayTitle returns the human-readable title (underscores as spaces).
func (id PageID) DisplayTitle() string {
	return strings.ReplaceAll(id.Title, "_", " ")
}

// PageURL returns the canonical article URL, e.g.
// https://en.wikipedia.org/wiki/Albert_Einstein.
func (id PageID) PageURL() string {
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", id.Lang, url.PathEscape(id.Title))
}

// APIBase returns the api.php endpoint for a language edition.
func APIBase(lang string) string {
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

// QueryURL returns the API URL that fetches a page's outgoing links and
// intro summary in one request. redirects=1 makes the API resolve
// redirects to the canonical title.
func QueryURL(id PageID, linkLimit int) string {
	if linkLimit <= 0 {
		linkLimit = 500
	}
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("prop", "links|extracts")
	q.Set("plnamespace", "0")
	q.Set("pllimit", fmt.Sprint(linkLimit))
	q.Set("exintro", "1")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("origin", "*")
	q.Set("titles", id.DisplayTitle())
	return APIBase(id.Lang) + "?" + q.Encode()
}

// RandomURL returns the API URL that picks one random article title.
func RandomURL(lang string) string {
	return APIBase(lang) + "?action=query&format=json&list=random&rnnamespace=0&rnlimit=1&origin=*"
}

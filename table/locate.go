// Package table finds and flattens data tables in rendered markup.
//
// The target site ships many of its tables inert inside HTML comments, to be
// revealed later by client-side script. A collapsed table is invisible to a
// live-DOM query but perfectly parseable from the raw markup, so location
// always searches both.
package table

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/tarbouchdata/scoutscrape/models"
	"golang.org/x/net/html"
)

// Located is one table found in the markup, ready for extraction.
type Located struct {
	// ID is the actual id attribute of the matched element (relevant when
	// the requested identifier was a pattern).
	ID string

	// Selection is the table subtree.
	Selection *goquery.Selection

	// HTML is the table's outer markup, kept for report rendering.
	HTML string

	// FromComment is true when the table was recovered from a comment node.
	FromComment bool
}

// Locate returns the first table matching one of the identifier variants.
//
// Variants are tried in the given priority order; for each, the live DOM is
// searched before comment-embedded markup. Within a document, the first
// match in document order wins, which keeps repeated lookups deterministic.
// An identifier may end in "*" to match any table whose id starts with the
// prefix. When nothing matches, the error carries every identifier attempted.
func Locate(rawHTML string, ids []string) (*Located, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeInternal, "failed to parse page markup", err)
	}

	for _, id := range ids {
		sel, selErr := compileSelector(id)
		if selErr != nil {
			return nil, models.NewExtractError(models.ErrCodeInvalidInput,
				fmt.Sprintf("bad table identifier %q", id), selErr)
		}

		if loc := findLive(doc, sel); loc != nil {
			return loc, nil
		}
		if loc, commentErr := findInComments(doc, sel); commentErr != nil {
			return nil, commentErr
		} else if loc != nil {
			return loc, nil
		}
	}

	return nil, models.NewTableNotFound(ids)
}

// compileSelector turns an identifier (exact or trailing-wildcard pattern)
// into a compiled CSS selector usable on both live and comment markup.
func compileSelector(id string) (cascadia.Sel, error) {
	var css string
	if prefix, ok := strings.CutSuffix(id, "*"); ok {
		css = fmt.Sprintf(`table[id^=%q]`, prefix)
	} else {
		css = fmt.Sprintf(`table[id=%q]`, id)
	}
	return cascadia.Parse(css)
}

// findLive searches the rendered DOM tree.
func findLive(doc *goquery.Document, sel cascadia.Sel) *Located {
	root := doc.Get(0)
	node := cascadia.Query(root, sel)
	if node == nil {
		return nil
	}
	return locatedFromNode(node, false)
}

// findInComments walks every comment node in document order, parses comments
// that could contain a table, and queries the resulting fragments.
func findInComments(doc *goquery.Document, sel cascadia.Sel) (*Located, error) {
	var found *Located

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.CommentNode && strings.Contains(n.Data, "<table") {
			frag, err := html.Parse(strings.NewReader(n.Data))
			if err != nil {
				return
			}
			if node := cascadia.Query(frag, sel); node != nil {
				found = locatedFromNode(node, true)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Get(0))

	return found, nil
}

// locatedFromNode renders a matched table node and wraps it in a fresh
// single-table document, so extraction works the same for live and
// comment-recovered tables.
func locatedFromNode(node *html.Node, fromComment bool) *Located {
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return nil
	}
	outer := buf.String()

	tableDoc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
	if err != nil {
		return nil
	}
	selection := tableDoc.Find("table").First()
	if selection.Length() == 0 {
		return nil
	}

	return &Located{
		ID:          selection.AttrOr("id", ""),
		Selection:   selection,
		HTML:        outer,
		FromComment: fromComment,
	}
}

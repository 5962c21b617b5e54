// Package dom is a read-only view over a parsed HTML page.
//
// Detection and extraction code only talks to Document and Node, so the same
// logic runs against a live browser snapshot, a fetched page or a fixture.
package dom

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Node is a single element of the page.
type Node interface {
	// Tag returns the lower-case element name.
	Tag() string
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)
	// OwnText returns the trimmed, non-empty direct text children.
	OwnText() []string
	// Text returns the visible text of the subtree, roughly innerText.
	Text() string
	// Children returns the element children in document order.
	Children() []Node
}

// Document is a parsed page plus the URL it was loaded from.
type Document interface {
	URL() string
	Body() (Node, bool)
	QueryFirst(selector string) (Node, bool)
	QueryAll(selector string) []Node
	VisibleText() string
}

type document struct {
	url string
	doc *goquery.Document
}

// Parse reads HTML from r and binds it to pageURL.
func Parse(pageURL string, r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}
	return &document{url: pageURL, doc: doc}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(pageURL, rawHTML string) (Document, error) {
	return Parse(pageURL, strings.NewReader(rawHTML))
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(pageURL string, doc *goquery.Document) Document {
	return &document{url: pageURL, doc: doc}
}

func (d *document) URL() string { return d.url }

func (d *document) Body() (Node, bool) {
	sel := d.doc.Find("body")
	if sel.Length() == 0 {
		return nil, false
	}
	return element{sel.Nodes[0]}, true
}

func (d *document) QueryFirst(selector string) (Node, bool) {
	m := compile(selector)
	if m == nil {
		return nil, false
	}
	found := d.doc.FindMatcher(m)
	if found.Length() == 0 {
		return nil, false
	}
	return element{found.Nodes[0]}, true
}

func (d *document) QueryAll(selector string) []Node {
	m := compile(selector)
	if m == nil {
		return nil
	}
	found := d.doc.FindMatcher(m)
	nodes := make([]Node, 0, found.Length())
	for _, n := range found.Nodes {
		nodes = append(nodes, element{n})
	}
	return nodes
}

func (d *document) VisibleText() string {
	body, ok := d.Body()
	if !ok {
		return ""
	}
	return body.Text()
}

// selectors caches compiled selectors; a nil entry marks an invalid one.
var selectors sync.Map

func compile(selector string) cascadia.Selector {
	if cached, ok := selectors.Load(selector); ok {
		return cached.(cascadia.Selector)
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		slog.Warn("dom: invalid selector ignored", "selector", selector, "error", err)
		sel = nil
	}
	selectors.Store(selector, sel)
	return sel
}

// Valid reports whether selector compiles.
func Valid(selector string) bool {
	_, err := cascadia.Compile(selector)
	return err == nil
}

type element struct {
	n *html.Node
}

func (e element) Tag() string { return e.n.Data }

func (e element) Attr(name string) (string, bool) { return attr(e.n, name) }

func (e element) OwnText() []string {
	var parts []string
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			parts = append(parts, t)
		}
	}
	return parts
}

func (e element) Children() []Node {
	var children []Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			children = append(children, element{c})
		}
	}
	return children
}

func (e element) Text() string {
	var b strings.Builder
	writeVisible(&b, e.n)
	return normalizeLines(b.String())
}

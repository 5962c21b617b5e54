package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/second-look/pkg/dom"
)

var contentTags = map[string]bool{
	"a": true, "span": true, "img": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "li": true, "b": true, "i": true, "strong": true,
}

var summaryAttrs = []string{"alt", "title", "aria-label"}

// Summarize reduces the cart on doc to one pseudo-tag per line, e.g.
//
//	<img alt="USB-C cable"></img>
//	<span>Qty: 2</span>
//
// Without a known cart container it falls back to the start of the
// page's visible text.
func Summarize(doc dom.Document) string { return std.Summarize(doc) }

func (e *Extractor) Summarize(doc dom.Document) string {
	var container dom.Node
	for _, sel := range e.CartContainers {
		if n, ok := doc.QueryFirst(sel); ok {
			container = n
			break
		}
	}

	if container == nil {
		e.logger.Debug("extractor: no cart container, using visible text", "url", doc.URL())
		return truncateRunes(doc.VisibleText(), FallbackTextLen)
	}

	var lines []string
	walk(container, &lines)
	return TruncateAtTag(strings.Join(lines, "\n"), MaxSummaryLen)
}

// walk visits n and all of its descendants; a wrapper outside the
// allow-list still has its children visited.
func walk(n dom.Node, lines *[]string) {
	tag := n.Tag()
	if contentTags[tag] {
		if line, ok := summaryLine(tag, n); ok {
			*lines = append(*lines, line)
		}
	}
	for _, c := range n.Children() {
		walk(c, lines)
	}
}

func summaryLine(tag string, n dom.Node) (string, bool) {
	var attrs []string
	for _, name := range summaryAttrs {
		if v, ok := n.Attr(name); ok {
			attrs = append(attrs, fmt.Sprintf(`%s="%s"`, name, v))
		}
	}

	var parts []string
	for _, t := range n.OwnText() {
		if utf8.RuneCountInString(t) >= 3 {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")

	if len(attrs) == 0 && text == "" {
		return "", false
	}

	open := tag
	if len(attrs) > 0 {
		open += " " + strings.Join(attrs, " ")
	}
	return fmt.Sprintf("<%s>%s</%s>", open, text, tag), true
}

// TruncateAtTag cuts s to at most max characters, ending on the last '>'
// that fits. Strings already within max are returned unchanged.
func TruncateAtTag(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	for i := max - 1; i >= 0; i-- {
		if r[i] == '>' {
			return string(r[:i+1])
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/shopspring/decimal"
)

var (
	nonNumeric   = regexp.MustCompile(`[^0-9.]`)
	leadingFloat = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)`)
	currencyRe   = regexp.MustCompile(`[$£€₹]?\s*(\d{1,3}(,\d{3})*(\.\d+)?)`)
)

// ScrapeTotal returns the cart total on doc, or zero when it cannot be
// found. Zero means unknown, not free.
func ScrapeTotal(doc dom.Document) decimal.Decimal { return std.ScrapeTotal(doc) }

func (e *Extractor) ScrapeTotal(doc dom.Document) decimal.Decimal {
	for _, sel := range e.TotalSelectors {
		n, ok := doc.QueryFirst(sel)
		if !ok {
			continue
		}
		text := n.Text()
		if text == "" {
			continue
		}
		if price, ok := e.parseStripped(text); ok {
			e.logger.Debug("extractor: cart total", "total", price.String(), "selector", sel)
			return price
		}
	}

	for _, n := range doc.QueryAll(GenericTotalTags) {
		text := n.Text()
		if utf8.RuneCountInString(text) >= 50 || !strings.Contains(strings.ToLower(text), "total") {
			continue
		}
		m := currencyRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		price, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			e.logger.Debug("extractor: unparseable total", "text", text, "error", err)
			continue
		}
		if price.IsPositive() {
			e.logger.Debug("extractor: cart total from text", "total", price.String(), "text", text)
			return price
		}
	}

	e.logger.Debug("extractor: no cart total found", "url", doc.URL())
	return decimal.Zero
}

// parseStripped drops everything except digits and dots, then reads the
// leading number. "$1,234.56" gives 1234.56.
func (e *Extractor) parseStripped(text string) (decimal.Decimal, bool) {
	raw := leadingFloat.FindString(nonNumeric.ReplaceAllString(text, ""))
	if raw == "" {
		e.logger.Debug("extractor: no number in text", "text", text)
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(strings.TrimSuffix(raw, "."))
	if err != nil {
		e.logger.Debug("extractor: unparseable amount", "text", text, "error", err)
		return decimal.Zero, false
	}
	return price, price.IsPositive()
}

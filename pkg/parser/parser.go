// Package parser turns raw HTML into a page document plus its readable
// metadata.
package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/go-shiori/go-readability"
)

type Parser struct{}

// Parse builds the dom.Document used for detection and, best effort, the
// page title and site name. Readability failing is not fatal: checkout
// pages are rarely "articles".
func (p *Parser) Parse(req models.ParseRequest) (*models.Page, dom.Document, error) {
	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page url %q: %w", req.URL, err)
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(req.HTML))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := dom.FromGoquery(req.URL, gq)

	page := &models.Page{
		URL:   req.URL,
		Host:  strings.TrimPrefix(strings.ToLower(parsedURL.Hostname()), "www."),
		Title: normalizeText(gq.Find("title").First().Text()),
	}

	rp := readability.NewParser()
	article, err := rp.Parse(strings.NewReader(req.HTML), parsedURL)
	if err == nil {
		if t := normalizeText(article.Title); t != "" {
			page.Title = t
		}
		page.SiteName = normalizeText(article.SiteName)
	}
	if page.SiteName == "" {
		if v, ok := gq.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
			page.SiteName = normalizeText(v)
		}
	}

	return page, doc, nil
}

// normalizeText cleans up a string by trimming space and removing excess newlines.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

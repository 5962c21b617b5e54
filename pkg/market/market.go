// Package market knows which storefronts belong to a dominant company.
package market

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtnitsch/second-look/models"
	"gopkg.in/yaml.v3"
)

//go:embed companies.yaml
var companiesYAML []byte

// Company is a dominant player and what to suggest instead.
type Company struct {
	Name         string               `yaml:"name" json:"name"`
	Hosts        []string             `yaml:"hosts" json:"hosts"`
	Segment      string               `yaml:"segment" json:"segment"`
	MarketShare  float64              `yaml:"market_share" json:"market_share"`
	Message      string               `yaml:"message" json:"message"`
	Alternatives []models.Alternative `yaml:"alternatives" json:"alternatives"`
}

// Insight renders the company as a market insight for the sidebar.
func (c Company) Insight() models.MarketInsight {
	return models.MarketInsight{
		Company:      c.Name,
		MarketShare:  c.MarketShare,
		Message:      c.Message,
		Alternatives: c.Alternatives,
	}
}

// Directory maps hosts to companies.
type Directory struct {
	byHost map[string]*Company
}

// Load parses a companies document.
func Load(data []byte) (*Directory, error) {
	var doc struct {
		Companies []Company `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse companies: %w", err)
	}

	d := &Directory{byHost: make(map[string]*Company)}
	for i := range doc.Companies {
		c := &doc.Companies[i]
		for _, h := range c.Hosts {
			d.byHost[normalizeHost(h)] = c
		}
	}
	return d, nil
}

// Default is the embedded directory.
var Default = mustLoad(companiesYAML)

func mustLoad(data []byte) *Directory {
	d, err := Load(data)
	if err != nil {
		panic(err)
	}
	return d
}

// Lookup finds the company behind host. Subdomains match their parent, so
// "www.amazon.com" and "smile.amazon.com" both resolve.
func (d *Directory) Lookup(host string) (Company, bool) {
	h := normalizeHost(host)
	for h != "" {
		if c, ok := d.byHost[h]; ok {
			return *c, true
		}
		dot := strings.IndexByte(h, '.')
		if dot < 0 {
			break
		}
		h = h[dot+1:]
		if !strings.Contains(h, ".") {
			break
		}
	}
	return Company{}, false
}

// LookupURL is Lookup on the host of rawURL.
func (d *Directory) LookupURL(rawURL string) (Company, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Company{}, false
	}
	return d.Lookup(u.Hostname())
}

// Lookup uses the embedded directory.
func Lookup(host string) (Company, bool) { return Default.Lookup(host) }

// LookupURL uses the embedded directory.
func LookupURL(rawURL string) (Company, bool) { return Default.LookupURL(rawURL) }

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}

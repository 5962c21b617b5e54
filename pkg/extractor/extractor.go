// Package extractor pulls the cart summary, the cart total and the final
// purchase details out of a page.
package extractor

import (
	"log/slog"

	"github.com/dtnitsch/second-look/models"
)

// Defaults for the extraction heuristics. Order matters: the most
// site-specific selectors come first.
var (
	DefaultCartContainers = []string{
		"#sc-active-cart",     // Amazon main cart
		".sc-list-body",       // Amazon cart list
		"#cart-items",         // generic
		".cart-container",     // generic
		".checkout-main",      // Shopify checkout
		"#activeCartViewForm", // Amazon secondary
	}

	DefaultTotalSelectors = []string{
		".grand-total-price",
		"#sc-subtotal-amount-buybox",
		"#subtotals-marketplace-table span.grand-total-price",
		".payment-due__price",
		".order-total .amount",
		"[data-checkout-payment-due-target]",
	}

	// GenericTotalTags are scanned for "total" text when no selector hits.
	GenericTotalTags = "div, span, p, h1, h2, h3, h4, td, b, strong"

	PurchaseAmountSelectors = []string{".order-total", ".a-color-price", ".grand-total-price"}
	PurchaseItemSelectors   = []string{".a-list-item", ".product-name", ".item-description"}
)

const (
	// MaxSummaryLen bounds the semantic summary, in characters.
	MaxSummaryLen = 5000
	// FallbackTextLen is how much visible text stands in for a missing cart.
	FallbackTextLen = 2000
	// DefaultPurchaseDescription is used when no item name is found.
	DefaultPurchaseDescription = "Online purchase"
)

// Extractor holds the selector lists. The zero value is not usable; call New.
type Extractor struct {
	CartContainers []string
	TotalSelectors []string
	logger         *slog.Logger
}

// New builds an extractor from the defaults and any overrides in cfg.
func New(cfg models.DetectionConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		CartContainers: DefaultCartContainers,
		TotalSelectors: DefaultTotalSelectors,
		logger:         logger,
	}
	if len(cfg.CartContainers) > 0 {
		e.CartContainers = cfg.CartContainers
	}
	if len(cfg.TotalSelectors) > 0 {
		e.TotalSelectors = cfg.TotalSelectors
	}
	return e
}

var std = New(models.DetectionConfig{}, nil)

package detector

import (
	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
)

// Rules is the data behind classification.
type Rules struct {
	CheckoutURLKeywords     []string `yaml:"checkout_url_keywords" json:"checkout_url_keywords"`
	CheckoutSelectors       []string `yaml:"checkout_selectors" json:"checkout_selectors"`
	ConfirmationURLKeywords []string `yaml:"confirmation_url_keywords" json:"confirmation_url_keywords"`
	ConfirmationPhrases     []string `yaml:"confirmation_phrases" json:"confirmation_phrases"`
}

// DefaultRules covers Shopify, WooCommerce and Amazon storefronts.
func DefaultRules() Rules {
	return Rules{
		CheckoutURLKeywords: []string{"checkout", "cart", "buy", "pay", "payment", "gp/cart"},
		CheckoutSelectors: []string{
			`button[name="checkout"]`,       // Shopify
			`a[href*="checkout"]`,           // generic links
			`#checkout`,                     // generic id
			`.checkout-button`,              // generic class
			`form[action*="checkout"]`,      // cart forms
			`input[name="placeYourOrder1"]`, // Amazon place order
			`#sc-buy-box-ptc-button`,        // Amazon proceed to checkout
		},
		ConfirmationURLKeywords: []string{"thankyou", "thank-you", "confirmation", "order-placed"},
		ConfirmationPhrases:     []string{"Thank you", "Order placed"},
	}
}

// WithOverrides replaces each list that cfg sets.
func (r Rules) WithOverrides(cfg models.DetectionConfig) Rules {
	if len(cfg.CheckoutURLKeywords) > 0 {
		r.CheckoutURLKeywords = cfg.CheckoutURLKeywords
	}
	if len(cfg.CheckoutSelectors) > 0 {
		r.CheckoutSelectors = cfg.CheckoutSelectors
	}
	if len(cfg.ConfirmationURLKeywords) > 0 {
		r.ConfirmationURLKeywords = cfg.ConfirmationURLKeywords
	}
	if len(cfg.ConfirmationPhrases) > 0 {
		r.ConfirmationPhrases = cfg.ConfirmationPhrases
	}
	return r
}

// Invalid returns the checkout selectors that fail to compile.
func (r Rules) Invalid() []string {
	var bad []string
	for _, sel := range r.CheckoutSelectors {
		if !dom.Valid(sel) {
			bad = append(bad, sel)
		}
	}
	return bad
}

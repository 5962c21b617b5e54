// Package detector classifies a page as neutral, checkout or order
// confirmation from its URL and DOM.
package detector

import (
	"log/slog"
	"strings"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
)

// Signals records which independent signal fired, and on what.
type Signals struct {
	// Checkout signals
	CheckoutURL      bool   `json:"checkout_url" yaml:"checkout_url"`
	CheckoutKeyword  string `json:"checkout_keyword,omitempty" yaml:"checkout_keyword,omitempty"`
	CheckoutElement  bool   `json:"checkout_element" yaml:"checkout_element"`
	CheckoutSelector string `json:"checkout_selector,omitempty" yaml:"checkout_selector,omitempty"`

	// Confirmation signals
	ConfirmationURL     bool   `json:"confirmation_url" yaml:"confirmation_url"`
	ConfirmationKeyword string `json:"confirmation_keyword,omitempty" yaml:"confirmation_keyword,omitempty"`
	ConfirmationText    bool   `json:"confirmation_text" yaml:"confirmation_text"`
	ConfirmationPhrase  string `json:"confirmation_phrase,omitempty" yaml:"confirmation_phrase,omitempty"`
}

// Checkout reports whether any checkout signal fired.
func (s Signals) Checkout() bool { return s.CheckoutURL || s.CheckoutElement }

// Confirmation reports whether any confirmation signal fired.
func (s Signals) Confirmation() bool { return s.ConfirmationURL || s.ConfirmationText }

// State folds the signals into a page state. A confirmation signal wins over
// a checkout signal: confirmation pages routinely keep "cart" or "checkout"
// in their URL.
func (s Signals) State() models.PageState {
	switch {
	case s.Confirmation():
		return models.StateConfirmation
	case s.Checkout():
		return models.StateCheckout
	default:
		return models.StateNeutral
	}
}

// Detector evaluates a fixed rule set. It holds no per-page state and is
// safe for concurrent use.
type Detector struct {
	rules  Rules
	logger *slog.Logger
}

// New builds a detector. Selectors that do not compile are logged once here
// and then simply never match.
func New(rules Rules, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sel := range rules.Invalid() {
		logger.Warn("detector: invalid checkout selector", "selector", sel)
	}
	return &Detector{rules: rules, logger: logger}
}

// Rules returns the rule set in use.
func (d *Detector) Rules() Rules { return d.rules }

// Detect evaluates every signal against doc.
func (d *Detector) Detect(doc dom.Document) Signals {
	var s Signals
	pageURL := strings.ToLower(doc.URL())

	if kw, ok := containsAny(pageURL, d.rules.CheckoutURLKeywords); ok {
		s.CheckoutURL, s.CheckoutKeyword = true, kw
	}
	for _, sel := range d.rules.CheckoutSelectors {
		if _, ok := doc.QueryFirst(sel); ok {
			s.CheckoutElement, s.CheckoutSelector = true, sel
			break
		}
	}

	if kw, ok := containsAny(pageURL, d.rules.ConfirmationURLKeywords); ok {
		s.ConfirmationURL, s.ConfirmationKeyword = true, kw
	}
	if len(d.rules.ConfirmationPhrases) > 0 {
		// Phrases are matched case-sensitively; "thank you for visiting" in a
		// footer must not count.
		text := doc.VisibleText()
		for _, phrase := range d.rules.ConfirmationPhrases {
			if phrase != "" && strings.Contains(text, phrase) {
				s.ConfirmationText, s.ConfirmationPhrase = true, phrase
				break
			}
		}
	}

	d.logger.Debug("detector: signals",
		"url", doc.URL(),
		"checkout_url", s.CheckoutURL,
		"checkout_element", s.CheckoutElement,
		"confirmation_url", s.ConfirmationURL,
		"confirmation_text", s.ConfirmationText,
	)
	return s
}

// Classify returns the page state of doc.
func (d *Detector) Classify(doc dom.Document) models.PageState {
	return d.Detect(doc).State()
}

var defaultDetector = New(DefaultRules(), nil)

// Detect evaluates doc against the default rules.
func Detect(doc dom.Document) Signals { return defaultDetector.Detect(doc) }

// Classify classifies doc against the default rules.
func Classify(doc dom.Document) models.PageState { return defaultDetector.Classify(doc) }

// containsAny returns the first keyword found in s. Keywords are lower-cased
// before comparison; s must already be lower case.
func containsAny(s string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(s, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

package models

import "github.com/shopspring/decimal"

// AnalyzeRequest is the payload sent to the text-generation service.
type AnalyzeRequest struct {
	SemanticHTML  string           `json:"semanticHtml"`
	PastPurchases []PurchaseRecord `json:"pastPurchases"`
	CartTotal     decimal.Decimal  `json:"cartTotal,omitempty"`
	Language      string           `json:"language,omitempty"`
	Company       string           `json:"company,omitempty"`
}

// DuplicateMatch pairs a cart item with a similar past purchase.
type DuplicateMatch struct {
	CartItem     string `json:"cart_item" yaml:"cart_item"`
	HistoryItem  string `json:"history_item" yaml:"history_item"`
	Category     string `json:"category" yaml:"category"`
	PurchaseDate string `json:"purchase_date" yaml:"purchase_date"`
}

// Alternative is a smaller competitor worth a look.
type Alternative struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// MarketInsight describes how dominant the seller of a cart item is.
type MarketInsight struct {
	Company      string        `json:"company" yaml:"company"`
	MarketShare  float64       `json:"market_share,omitempty" yaml:"market_share,omitempty"`
	Message      string        `json:"message,omitempty" yaml:"message,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Analysis is the parsed model output. The zero value means "nothing found".
type Analysis struct {
	Duplicates     []DuplicateMatch `json:"duplicates" yaml:"duplicates"`
	MarketInsights []MarketInsight  `json:"market_insights" yaml:"market_insights"`
}

// Empty reports whether the analysis has nothing to show.
func (a Analysis) Empty() bool {
	return len(a.Duplicates) == 0 && len(a.MarketInsights) == 0
}

package models

import "github.com/shopspring/decimal"

// Action names accepted by the background API.
const (
	ActionGetBankData    = "getNessieData"
	ActionAnalyzeCart    = "askGemini"
	ActionRecordPurchase = "recordPurchase"
)

// ActionRequest is a message from the extension front end.
type ActionRequest struct {
	Action        string           `json:"action"`
	SemanticHTML  string           `json:"semanticHtml,omitempty"`
	PastPurchases []PurchaseRecord `json:"pastPurchases,omitempty"`
	CartTotal     decimal.Decimal  `json:"cartTotal,omitempty"`
	Amount        decimal.Decimal  `json:"amount,omitempty"`
	Description   string           `json:"description,omitempty"`
}

// ActionResponse mirrors the {success, data} / {success: false, error} shape.
type ActionResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewActionResponse wraps data in a successful response.
func NewActionResponse(data interface{}) ActionResponse {
	return ActionResponse{Success: true, Data: data}
}

// NewActionError wraps err in a failed response.
func NewActionError(err error) ActionResponse {
	return ActionResponse{Success: false, Error: err.Error()}
}

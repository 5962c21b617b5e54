package ai

import (
	"fmt"
	"strings"

	"github.com/dtnitsch/second-look/models"
)

const responseSchema = `{
  "duplicates": [
    {"cart_item": "string", "history_item": "string", "category": "string", "purchase_date": "YYYY-MM-DD"}
  ],
  "market_insights": [
    {"company": "string", "market_share": 0.0, "message": "string",
     "alternatives": [{"name": "string", "reason": "string", "url": "string"}]}
  ]
}`

// maxHistory bounds how many past purchases go into the prompt.
const maxHistory = 50

// BuildPrompt renders the single-shot prompt: identify the cart items,
// match them against past purchases, and comment on market dominance.
func BuildPrompt(req models.AnalyzeRequest) string {
	var b strings.Builder

	b.WriteString("You are a shopping assistant that helps people avoid buying things twice.\n")
	b.WriteString("Below is a compact outline of an online shopping cart followed by the user's recent purchases.\n\n")
	b.WriteString("Tasks:\n")
	b.WriteString("1. Identify the products in the cart.\n")
	b.WriteString("2. For each cart product, find past purchases in the same category or of the same kind. Only report real overlaps.\n")
	b.WriteString("3. If the seller or brand dominates its market, add a market insight with up to three smaller alternatives.\n\n")

	if req.Company != "" {
		fmt.Fprintf(&b, "The store belongs to %s.\n", req.Company)
	}
	if req.CartTotal.IsPositive() {
		fmt.Fprintf(&b, "The cart total is $%s.\n", req.CartTotal.StringFixed(2))
	}
	if req.Language != "" && req.Language != "en" {
		fmt.Fprintf(&b, "The page is written in language %q; keep item names as they appear.\n", req.Language)
	}

	b.WriteString("\nCART:\n")
	b.WriteString(req.SemanticHTML)
	b.WriteString("\n\nPAST PURCHASES:\n")

	history := req.PastPurchases
	if len(history) > maxHistory {
		history = history[:maxHistory]
	}
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range history {
		fmt.Fprintf(&b, "- %s | $%s | %s\n", p.Description, p.Amount.StringFixed(2), p.Date)
	}

	b.WriteString("\nRespond with JSON only, no markdown, exactly in this shape (empty arrays when nothing applies):\n")
	b.WriteString(responseSchema)
	b.WriteString("\n")
	return b.String()
}

package extractor

import (
	"strings"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/shopspring/decimal"
)

// FinalPurchase reads what was bought from an order confirmation page.
func FinalPurchase(doc dom.Document) models.PurchaseInfo { return std.FinalPurchase(doc) }

func (e *Extractor) FinalPurchase(doc dom.Document) models.PurchaseInfo {
	info := models.PurchaseInfo{
		Amount:      decimal.Zero,
		Description: DefaultPurchaseDescription,
	}

	for _, sel := range PurchaseAmountSelectors {
		n, ok := doc.QueryFirst(sel)
		if !ok {
			continue
		}
		if price, ok := e.parseStripped(n.Text()); ok {
			info.Amount = price
			break
		}
	}

	for _, sel := range PurchaseItemSelectors {
		n, ok := doc.QueryFirst(sel)
		if !ok {
			continue
		}
		text := strings.TrimSpace(n.Text())
		if len([]rune(text)) <= 5 {
			continue
		}
		line, _, _ := strings.Cut(text, "\n")
		info.Description = truncateRunes(strings.TrimSpace(line), 100)
		break
	}

	return info
}

package bank

import (
	"sort"

	"github.com/dtnitsch/second-look/models"
)

// SortNewest orders purchases by date, newest first. Purchases without a
// date go last; ties keep their original order.
func SortNewest(purchases []models.PurchaseRecord) {
	sort.SliceStable(purchases, func(i, j int) bool {
		a, b := purchases[i].Date.Time, purchases[j].Date.Time
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

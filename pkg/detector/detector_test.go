package detector

import (
	"testing"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/dom"
)

func page(t *testing.T, pageURL, body string) dom.Document {
	t.Helper()
	doc, err := dom.ParseString(pageURL, "<html><body>"+body+"</body></html>")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return doc
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want models.PageState
	}{
		{"amazon cart url", "https://shop.example.com/gp/cart/view", "<p>Your items</p>", models.StateCheckout},
		{"checkout keyword", "https://store.example.com/checkout", "", models.StateCheckout},
		{"upper case url", "https://store.example.com/CART", "", models.StateCheckout},
		{"payment keyword", "https://store.example.com/Payment/step2", "", models.StateCheckout},
		{"shopify checkout button", "https://store.example.com/products/1", `<button name="checkout">Check out</button>`, models.StateCheckout},
		{"amazon proceed button", "https://www.example.com/x", `<input id="sc-buy-box-ptc-button" type="submit">`, models.StateCheckout},
		{"checkout form", "https://www.example.com/x", `<form action="/checkout/start"></form>`, models.StateCheckout},
		{"order placed text", "https://www.example.com/orders/123", `<h1>Order placed</h1><p>Arriving Tuesday</p>`, models.StateConfirmation},
		{"thank you text", "https://www.example.com/done", `<div>Thank you for your order!</div>`, models.StateConfirmation},
		{"thank-you url", "https://www.example.com/thank-you", "", models.StateConfirmation},
		{"confirmation wins over checkout", "https://www.example.com/checkout/thankyou", "", models.StateConfirmation},
		{"phrase is case sensitive", "https://www.example.com/about", `<p>thank you for visiting</p>`, models.StateNeutral},
		{"phrase inside script ignored", "https://www.example.com/about", `<script>var s = "Order placed";</script>`, models.StateNeutral},
		{"neutral", "https://www.example.com/products/42", `<h1>Widget</h1>`, models.StateNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(page(t, tt.url, tt.body))
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetect_ReportsMatches(t *testing.T) {
	s := Detect(page(t, "https://shop.example.com/gp/cart/view", `<a href="/checkout">Go</a>`))

	if !s.CheckoutURL || s.CheckoutKeyword != "cart" {
		t.Errorf("CheckoutURL = %v (%q), want true (cart)", s.CheckoutURL, s.CheckoutKeyword)
	}
	if !s.CheckoutElement || s.CheckoutSelector != `a[href*="checkout"]` {
		t.Errorf("CheckoutElement = %v (%q)", s.CheckoutElement, s.CheckoutSelector)
	}
	if s.Confirmation() {
		t.Error("Confirmation() = true, want false")
	}
}

func TestWithOverrides(t *testing.T) {
	rules := DefaultRules().WithOverrides(models.DetectionConfig{
		CheckoutURLKeywords: []string{"basket"},
	})
	d := New(rules, nil)

	if got := d.Classify(page(t, "https://shop.example.com/basket", "")); got != models.StateCheckout {
		t.Errorf("basket = %v, want checkout", got)
	}
	if got := d.Classify(page(t, "https://shop.example.com/cart", "")); got != models.StateNeutral {
		t.Errorf("cart after override = %v, want neutral", got)
	}
	if len(d.Rules().CheckoutSelectors) != len(DefaultRules().CheckoutSelectors) {
		t.Error("unset override list replaced the default selectors")
	}
}

func TestInvalidSelectorNeverMatches(t *testing.T) {
	rules := Rules{CheckoutSelectors: []string{"button[[", "#go"}}
	if bad := rules.Invalid(); len(bad) != 1 || bad[0] != "button[[" {
		t.Fatalf("Invalid() = %v", bad)
	}

	d := New(rules, nil)
	if got := d.Classify(page(t, "https://x.example.com/", `<button id="go"></button>`)); got != models.StateCheckout {
		t.Errorf("Classify() = %v, want checkout via #go", got)
	}
}

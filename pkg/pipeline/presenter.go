package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dtnitsch/second-look/models"
	"github.com/shopspring/decimal"
)

// ErrNoElement is returned by a Presenter when the element it would update
// is no longer on the page. The pipeline treats it as a silent no-op.
var ErrNoElement = errors.New("pipeline: ui element missing")

// Messages shown to the user.
const (
	LoadingMessage  = "Analyzing cart structure... 🔍"
	AllClearMessage = "All clear! No similar previous purchases found."
	SyncedMessage   = "✅ Second Look: Purchase synced to your bank!"
)

// Presenter renders pipeline progress. Implementations must not block for
// long; each call is made from the task that owns the page.
type Presenter interface {
	ShowLoading(ctx context.Context, cartTotal decimal.Decimal) error
	UpdateBudget(ctx context.Context, message string) error
	ShowAnalysis(ctx context.Context, analysis models.Analysis) error
	Toast(ctx context.Context, message string) error
}

// TextPresenter writes plain-text progress lines, for headless runs.
type TextPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextPresenter(w io.Writer) *TextPresenter {
	return &TextPresenter{w: w}
}

func (p *TextPresenter) printf(format string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, format, args...)
	return err
}

func (p *TextPresenter) ShowLoading(_ context.Context, cartTotal decimal.Decimal) error {
	return p.printf("SECOND LOOK  cart total $%s\n  %s\n", cartTotal.StringFixed(2), LoadingMessage)
}

func (p *TextPresenter) UpdateBudget(_ context.Context, message string) error {
	return p.printf("  💳 %s\n", message)
}

func (p *TextPresenter) ShowAnalysis(_ context.Context, a models.Analysis) error {
	var b strings.Builder
	if len(a.Duplicates) == 0 {
		fmt.Fprintf(&b, "  🔄 %s\n", AllClearMessage)
	} else {
		b.WriteString("  🔄 Wait! You own a similar item already:\n")
		for _, d := range a.Duplicates {
			fmt.Fprintf(&b, "     🛒 %s  matched %q  [%s] %s\n",
				Shorten(d.CartItem, 65), Shorten(d.HistoryItem, 50), d.Category, d.PurchaseDate)
		}
	}
	for _, m := range a.MarketInsights {
		fmt.Fprintf(&b, "  🏢 %s: %s\n", m.Company, m.Message)
		for _, alt := range m.Alternatives {
			fmt.Fprintf(&b, "     ↳ %s (%s)\n", alt.Name, alt.Reason)
		}
	}
	return p.printf("%s", b.String())
}

func (p *TextPresenter) Toast(_ context.Context, message string) error {
	return p.printf("%s\n", message)
}

// Shorten cuts s to max runes, ending in "..." when cut.
func Shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// nopPresenter discards everything.
type nopPresenter struct{}

func (nopPresenter) ShowLoading(context.Context, decimal.Decimal) error  { return nil }
func (nopPresenter) UpdateBudget(context.Context, string) error          { return nil }
func (nopPresenter) ShowAnalysis(context.Context, models.Analysis) error { return nil }
func (nopPresenter) Toast(context.Context, string) error                 { return nil }

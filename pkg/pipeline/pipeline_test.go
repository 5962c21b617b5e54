package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dtnitsch/second-look/pkg/budget"
	"github.com/dtnitsch/second-look/pkg/db"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/shopspring/decimal"
)

const cartPage = `<html><body>
	<div id="sc-active-cart">
		<h1>Shopping Cart</h1>
		<ul><li><span class="a-truncate">Wireless Noise Cancelling Headphones</span></li></ul>
	</div>
	<span class="grand-total-price">$42.50</span>
</body></html>`

const confirmationPage = `<html><body>
	<h1>Order placed, thanks!</h1>
	<div class="product-name">Wireless Noise Cancelling Headphones</div>
	<div class="order-total">Order total: $19.99</div>
</body></html>`

type fakeBank struct {
	mu       sync.Mutex
	data     models.BankData
	fetchErr error
	recorded []models.PurchaseInfo
}

func (b *fakeBank) FetchData(context.Context) (models.BankData, error) {
	if b.fetchErr != nil {
		return models.BankData{}, b.fetchErr
	}
	return b.data, nil
}

func (b *fakeBank) RecordPurchase(_ context.Context, info models.PurchaseInfo) error {
	if !info.Amount.IsPositive() {
		return bank.ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorded = append(b.recorded, info)
	return nil
}

type fakeAnalyzer struct {
	analysis models.Analysis
	err      error
	got      []models.AnalyzeRequest
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	a.got = append(a.got, req)
	return a.analysis, a.err
}

type recordingPresenter struct {
	mu      sync.Mutex
	calls   []string
	budget  string
	missing bool
}

func (r *recordingPresenter) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if r.missing {
		return ErrNoElement
	}
	return nil
}

func (r *recordingPresenter) ShowLoading(context.Context, decimal.Decimal) error {
	return r.record("loading")
}

func (r *recordingPresenter) UpdateBudget(_ context.Context, msg string) error {
	r.mu.Lock()
	r.budget = msg
	r.mu.Unlock()
	return r.record("budget")
}

func (r *recordingPresenter) ShowAnalysis(context.Context, models.Analysis) error {
	return r.record("analysis")
}

func (r *recordingPresenter) Toast(context.Context, string) error {
	return r.record("toast")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustDoc(t *testing.T, pageURL, rawHTML string) dom.Document {
	t.Helper()
	doc, err := dom.ParseString(pageURL, rawHTML)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return doc
}

func newTestPipeline(t *testing.T, b Bank, a Analyzer, pr Presenter) (*Pipeline, *db.DB) {
	t.Helper()
	store := setupTestDB(t)
	return New(Deps{Bank: b, Analyzer: a, Store: store, Presenter: pr, Logger: testLogger()}), store
}

func TestRunCheckout(t *testing.T) {
	fb := &fakeBank{data: models.BankData{
		Balance:   decimal.NewFromInt(100),
		Purchases: []models.PurchaseRecord{{Description: "Headphones", Amount: decimal.NewFromInt(30)}},
	}}
	fa := &fakeAnalyzer{analysis: models.Analysis{
		Duplicates: []models.DuplicateMatch{{CartItem: "Wireless Headphones", HistoryItem: "Headphones", Category: "audio"}},
	}}
	pr := &recordingPresenter{}
	p, store := newTestPipeline(t, fb, fa, pr)

	rec, err := p.RunCheckout(context.Background(), mustDoc(t, "https://www.amazon.com/gp/cart/view.html", cartPage))
	if err != nil {
		t.Fatalf("RunCheckout() error = %v", err)
	}

	if rec.Status != db.StatusOK {
		t.Errorf("Status = %q, want ok", rec.Status)
	}
	if !rec.CartTotal.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("CartTotal = %s, want 42.50", rec.CartTotal)
	}
	if want := budget.Guard(rec.CartTotal, decimal.NewFromInt(100)); rec.BudgetMessage != want || pr.budget != want {
		t.Errorf("budget message = %q (shown %q), want %q", rec.BudgetMessage, pr.budget, want)
	}
	if got := strings.Join(pr.calls, ","); got != "loading,budget,analysis" {
		t.Errorf("presenter calls = %s", got)
	}
	if rec.Company != "Amazon" || rec.Host != "amazon.com" {
		t.Errorf("Company/Host = %q/%q", rec.Company, rec.Host)
	}
	if len(rec.Analysis.MarketInsights) == 0 || rec.Analysis.MarketInsights[0].Company != "Amazon" {
		t.Errorf("MarketInsights = %+v, want Amazon first", rec.Analysis.MarketInsights)
	}
	if len(fa.got) != 1 || len(fa.got[0].PastPurchases) != 1 || !strings.Contains(fa.got[0].SemanticHTML, "Headphones") {
		t.Errorf("analyzer request = %+v", fa.got)
	}

	saved, err := store.GetAnalysis(rec.ID)
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if len(saved.Analysis.Duplicates) != 1 {
		t.Errorf("saved duplicates = %d, want 1", len(saved.Analysis.Duplicates))
	}
}

func TestRunCheckout_BankDown(t *testing.T) {
	fb := &fakeBank{fetchErr: bank.ErrAccountUnavailable}
	fa := &fakeAnalyzer{}
	pr := &recordingPresenter{}
	p, _ := newTestPipeline(t, fb, fa, pr)

	rec, err := p.RunCheckout(context.Background(), mustDoc(t, "https://shop.example.com/cart", cartPage))
	if !errors.Is(err, bank.ErrAccountUnavailable) {
		t.Fatalf("RunCheckout() error = %v, want ErrAccountUnavailable", err)
	}
	if rec.Status != db.StatusBankUnavailable {
		t.Errorf("Status = %q", rec.Status)
	}
	if rec.BudgetMessage != budget.ConnectivityMessage {
		t.Errorf("BudgetMessage = %q", rec.BudgetMessage)
	}
	// The analysis still runs, with an empty history.
	if len(fa.got) != 1 || fa.got[0].PastPurchases == nil || len(fa.got[0].PastPurchases) != 0 {
		t.Errorf("analyzer request = %+v", fa.got)
	}
	if got := strings.Join(pr.calls, ","); got != "loading,budget,analysis" {
		t.Errorf("presenter calls = %s", got)
	}
}

func TestRunCheckout_UsesSavedPlan(t *testing.T) {
	fb := &fakeBank{data: models.BankData{Balance: decimal.NewFromInt(10)}}
	p, store := newTestPipeline(t, fb, &fakeAnalyzer{}, nil)

	plan := budget.Plan{Salary: decimal.NewFromInt(3000), Rent: decimal.NewFromInt(1000)}
	if err := store.SaveBudget(plan); err != nil {
		t.Fatalf("SaveBudget() error = %v", err)
	}

	rec, err := p.RunCheckout(context.Background(), mustDoc(t, "https://shop.example.com/cart", cartPage))
	if err != nil {
		t.Fatalf("RunCheckout() error = %v", err)
	}
	if want := budget.Burn(rec.CartTotal, plan.MonthlyBudget()); rec.BudgetMessage != want {
		t.Errorf("BudgetMessage = %q, want %q", rec.BudgetMessage, want)
	}
}

func TestRunCheckout_AnalyzerFailureStillRenders(t *testing.T) {
	fb := &fakeBank{data: models.BankData{Balance: decimal.NewFromInt(500)}}
	fa := &fakeAnalyzer{err: errors.New("quota exhausted")}
	pr := &recordingPresenter{}
	p, _ := newTestPipeline(t, fb, fa, pr)

	rec, err := p.RunCheckout(context.Background(), mustDoc(t, "https://shop.example.com/cart", cartPage))
	if err == nil {
		t.Fatal("RunCheckout() error = nil, want analyzer error")
	}
	if rec.Status != db.StatusAIFailed {
		t.Errorf("Status = %q, want %q", rec.Status, db.StatusAIFailed)
	}
	if !rec.Analysis.Empty() {
		t.Errorf("Analysis = %+v, want empty", rec.Analysis)
	}
	if got := strings.Join(pr.calls, ","); got != "loading,budget,analysis" {
		t.Errorf("presenter calls = %s", got)
	}
}

func TestRunCheckout_MissingElementIsSilent(t *testing.T) {
	fb := &fakeBank{data: models.BankData{Balance: decimal.NewFromInt(500)}}
	pr := &recordingPresenter{missing: true}
	var logs bytes.Buffer
	p := New(Deps{Bank: fb, Analyzer: &fakeAnalyzer{}, Presenter: pr,
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))})

	rec, err := p.RunCheckout(context.Background(), mustDoc(t, "https://shop.example.com/cart", cartPage))
	if err != nil {
		t.Fatalf("RunCheckout() error = %v", err)
	}
	if rec.Status != db.StatusOK {
		t.Errorf("Status = %q", rec.Status)
	}
	if strings.Contains(logs.String(), "presenter failed") {
		t.Errorf("missing element was logged as a failure: %s", logs.String())
	}
}

func TestRunCheckout_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr := &recordingPresenter{}
	p, store := newTestPipeline(t, &fakeBank{}, &fakeAnalyzer{}, pr)

	rec, err := p.RunCheckout(ctx, mustDoc(t, "https://shop.example.com/cart", cartPage))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunCheckout() error = %v, want context.Canceled", err)
	}
	if rec.Status != db.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", rec.Status)
	}
	if len(pr.calls) != 0 {
		t.Errorf("presenter called after cancel: %v", pr.calls)
	}
	if _, err := store.GetAnalysis(rec.ID); err != nil {
		t.Errorf("cancelled analysis not persisted: %v", err)
	}
}

func TestRunConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		html       string
		wantStatus string
		wantDesc   string
		wantToast  bool
	}{
		{
			name:       "known company",
			url:        "https://www.amazon.com/gp/buy/thankyou",
			html:       confirmationPage,
			wantStatus: db.SyncSynced,
			wantDesc:   "Amazon: Wireless Noise Cancelling Headphones",
			wantToast:  true,
		},
		{
			name:       "unknown store uses host",
			url:        "https://shop.example.com/order-confirmation",
			html:       confirmationPage,
			wantStatus: db.SyncSynced,
			wantDesc:   "shop.example.com: Wireless Noise Cancelling Headphones",
			wantToast:  true,
		},
		{
			name:       "no amount is skipped",
			url:        "https://shop.example.com/order-confirmation",
			html:       `<body><h1>Thank you for your order</h1></body>`,
			wantStatus: db.SyncSkipped,
			wantDesc:   "shop.example.com: Online purchase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBank{}
			pr := &recordingPresenter{}
			p, store := newTestPipeline(t, fb, nil, pr)

			rec, err := p.RunConfirmation(context.Background(), mustDoc(t, tt.url, tt.html))
			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (err %v)", rec.Status, tt.wantStatus, err)
			}
			if rec.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", rec.Description, tt.wantDesc)
			}
			if toasted := len(pr.calls) == 1 && pr.calls[0] == "toast"; toasted != tt.wantToast {
				t.Errorf("presenter calls = %v, want toast %v", pr.calls, tt.wantToast)
			}
			if tt.wantStatus == db.SyncSynced {
				if err != nil {
					t.Errorf("RunConfirmation() error = %v", err)
				}
				if len(fb.recorded) != 1 || !fb.recorded[0].Amount.Equal(decimal.RequireFromString("19.99")) {
					t.Errorf("recorded = %+v", fb.recorded)
				}
			}

			syncs, err := store.ListSyncs(10)
			if err != nil {
				t.Fatalf("ListSyncs() error = %v", err)
			}
			if len(syncs) != 1 || syncs[0].Status != tt.wantStatus {
				t.Errorf("persisted syncs = %+v", syncs)
			}
		})
	}
}

func TestRunConfirmation_NoBank(t *testing.T) {
	p := New(Deps{Logger: testLogger()})

	rec, err := p.RunConfirmation(context.Background(), mustDoc(t, "https://shop.example.com/thanks", confirmationPage))
	if !errors.Is(err, bank.ErrNotConfigured) {
		t.Errorf("RunConfirmation() error = %v, want ErrNotConfigured", err)
	}
	if rec.Status != db.SyncFailed {
		t.Errorf("Status = %q, want failed", rec.Status)
	}
}

func TestInspect(t *testing.T) {
	p := New(Deps{Logger: testLogger()})

	checkout := p.Inspect(mustDoc(t, "https://www.amazon.com/gp/cart/view.html", cartPage))
	if checkout.State != models.StateCheckout {
		t.Errorf("State = %v, want checkout", checkout.State)
	}
	if !checkout.CartTotal.Equal(decimal.RequireFromString("42.50")) || checkout.Company != "Amazon" {
		t.Errorf("Inspect() = %+v", checkout)
	}
	if checkout.Purchase != nil {
		t.Error("Purchase set on a checkout page")
	}

	confirmed := p.Inspect(mustDoc(t, "https://shop.example.com/thanks", confirmationPage))
	if confirmed.State != models.StateConfirmation {
		t.Errorf("State = %v, want confirmation", confirmed.State)
	}
	if confirmed.Purchase == nil || !confirmed.Purchase.Amount.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("Purchase = %+v", confirmed.Purchase)
	}
}

func TestTextPresenter(t *testing.T) {
	var out bytes.Buffer
	pr := NewTextPresenter(&out)
	ctx := context.Background()

	_ = pr.ShowLoading(ctx, decimal.RequireFromString("42.5"))
	_ = pr.ShowAnalysis(ctx, models.Analysis{})
	_ = pr.ShowAnalysis(ctx, models.Analysis{Duplicates: []models.DuplicateMatch{{
		CartItem: strings.Repeat("x", 80), HistoryItem: "Old headphones", Category: "audio",
	}}})

	got := out.String()
	for _, want := range []string{"$42.50", LoadingMessage, AllClearMessage, strings.Repeat("x", 62) + "...", `"Old headphones"`} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Shorten(tt.in, tt.max); got != tt.want {
			t.Errorf("Shorten(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

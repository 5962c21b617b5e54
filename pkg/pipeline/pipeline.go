// Package pipeline runs the work behind the two page events: analysing a
// checkout page and syncing a confirmed purchase to the bank.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/analytics"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dtnitsch/second-look/pkg/budget"
	"github.com/dtnitsch/second-look/pkg/db"
	"github.com/dtnitsch/second-look/pkg/detector"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/dtnitsch/second-look/pkg/extractor"
	"github.com/dtnitsch/second-look/pkg/market"
	"github.com/shopspring/decimal"
)

// TopKeywords is how many cart keywords are recorded per analysis.
const TopKeywords = 10

// Bank is the subset of bank.Client the pipeline uses.
type Bank interface {
	FetchData(ctx context.Context) (models.BankData, error)
	RecordPurchase(ctx context.Context, info models.PurchaseInfo) error
}

// Analyzer is the subset of ai.Client the pipeline uses.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error)
}

// Store persists pipeline results. *db.DB implements it.
type Store interface {
	InsertAnalysis(rec *db.AnalysisRecord) error
	InsertSync(rec *db.SyncRecord) error
	GetBudget() (budget.Plan, bool, error)
}

// Deps wires a Pipeline. Only Detector and Extractor are required; a nil
// Bank or Analyzer behaves as an unreachable service, a nil Store skips
// persistence and a nil Presenter shows nothing.
type Deps struct {
	Detector  *detector.Detector
	Extractor *extractor.Extractor
	Bank      Bank
	Analyzer  Analyzer
	Store     Store
	Presenter Presenter
	Market    *market.Directory
	Logger    *slog.Logger
	SessionID int64
}

// Pipeline implements watcher.Handler.
type Pipeline struct {
	detector  *detector.Detector
	extractor *extractor.Extractor
	bank      Bank
	analyzer  Analyzer
	store     Store
	presenter Presenter
	market    *market.Directory
	analytics *analytics.Analytics
	logger    *slog.Logger
	sessionID int64
}

func New(d Deps) *Pipeline {
	p := &Pipeline{
		detector:  d.Detector,
		extractor: d.Extractor,
		bank:      d.Bank,
		analyzer:  d.Analyzer,
		store:     d.Store,
		presenter: d.Presenter,
		market:    d.Market,
		analytics: &analytics.Analytics{},
		logger:    d.Logger,
		sessionID: d.SessionID,
	}
	if p.detector == nil {
		p.detector = detector.New(detector.DefaultRules(), d.Logger)
	}
	if p.extractor == nil {
		p.extractor = extractor.New(models.DetectionConfig{}, d.Logger)
	}
	if p.presenter == nil {
		p.presenter = nopPresenter{}
	}
	if p.market == nil {
		p.market = market.Default
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Classify lets the pipeline stand in as the watcher's classifier.
func (p *Pipeline) Classify(doc dom.Document) models.PageState {
	return p.detector.Classify(doc)
}

// OnCheckout runs the checkout analysis. Failures are logged; the user has
// already seen whatever partial result was rendered.
func (p *Pipeline) OnCheckout(ctx context.Context, doc dom.Document) {
	rec, err := p.RunCheckout(ctx, doc)
	if err != nil {
		p.logger.Warn("pipeline: checkout analysis incomplete", "url", doc.URL(), "status", rec.Status, "error", err)
		return
	}
	p.logger.Info("pipeline: checkout analysed", "url", doc.URL(), "total", rec.CartTotal.StringFixed(2),
		"duplicates", len(rec.Analysis.Duplicates), "insights", len(rec.Analysis.MarketInsights))
}

// OnConfirmation syncs the confirmed purchase to the bank.
func (p *Pipeline) OnConfirmation(ctx context.Context, doc dom.Document) {
	rec, err := p.RunConfirmation(ctx, doc)
	if err != nil {
		p.logger.Warn("pipeline: purchase not synced", "url", doc.URL(), "status", rec.Status, "error", err)
		return
	}
	p.logger.Info("pipeline: purchase synced", "url", doc.URL(), "amount", rec.Amount.StringFixed(2), "description", rec.Description)
}

// RunCheckout is OnCheckout returning its record. The record is always
// non-nil and has been persisted when a store is configured. The returned
// error is the first collaborator failure, if any.
func (p *Pipeline) RunCheckout(ctx context.Context, doc dom.Document) (*db.AnalysisRecord, error) {
	rec := &db.AnalysisRecord{
		SessionID:    p.sessionID,
		URL:          doc.URL(),
		Host:         hostOf(doc.URL()),
		CartTotal:    p.extractor.ScrapeTotal(doc),
		SemanticText: p.extractor.Summarize(doc),
		Status:       db.StatusOK,
	}
	defer p.saveAnalysis(ctx, rec)

	p.present(ctx, "loading", func() error { return p.presenter.ShowLoading(ctx, rec.CartTotal) })

	var firstErr error
	fail := func(status string, err error) {
		if firstErr == nil {
			firstErr = err
			rec.Status, rec.Error = status, err.Error()
		}
	}

	data, err := p.fetchBank(ctx)
	if err != nil {
		fail(db.StatusBankUnavailable, err)
		rec.BudgetMessage = budget.ConnectivityMessage
	} else {
		rec.BudgetMessage = budget.Message(rec.CartTotal, data.Balance, p.plan())
	}
	p.present(ctx, "budget", func() error { return p.presenter.UpdateBudget(ctx, rec.BudgetMessage) })

	text := doc.VisibleText()
	rec.Language, _ = p.analytics.Language(rec.SemanticText)
	rec.Keywords = p.analytics.TopNWords(text, TopKeywords)

	company, known := p.market.LookupURL(doc.URL())
	if known {
		rec.Company = company.Name
	}

	analysis, err := p.analyze(ctx, models.AnalyzeRequest{
		SemanticHTML:  rec.SemanticText,
		PastPurchases: data.Purchases,
		CartTotal:     rec.CartTotal,
		Language:      rec.Language,
		Company:       rec.Company,
	})
	if err != nil {
		fail(db.StatusAIFailed, err)
	}
	if known {
		analysis = withInsight(analysis, company)
	}
	rec.Analysis = analysis

	p.present(ctx, "analysis", func() error { return p.presenter.ShowAnalysis(ctx, analysis) })

	if ctx.Err() != nil {
		rec.Status = db.StatusCancelled
		if firstErr == nil {
			firstErr = ctx.Err()
			rec.Error = firstErr.Error()
		}
	}
	return rec, firstErr
}

// RunConfirmation is OnConfirmation returning its record.
func (p *Pipeline) RunConfirmation(ctx context.Context, doc dom.Document) (*db.SyncRecord, error) {
	info := p.extractor.FinalPurchase(doc)
	if prefix := p.merchantLabel(doc.URL()); prefix != "" {
		info.Description = prefix + ": " + info.Description
	}

	rec := &db.SyncRecord{
		SessionID:   p.sessionID,
		URL:         doc.URL(),
		Amount:      info.Amount,
		Description: info.Description,
		Status:      db.SyncSynced,
	}
	defer p.saveSync(rec)

	if p.bank == nil {
		rec.Status, rec.Error = db.SyncFailed, bank.ErrNotConfigured.Error()
		return rec, bank.ErrNotConfigured
	}

	if err := p.bank.RecordPurchase(ctx, info); err != nil {
		rec.Status, rec.Error = db.SyncFailed, err.Error()
		if errors.Is(err, bank.ErrInvalidAmount) {
			rec.Status = db.SyncSkipped
		}
		return rec, err
	}

	p.present(ctx, "toast", func() error { return p.presenter.Toast(ctx, SyncedMessage) })
	return rec, nil
}

// Inspection is a side-effect-free look at a page.
type Inspection struct {
	URL       string               `json:"url" yaml:"url"`
	State     models.PageState     `json:"state" yaml:"state"`
	Signals   detector.Signals     `json:"signals" yaml:"signals"`
	CartTotal decimal.Decimal      `json:"cart_total" yaml:"cart_total"`
	Summary   string               `json:"summary" yaml:"summary"`
	Purchase  *models.PurchaseInfo `json:"purchase,omitempty" yaml:"purchase,omitempty"`
	Company   string               `json:"company,omitempty" yaml:"company,omitempty"`
	Language  string               `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords  []string             `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Inspect classifies and scrapes doc without contacting any service.
func (p *Pipeline) Inspect(doc dom.Document) Inspection {
	signals := p.detector.Detect(doc)
	in := Inspection{
		URL:       doc.URL(),
		State:     signals.State(),
		Signals:   signals,
		CartTotal: p.extractor.ScrapeTotal(doc),
		Summary:   p.extractor.Summarize(doc),
		Keywords:  p.analytics.TopNWords(doc.VisibleText(), TopKeywords),
	}
	in.Language, _ = p.analytics.Language(in.Summary)
	if c, ok := p.market.LookupURL(doc.URL()); ok {
		in.Company = c.Name
	}
	if in.State == models.StateConfirmation {
		info := p.extractor.FinalPurchase(doc)
		in.Purchase = &info
	}
	return in
}

func (p *Pipeline) fetchBank(ctx context.Context) (models.BankData, error) {
	if p.bank == nil {
		return models.BankData{}, bank.ErrNotConfigured
	}
	data, err := p.bank.FetchData(ctx)
	if err != nil {
		return models.BankData{}, fmt.Errorf("fetch bank data: %w", err)
	}
	return data, nil
}

func (p *Pipeline) analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	if p.analyzer == nil {
		return models.Analysis{}, nil
	}
	if req.PastPurchases == nil {
		req.PastPurchases = []models.PurchaseRecord{}
	}
	analysis, err := p.analyzer.Analyze(ctx, req)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("analyze cart: %w", err)
	}
	return analysis, nil
}

// plan returns the saved budget plan, or nil when there is none.
func (p *Pipeline) plan() *budget.Plan {
	if p.store == nil {
		return nil
	}
	plan, ok, err := p.store.GetBudget()
	if err != nil {
		p.logger.Warn("pipeline: budget plan unreadable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &plan
}

// present runs a presenter call unless ctx is done. A missing element is
// not an error.
func (p *Pipeline) present(ctx context.Context, what string, fn func() error) {
	if ctx.Err() != nil {
		return
	}
	err := fn()
	switch {
	case err == nil, errors.Is(err, ErrNoElement):
	case ctx.Err() != nil:
	default:
		p.logger.Debug("pipeline: presenter failed", "what", what, "error", err)
	}
}

func (p *Pipeline) saveAnalysis(ctx context.Context, rec *db.AnalysisRecord) {
	if p.store == nil {
		return
	}
	if ctx.Err() != nil {
		rec.Status = db.StatusCancelled
	}
	if err := p.store.InsertAnalysis(rec); err != nil {
		p.logger.Error("pipeline: failed to save analysis", "url", rec.URL, "error", err)
	}
}

func (p *Pipeline) saveSync(rec *db.SyncRecord) {
	if p.store == nil {
		return
	}
	if err := p.store.InsertSync(rec); err != nil {
		p.logger.Error("pipeline: failed to save purchase sync", "url", rec.URL, "error", err)
	}
}

// merchantLabel names the store in bank descriptions: the known company,
// else the bare host.
func (p *Pipeline) merchantLabel(rawURL string) string {
	if c, ok := p.market.LookupURL(rawURL); ok {
		return c.Name
	}
	return hostOf(rawURL)
}

// withInsight adds the directory's insight for company unless the model
// already reported one.
func withInsight(a models.Analysis, company market.Company) models.Analysis {
	for _, m := range a.MarketInsights {
		if strings.EqualFold(m.Company, company.Name) {
			return a
		}
	}
	insights := make([]models.MarketInsight, 0, len(a.MarketInsights)+1)
	insights = append(insights, company.Insight())
	a.MarketInsights = append(insights, a.MarketInsights...)
	return a
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

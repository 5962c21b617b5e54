package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dtnitsch/second-look/pkg/db"
	"github.com/shopspring/decimal"
)

type fakeBank struct {
	data      models.BankData
	fetchErr  error
	recordErr error
	recorded  []models.PurchaseInfo
}

func (b *fakeBank) FetchData(context.Context) (models.BankData, error) {
	return b.data, b.fetchErr
}

func (b *fakeBank) RecordPurchase(_ context.Context, info models.PurchaseInfo) error {
	if !info.Amount.IsPositive() {
		return bank.ErrInvalidAmount
	}
	if b.recordErr != nil {
		return b.recordErr
	}
	b.recorded = append(b.recorded, info)
	return nil
}

type fakeAnalyzer struct {
	analysis models.Analysis
	got      models.AnalyzeRequest
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	a.got = req
	return a.analysis, nil
}

func setupTestServer(t *testing.T, b *fakeBank, a *fakeAnalyzer) (*Server, *db.DB) {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	opts := Options{Store: store, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if b != nil {
		opts.Bank = b
	}
	if a != nil {
		opts.Analyzer = a
	}
	return NewServer(opts), store
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: response is not a JSON object: %q", method, path, rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t, &fakeBank{}, nil)

	rec, out := do(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || out["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, out)
	}
	if out["bank"] != true || out["ai"] != false {
		t.Errorf("health flags = %v", out)
	}
}

func TestActions(t *testing.T) {
	fb := &fakeBank{data: models.BankData{
		Balance:   decimal.RequireFromString("250.75"),
		Purchases: []models.PurchaseRecord{{Description: "USB cable", Amount: decimal.NewFromInt(9)}},
	}}
	fa := &fakeAnalyzer{analysis: models.Analysis{
		Duplicates: []models.DuplicateMatch{{CartItem: "USB-C cable", HistoryItem: "USB cable"}},
	}}
	s, store := setupTestServer(t, fb, fa)

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantSuccess bool
		check       func(t *testing.T, out map[string]any)
	}{
		{
			name:        "getNessieData",
			body:        `{"action":"getNessieData"}`,
			wantCode:    http.StatusOK,
			wantSuccess: true,
			check: func(t *testing.T, out map[string]any) {
				data := out["data"].(map[string]any)
				if data["balance"] != "250.75" {
					t.Errorf("balance = %v", data["balance"])
				}
				if p := data["purchases"].([]any); len(p) != 1 {
					t.Errorf("purchases = %v", p)
				}
			},
		},
		{
			name:        "askGemini",
			body:        `{"action":"askGemini","semanticHtml":"<span>USB-C cable</span>"}`,
			wantCode:    http.StatusOK,
			wantSuccess: true,
			check: func(t *testing.T, out map[string]any) {
				dups := out["data"].(map[string]any)["duplicates"].([]any)
				if len(dups) != 1 {
					t.Errorf("duplicates = %v", dups)
				}
				if fa.got.SemanticHTML != "<span>USB-C cable</span>" || fa.got.PastPurchases == nil {
					t.Errorf("analyzer request = %+v", fa.got)
				}
			},
		},
		{
			name:        "recordPurchase",
			body:        `{"action":"recordPurchase","amount":19.99,"description":"Amazon: cable"}`,
			wantCode:    http.StatusOK,
			wantSuccess: true,
			check: func(t *testing.T, out map[string]any) {
				if len(fb.recorded) != 1 || fb.recorded[0].Description != "Amazon: cable" {
					t.Errorf("recorded = %+v", fb.recorded)
				}
			},
		},
		{
			name:     "recordPurchase zero amount",
			body:     `{"action":"recordPurchase","amount":0,"description":"nothing"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown action",
			body:     `{"action":"launchRockets"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed body",
			body:     `{"action":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, s, http.MethodPost, "/api/v1/actions", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%v)", rec.Code, tt.wantCode, out)
			}
			if out["success"] != tt.wantSuccess {
				t.Errorf("success = %v, want %v", out["success"], tt.wantSuccess)
			}
			if !tt.wantSuccess {
				if msg, _ := out["error"].(string); msg == "" {
					t.Errorf("failed response without error: %v", out)
				}
			}
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}

	syncs, err := store.ListSyncs(10)
	if err != nil {
		t.Fatalf("ListSyncs() error = %v", err)
	}
	statuses := map[string]int{}
	for _, s := range syncs {
		statuses[s.Status]++
	}
	if statuses[db.SyncSynced] != 1 || statuses[db.SyncSkipped] != 1 {
		t.Errorf("sync statuses = %v", statuses)
	}
}

func TestActions_ServicesMissing(t *testing.T) {
	s, _ := setupTestServer(t, nil, nil)

	for _, body := range []string{`{"action":"getNessieData"}`, `{"action":"askGemini"}`, `{"action":"recordPurchase","amount":5}`} {
		rec, out := do(t, s, http.MethodPost, "/api/v1/actions", body)
		if rec.Code != http.StatusServiceUnavailable || out["success"] != false {
			t.Errorf("%s = %d %v, want 503 failure", body, rec.Code, out)
		}
	}
}

func TestActions_BankFailure(t *testing.T) {
	s, _ := setupTestServer(t, &fakeBank{fetchErr: bank.ErrAccountUnavailable}, nil)

	rec, out := do(t, s, http.MethodPost, "/api/v1/actions", `{"action":"getNessieData"}`)
	if rec.Code != http.StatusBadGateway || out["success"] != false {
		t.Errorf("getNessieData = %d %v", rec.Code, out)
	}
	if !strings.Contains(out["error"].(string), "account unavailable") {
		t.Errorf("error = %v", out["error"])
	}
}

func TestInspect(t *testing.T) {
	s, _ := setupTestServer(t, nil, nil)

	body, _ := json.Marshal(models.ParseRequest{
		URL:  "https://www.amazon.com/gp/cart/view.html",
		HTML: `<html><body><span class="grand-total-price">$12.00</span></body></html>`,
	})
	rec, out := do(t, s, http.MethodPost, "/api/v1/inspect", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect = %d %v", rec.Code, out)
	}
	in := out["inspection"].(map[string]any)
	if in["state"] != "checkout" || in["cart_total"] != "12" || in["company"] != "Amazon" {
		t.Errorf("inspection = %v", in)
	}

	rec, _ = do(t, s, http.MethodPost, "/api/v1/inspect", `{"url":"https://x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inspect without html = %d, want 400", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	old, _ := models.ParseDate("2023-05-01")
	recent, _ := models.ParseDate("2024-05-01")
	fb := &fakeBank{data: models.BankData{Purchases: []models.PurchaseRecord{
		{Description: "old", Date: old},
		{Description: "recent", Date: recent},
	}}}
	s, _ := setupTestServer(t, fb, nil)

	rec, out := do(t, s, http.MethodGet, "/api/v1/history?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d %v", rec.Code, out)
	}
	purchases := out["purchases"].([]any)
	if len(purchases) != 1 || purchases[0].(map[string]any)["description"] != "recent" {
		t.Errorf("purchases = %v", purchases)
	}

	rec, _ = do(t, s, http.MethodGet, "/api/v1/history?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", rec.Code)
	}
}

func TestBudget(t *testing.T) {
	s, _ := setupTestServer(t, nil, nil)

	rec, out := do(t, s, http.MethodGet, "/api/v1/budget", "")
	if rec.Code != http.StatusOK || out["saved"] != false {
		t.Fatalf("GET budget = %d %v", rec.Code, out)
	}

	rec, out = do(t, s, http.MethodPut, "/api/v1/budget", `{"salary":"4000","rent":"1500","loans":"250","savings":"250"}`)
	if rec.Code != http.StatusOK || out["monthly_budget"] != "2000" {
		t.Fatalf("PUT budget = %d %v", rec.Code, out)
	}

	rec, out = do(t, s, http.MethodGet, "/api/v1/budget", "")
	if out["saved"] != true || out["monthly_budget"] != "2000" {
		t.Errorf("GET after PUT = %d %v", rec.Code, out)
	}

	rec, _ = do(t, s, http.MethodPut, "/api/v1/budget", `{"salary":"-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative salary = %d, want 400", rec.Code)
	}
}

func TestAnalyses(t *testing.T) {
	s, store := setupTestServer(t, nil, nil)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/analyses/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing analysis = %d, want 404", rec.Code)
	}

	a := &db.AnalysisRecord{URL: "https://shop/cart", CartTotal: decimal.NewFromInt(5)}
	if err := store.InsertAnalysis(a); err != nil {
		t.Fatalf("InsertAnalysis() error = %v", err)
	}
	rec, out := do(t, s, http.MethodGet, "/api/v1/analyses/"+a.ID, "")
	if rec.Code != http.StatusOK || out["url"] != "https://shop/cart" {
		t.Errorf("get analysis = %d %v", rec.Code, out)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	var list []map[string]any
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&list); err != nil || len(list) != 1 {
		t.Errorf("list analyses = %q (%v)", w.Body.String(), err)
	}
}

func TestAnalyses_IDPrefix(t *testing.T) {
	s, store := setupTestServer(t, nil, nil)
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := store.InsertAnalysis(&db.AnalysisRecord{ID: id, URL: "https://shop/" + id}); err != nil {
			t.Fatalf("InsertAnalysis(%s) error = %v", id, err)
		}
	}

	tests := []struct {
		prefix   string
		wantCode int
		wantURL  string
	}{
		{"abc", http.StatusConflict, ""},
		{"abc-2", http.StatusOK, "https://shop/abc-2"},
		{"abd", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			rec, out := do(t, s, http.MethodGet, "/api/v1/analyses/"+tt.prefix, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("GET %s = %d, want %d", tt.prefix, rec.Code, tt.wantCode)
			}
			if tt.wantURL != "" && out["url"] != tt.wantURL {
				t.Errorf("url = %v, want %s", out["url"], tt.wantURL)
			}
		})
	}
}

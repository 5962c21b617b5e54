package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dtnitsch/second-look/internal/inspect"
	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dtnitsch/second-look/pkg/budget"
	"github.com/dtnitsch/second-look/pkg/db"
	"github.com/dtnitsch/second-look/pkg/parser"
	"github.com/dtnitsch/second-look/pkg/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

// maxBody bounds request bodies; inspect receives whole pages.
const maxBody = 10 << 20

var (
	errBankOff = errors.New("bank not configured")
	errAIOff   = errors.New("ai not configured")
)

// Options wires a Server. Bank and Analyzer may be nil.
type Options struct {
	Bank      pipeline.Bank
	Analyzer  pipeline.Analyzer
	Store     *db.DB
	Pipeline  *pipeline.Pipeline
	Logger    *slog.Logger
	SessionID int64
}

// Server is the background API the extension front end talks to.
type Server struct {
	bank      pipeline.Bank
	analyzer  pipeline.Analyzer
	store     *db.DB
	pipeline  *pipeline.Pipeline
	parser    *parser.Parser
	logger    *slog.Logger
	sessionID int64
	router    *chi.Mux
}

func NewServer(o Options) *Server {
	s := &Server{
		bank:      o.Bank,
		analyzer:  o.Analyzer,
		store:     o.Store,
		pipeline:  o.Pipeline,
		parser:    &parser.Parser{},
		logger:    o.Logger,
		sessionID: o.SessionID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New(pipeline.Deps{Logger: s.logger})
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/actions", s.handleAction)
	r.Post("/api/v1/inspect", s.handleInspect)
	r.Get("/api/v1/history", s.handleHistory)

	r.Route("/api/v1/budget", func(r chi.Router) {
		r.Get("/", s.handleGetBudget)
		r.Put("/", s.handlePutBudget)
	})

	r.Route("/api/v1/analyses", func(r chi.Router) {
		r.Get("/", s.handleListAnalyses)
		r.Get("/{analysisId}", s.handleGetAnalysis)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"bank":   s.bank != nil,
		"ai":     s.analyzer != nil,
	})
}

// handleAction answers the three extension messages with the
// {success, data} / {success: false, error} envelope.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, models.NewActionError(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	ctx := r.Context()
	switch req.Action {
	case models.ActionGetBankData:
		if s.bank == nil {
			respondJSON(w, http.StatusServiceUnavailable, models.NewActionError(errBankOff))
			return
		}
		data, err := s.bank.FetchData(ctx)
		if err != nil {
			s.logger.Warn("bank data unavailable", "error", err)
			respondJSON(w, http.StatusBadGateway, models.NewActionError(err))
			return
		}
		respondJSON(w, http.StatusOK, models.NewActionResponse(data))

	case models.ActionAnalyzeCart:
		if s.analyzer == nil {
			respondJSON(w, http.StatusServiceUnavailable, models.NewActionError(errAIOff))
			return
		}
		past := req.PastPurchases
		if past == nil {
			past = []models.PurchaseRecord{}
		}
		analysis, err := s.analyzer.Analyze(ctx, models.AnalyzeRequest{
			SemanticHTML:  req.SemanticHTML,
			PastPurchases: past,
			CartTotal:     req.CartTotal,
		})
		if err != nil {
			s.logger.Warn("cart analysis failed", "error", err)
			respondJSON(w, http.StatusBadGateway, models.NewActionError(err))
			return
		}
		respondJSON(w, http.StatusOK, models.NewActionResponse(analysis))

	case models.ActionRecordPurchase:
		if s.bank == nil {
			respondJSON(w, http.StatusServiceUnavailable, models.NewActionError(errBankOff))
			return
		}
		s.recordPurchase(w, r, req)

	default:
		respondJSON(w, http.StatusBadRequest, models.NewActionError(fmt.Errorf("unknown action %q", req.Action)))
	}
}

func (s *Server) recordPurchase(w http.ResponseWriter, r *http.Request, req models.ActionRequest) {
	info := models.PurchaseInfo{Amount: req.Amount, Description: req.Description}
	rec := &db.SyncRecord{
		SessionID:   s.sessionID,
		URL:         r.Header.Get("Referer"),
		Amount:      info.Amount,
		Description: info.Description,
		Status:      db.SyncSynced,
	}

	err := s.bank.RecordPurchase(r.Context(), info)
	status := http.StatusOK
	switch {
	case errors.Is(err, bank.ErrInvalidAmount):
		rec.Status, rec.Error, status = db.SyncSkipped, err.Error(), http.StatusBadRequest
	case err != nil:
		rec.Status, rec.Error, status = db.SyncFailed, err.Error(), http.StatusBadGateway
	}

	if dbErr := s.store.InsertSync(rec); dbErr != nil {
		s.logger.Error("failed to save purchase sync", "error", dbErr)
	}

	if err != nil {
		respondJSON(w, status, models.NewActionError(err))
		return
	}
	respondJSON(w, http.StatusOK, models.NewActionResponse(map[string]string{"sync_id": rec.ID}))
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req models.ParseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.HTML == "" {
		respondError(w, http.StatusBadRequest, "html is required", nil)
		return
	}

	page, doc, err := s.parser.Parse(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unparseable page", err)
		return
	}
	respondJSON(w, http.StatusOK, inspect.Output{Page: page, Inspection: s.pipeline.Inspect(doc)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	if s.bank == nil {
		respondError(w, http.StatusServiceUnavailable, errBankOff.Error(), nil)
		return
	}

	data, err := s.bank.FetchData(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "bank unavailable", err)
		return
	}
	bank.SortNewest(data.Purchases)
	if len(data.Purchases) > limit {
		data.Purchases = data.Purchases[:limit]
	}
	respondJSON(w, http.StatusOK, data)
}

type budgetResponse struct {
	Saved         bool            `json:"saved"`
	Plan          budget.Plan     `json:"plan"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	plan, ok, err := s.store.GetBudget()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read budget", err)
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse{Saved: ok, Plan: plan, MonthlyBudget: plan.MonthlyBudget()})
}

func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	var plan budget.Plan
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&plan); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	for name, v := range map[string]decimal.Decimal{
		"salary": plan.Salary, "rent": plan.Rent, "loans": plan.Loans, "savings": plan.Savings,
	} {
		if v.IsNegative() {
			respondError(w, http.StatusBadRequest, name+" must not be negative", nil)
			return
		}
	}

	if err := s.store.SaveBudget(plan); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save budget", err)
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse{Saved: true, Plan: plan, MonthlyBudget: plan.MonthlyBudget()})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	recs, err := s.store.ListAnalyses(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list analyses", err)
		return
	}
	if recs == nil {
		recs = []db.AnalysisRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.FindAnalysis(chi.URLParam(r, "analysisId"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "analysis not found", nil)
		return
	}
	if errors.Is(err, db.ErrAmbiguous) {
		respondError(w, http.StatusConflict, "analysis id prefix is ambiguous", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get analysis", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/second-look/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Analysis statuses.
const (
	StatusOK              = "ok"
	StatusBankUnavailable = "bank_unavailable"
	StatusAIFailed        = "ai_failed"
	StatusCancelled       = "cancelled"
)

// AnalysisRecord is one run of the checkout pipeline.
type AnalysisRecord struct {
	ID            string          `json:"id" yaml:"id"`
	SessionID     int64           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	URL           string          `json:"url" yaml:"url"`
	Host          string          `json:"host,omitempty" yaml:"host,omitempty"`
	Company       string          `json:"company,omitempty" yaml:"company,omitempty"`
	CartTotal     decimal.Decimal `json:"cart_total" yaml:"cart_total"`
	SemanticText  string          `json:"semantic_text,omitempty" yaml:"semantic_text,omitempty"`
	Language      string          `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords      []string        `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	BudgetMessage string          `json:"budget_message,omitempty" yaml:"budget_message,omitempty"`
	Analysis      models.Analysis `json:"analysis" yaml:"analysis"`
	Status        string          `json:"status" yaml:"status"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// InsertAnalysis stores rec, assigning an id and timestamp when unset.
func (db *DB) InsertAnalysis(rec *AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusOK
	}

	keywords, err := json.Marshal(rec.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	result, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO analyses (
			analysis_id, session_id, created_at, url, host, company, cart_total,
			semantic_text, language, keywords, budget_message,
			duplicate_count, insight_count, result_json, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, nullID(rec.SessionID), rec.CreatedAt, rec.URL, rec.Host, rec.Company, rec.CartTotal.String(),
		rec.SemanticText, rec.Language, string(keywords), rec.BudgetMessage,
		len(rec.Analysis.Duplicates), len(rec.Analysis.MarketInsights), string(result), rec.Status, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

const analysisColumns = `
	analysis_id, session_id, created_at, url, host, company, cart_total,
	semantic_text, language, keywords, budget_message, result_json, status, error_message`

// GetAnalysis returns the analysis with the given id, or ErrNotFound.
func (db *DB) GetAnalysis(id string) (*AnalysisRecord, error) {
	row := db.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE analysis_id = ?`, id)
	rec, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ErrAmbiguous is returned when an id prefix matches more than one row.
var ErrAmbiguous = errors.New("db: ambiguous id prefix")

// FindAnalysis resolves a full id or a unique id prefix.
func (db *DB) FindAnalysis(prefix string) (*AnalysisRecord, error) {
	if prefix == "" {
		return nil, fmt.Errorf("analysis id: %w", ErrNotFound)
	}
	rows, err := db.Query(`SELECT analysis_id FROM analyses WHERE substr(analysis_id, 1, ?) = ? LIMIT 2`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("analysis %s: %w", prefix, ErrNotFound)
	case 1:
		return db.GetAnalysis(ids[0])
	default:
		return nil, fmt.Errorf("analysis %s: %w", prefix, ErrAmbiguous)
	}
}

// ListAnalyses returns the newest analyses first. limit <= 0 means 20.
func (db *DB) ListAnalyses(limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT `+analysisColumns+`
		FROM analyses
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(s scanner) (*AnalysisRecord, error) {
	var (
		rec                             AnalysisRecord
		sessionID                       sql.NullInt64
		host, company, text, lang       sql.NullString
		keywords, budgetMsg, resultJSON sql.NullString
		errMsg                          sql.NullString
		total                           string
	)
	err := s.Scan(&rec.ID, &sessionID, &rec.CreatedAt, &rec.URL, &host, &company, &total,
		&text, &lang, &keywords, &budgetMsg, &resultJSON, &rec.Status, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	rec.SessionID = sessionID.Int64
	rec.Host, rec.Company = host.String, company.String
	rec.SemanticText, rec.Language = text.String, lang.String
	rec.BudgetMessage, rec.Error = budgetMsg.String, errMsg.String

	rec.CartTotal, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: bad cart total %q: %w", rec.ID, total, err)
	}
	if keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &rec.Keywords); err != nil {
			return nil, fmt.Errorf("analysis %s: bad keywords: %w", rec.ID, err)
		}
	}
	if resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &rec.Analysis); err != nil {
			return nil, fmt.Errorf("analysis %s: bad result: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func nullID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

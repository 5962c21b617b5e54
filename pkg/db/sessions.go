package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one run of watch or serve.
type Session struct {
	SessionID     int64      `json:"session_id" yaml:"session_id"`
	Mode          string     `json:"mode" yaml:"mode"`
	StartURL      string     `json:"start_url,omitempty" yaml:"start_url,omitempty"`
	StartedAt     time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	AnalysisCount int        `json:"analysis_count" yaml:"analysis_count"`
	SyncCount     int        `json:"sync_count" yaml:"sync_count"`
}

// StartSession records the start of a run and returns its id.
func (db *DB) StartSession(mode, startURL string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO sessions (mode, start_url, started_at) VALUES (?, ?, ?)
	`, mode, startURL, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ID: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time.
func (db *DB) EndSession(sessionID int64) error {
	result, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	return nil
}

// GetSession returns a session with its analysis and sync counts.
func (db *DB) GetSession(sessionID int64) (*Session, error) {
	rows, err := db.querySessions(`WHERE s.session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	return &rows[0], nil
}

// ListSessions returns the newest sessions first.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return db.querySessions(`ORDER BY s.started_at DESC, s.session_id DESC LIMIT ?`, limit)
}

func (db *DB) querySessions(tail string, args ...interface{}) ([]Session, error) {
	rows, err := db.Query(`
		SELECT s.session_id, s.mode, s.start_url, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM analyses a WHERE a.session_id = s.session_id),
		       (SELECT COUNT(*) FROM purchase_syncs p WHERE p.session_id = s.session_id)
		FROM sessions s
		`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s        Session
			startURL sql.NullString
			ended    sql.NullTime
		)
		if err := rows.Scan(&s.SessionID, &s.Mode, &startURL, &s.StartedAt, &ended, &s.AnalysisCount, &s.SyncCount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartURL = startURL.String
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sync statuses.
const (
	SyncSynced  = "synced"
	SyncFailed  = "failed"
	SyncSkipped = "skipped"
)

// SyncRecord is one confirmation page pushed (or not) to the bank.
type SyncRecord struct {
	ID          string          `json:"id" yaml:"id"`
	SessionID   int64           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	URL         string          `json:"url" yaml:"url"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Description string          `json:"description" yaml:"description"`
	Status      string          `json:"status" yaml:"status"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// InsertSync stores rec, assigning an id and timestamp when unset.
func (db *DB) InsertSync(rec *SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO purchase_syncs (sync_id, session_id, created_at, url, amount, description, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, nullID(rec.SessionID), rec.CreatedAt, rec.URL, rec.Amount.String(), rec.Description, rec.Status, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert purchase sync: %w", err)
	}
	return nil
}

// ListSyncs returns the newest syncs first. limit <= 0 means 20.
func (db *DB) ListSyncs(limit int) ([]SyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT sync_id, session_id, created_at, url, amount, description, status, error_message
		FROM purchase_syncs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase syncs: %w", err)
	}
	defer rows.Close()

	var out []SyncRecord
	for rows.Next() {
		var (
			rec       SyncRecord
			sessionID sql.NullInt64
			amount    string
			desc, msg sql.NullString
		)
		if err := rows.Scan(&rec.ID, &sessionID, &rec.CreatedAt, &rec.URL, &amount, &desc, &rec.Status, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan purchase sync: %w", err)
		}
		rec.SessionID = sessionID.Int64
		rec.Description, rec.Error = desc.String, msg.String
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("sync %s: bad amount %q: %w", rec.ID, amount, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchase syncs: %w", err)
	}
	return out, nil
}

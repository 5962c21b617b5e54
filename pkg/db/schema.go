package db

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Sessions: one row per watch or serve run
CREATE TABLE IF NOT EXISTS sessions (
    session_id INTEGER PRIMARY KEY AUTOINCREMENT,
    mode TEXT NOT NULL,                -- watch, serve, inspect
    start_url TEXT,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);

-- Analyses: one row per checkout visit that ran the pipeline
CREATE TABLE IF NOT EXISTS analyses (
    analysis_id TEXT PRIMARY KEY,      -- uuid
    session_id INTEGER,
    created_at TIMESTAMP NOT NULL,
    url TEXT NOT NULL,
    host TEXT,
    company TEXT,
    cart_total TEXT NOT NULL DEFAULT '0',
    semantic_text TEXT,
    language TEXT,
    keywords TEXT,                     -- JSON array of top words
    budget_message TEXT,
    duplicate_count INTEGER DEFAULT 0,
    insight_count INTEGER DEFAULT 0,
    result_json TEXT,                  -- models.Analysis
    status TEXT NOT NULL,              -- ok, bank_unavailable, ai_failed, cancelled
    error_message TEXT,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_host ON analyses(host);

-- Purchase syncs: confirmation pages pushed to the bank
CREATE TABLE IF NOT EXISTS purchase_syncs (
    sync_id TEXT PRIMARY KEY,          -- uuid
    session_id INTEGER,
    created_at TIMESTAMP NOT NULL,
    url TEXT NOT NULL,
    amount TEXT NOT NULL DEFAULT '0',
    description TEXT,
    status TEXT NOT NULL,              -- synced, failed, skipped
    error_message TEXT,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_syncs_created ON purchase_syncs(created_at DESC);

-- Budget settings: single row
CREATE TABLE IF NOT EXISTS budget_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    salary TEXT NOT NULL DEFAULT '0',
    rent TEXT NOT NULL DEFAULT '0',
    loans TEXT NOT NULL DEFAULT '0',
    savings TEXT NOT NULL DEFAULT '0',
    updated_at TIMESTAMP NOT NULL
);
`

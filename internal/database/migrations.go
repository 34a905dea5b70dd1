package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS domains (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    niche TEXT NOT NULL DEFAULT '',
    voice_seed TEXT,
    priority INTEGER DEFAULT 0,
    internal_linking INTEGER DEFAULT 0,
    ai_reviewer INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    domain_id INTEGER NOT NULL REFERENCES domains(id),
    keyword TEXT NOT NULL,
    secondary_keywords TEXT,
    content_type TEXT,
    status TEXT NOT NULL DEFAULT 'draft',
    title TEXT,
    slug TEXT,
    meta_description TEXT,
    body_md TEXT,
    word_count INTEGER DEFAULT 0,
    research_json TEXT,
    outline_json TEXT,
    generation_passes INTEGER DEFAULT 0,
    fingerprint TEXT,
    signature_json TEXT,
    risk_level TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    article_id INTEGER REFERENCES articles(id),
    domain_id INTEGER NOT NULL REFERENCES domains(id),
    status TEXT NOT NULL DEFAULT 'pending',
    priority INTEGER DEFAULT 100,
    attempts INTEGER DEFAULT 0,
    max_attempts INTEGER DEFAULT 3,
    payload TEXT,
    result TEXT,
    error TEXT,
    cost REAL DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    claimed_by TEXT,
    claimed_at TEXT,
    started_at TEXT,
    completed_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS generation_calls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id INTEGER REFERENCES articles(id),
    task_key TEXT NOT NULL,
    resolved_model TEXT NOT NULL,
    prompt_version TEXT NOT NULL,
    routing_version TEXT NOT NULL,
    fallback_used INTEGER DEFAULT 0,
    prompt_hash TEXT NOT NULL,
    prompt_body TEXT NOT NULL,
    input_tokens INTEGER DEFAULT 0,
    output_tokens INTEGER DEFAULT 0,
    cost REAL DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    error TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS revisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id INTEGER NOT NULL REFERENCES articles(id),
    stage TEXT NOT NULL,
    title_before TEXT,
    title_after TEXT,
    body_before TEXT,
    body_after TEXT,
    meta_before TEXT,
    meta_after TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS research_cache (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query_hash TEXT NOT NULL,
    query_text TEXT NOT NULL,
    payload TEXT NOT NULL,
    source_model TEXT,
    domain_priority INTEGER DEFAULT 0,
    fetched_at TEXT DEFAULT (datetime('now')),
    expires_at TEXT
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    article_id INTEGER REFERENCES articles(id),
    domain_id INTEGER REFERENCES domains(id),
    detail TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_articles_domain ON articles(domain_id);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
CREATE INDEX IF NOT EXISTS idx_jobs_status_priority ON jobs(status, priority, id);
CREATE INDEX IF NOT EXISTS idx_jobs_article ON jobs(article_id);
CREATE INDEX IF NOT EXISTS idx_calls_article ON generation_calls(article_id);
CREATE INDEX IF NOT EXISTS idx_revisions_article ON revisions(article_id);
CREATE INDEX IF NOT EXISTS idx_cache_hash ON research_cache(query_hash);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

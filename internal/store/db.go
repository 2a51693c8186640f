package store

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the sqlite database and ensures the schema.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Purchase queue
CREATE TABLE IF NOT EXISTS queue_tasks(
  id TEXT PRIMARY KEY,
  plan_code TEXT NOT NULL,
  datacenter TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL CHECK (status IN ('running','paused','completed','failed')),
  retry_interval INTEGER NOT NULL DEFAULT 30,
  retry_count INTEGER NOT NULL DEFAULT 0,
  max_retries INTEGER NOT NULL DEFAULT 0,
  last_attempt_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  sniper_task_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_queue_tasks_status ON queue_tasks(status);

-- Latest attempt result per task (upsert, never append-many)
CREATE TABLE IF NOT EXISTS purchase_outcomes(
  task_id TEXT PRIMARY KEY,
  plan_code TEXT NOT NULL,
  datacenter TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL CHECK (status IN ('success','failed')),
  order_id TEXT,
  order_url TEXT,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  purchase_time TEXT NOT NULL
);

-- Configuration-bound sniper tasks
CREATE TABLE IF NOT EXISTS sniper_tasks(
  id TEXT PRIMARY KEY,
  source_plan_code TEXT NOT NULL,
  bound_memory TEXT NOT NULL,
  bound_storage TEXT NOT NULL,
  match_status TEXT NOT NULL CHECK (match_status IN ('pending_match','matched','completed')),
  matched_json TEXT NOT NULL DEFAULT '[]',
  known_json TEXT NOT NULL DEFAULT '[]',
  enabled INTEGER NOT NULL DEFAULT 1,
  last_checked_at TEXT,
  created_at TEXT NOT NULL
);

-- Availability subscriptions
CREATE TABLE IF NOT EXISTS subscriptions(
  plan_code TEXT PRIMARY KEY,
  server_name TEXT,
  datacenters_json TEXT NOT NULL DEFAULT '[]',
  notify_available INTEGER NOT NULL DEFAULT 1,
  notify_unavailable INTEGER NOT NULL DEFAULT 0,
  last_known_json TEXT NOT NULL DEFAULT '{}',
  history_json TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL
);

-- Key/value settings persisted across restarts
CREATE TABLE IF NOT EXISTS settings(
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

// Package store is the persistence contract (spec.md §3, §6): append-only
// tables for posts, actions/arm logs, KPI snapshots, persona versions,
// redirects, follower snapshots, sensed events and structured outcomes.
// Any SQL engine reachable through database/sql can back it; the default
// wiring uses mattn/go-sqlite3, mirroring the teacher's embedded-sqlite
// persistence for bridge state.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a *sql.DB with the schema this core needs. It owns no
// in-memory state beyond the connection pool; every method round-trips
// through SQL so that "each job must read its own inputs fresh" (§5)
// holds trivially.
type Store struct {
	db *sql.DB
}

// Open creates/migrates the sqlite database at path and returns a ready
// Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for callers (e.g. migrations tooling)
// that need raw access; application code should prefer the typed methods
// on Store.
func (s *Store) DB() *sql.DB { return s.db }

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	topic TEXT NOT NULL,
	hour_bin INTEGER NOT NULL,
	cta_variant TEXT NOT NULL,
	intensity INTEGER NOT NULL,
	ref_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0,
	reposts INTEGER NOT NULL DEFAULT 0,
	replies INTEGER NOT NULL DEFAULT 0,
	quotes INTEGER NOT NULL DEFAULT 0,
	authority_score REAL NOT NULL DEFAULT 0,
	j_score REAL
);

CREATE TABLE IF NOT EXISTS arm_selections (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL,
	post_type TEXT NOT NULL,
	topic TEXT NOT NULL,
	hour_bin INTEGER NOT NULL,
	cta_variant TEXT NOT NULL,
	intensity INTEGER NOT NULL,
	sampled_prob REAL NOT NULL,
	reward_j REAL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sensed_events (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	counts TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS structured_outcomes (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	post_id TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	fork_platform TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL DEFAULT '',
	rating INTEGER NOT NULL DEFAULT 0,
	comment TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS redirects (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	target_url TEXT NOT NULL,
	utm TEXT NOT NULL DEFAULT '',
	clicks INTEGER NOT NULL DEFAULT 0,
	revenue REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS follower_snapshots (
	ts DATETIME PRIMARY KEY,
	count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS improvement_notes (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS persona_versions (
	version INTEGER PRIMARY KEY,
	actor TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS kpi_snapshots (
	id TEXT PRIMARY KEY,
	window_start DATETIME NOT NULL,
	window_end DATETIME NOT NULL,
	fame_score REAL NOT NULL,
	revenue_per_day REAL NOT NULL,
	authority_score REAL NOT NULL,
	penalty REAL NOT NULL,
	impact_score REAL NOT NULL,
	global_j_score REAL NOT NULL,
	created_at DATETIME NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

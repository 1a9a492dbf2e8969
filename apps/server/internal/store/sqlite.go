package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "tourney_local.db"

// NewSQLite opens (creating if needed) a single-file tournament database.
func NewSQLite(dbPath string) (*SQL, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{db: db, dialect: dialectSQLite}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS tourney_clocks (
    tournament_id INTEGER PRIMARY KEY,
    status TEXT NOT NULL,
    current_level INTEGER NOT NULL,
    time_remaining_ns INTEGER NOT NULL,
    updated_at_ns INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tourney_tables (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tournament_id INTEGER NOT NULL,
    max_seats INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_tables_tournament ON tourney_tables(tournament_id, status)`,
		`
CREATE TABLE IF NOT EXISTS tourney_seats (
    tournament_id INTEGER NOT NULL,
    table_id INTEGER NOT NULL,
    seat_number INTEGER NOT NULL,
    registration_id INTEGER,
    PRIMARY KEY (table_id, seat_number),
    FOREIGN KEY(table_id) REFERENCES tourney_tables(id) ON DELETE CASCADE
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tourney_seats_registration ON tourney_seats(registration_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_seats_tournament ON tourney_seats(tournament_id, table_id)`,
		`
CREATE TABLE IF NOT EXISTS tourney_registrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tournament_id INTEGER NOT NULL,
    player_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    chip_count INTEGER NOT NULL DEFAULT 0,
    paid_amount_cents INTEGER NOT NULL DEFAULT 0,
    rebuys_count INTEGER NOT NULL DEFAULT 0,
    addons_count INTEGER NOT NULL DEFAULT 0,
    eliminated_by_json TEXT NOT NULL DEFAULT '[]',
    withdraw_reason TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tourney_registrations_player ON tourney_registrations(tournament_id, player_id)`,
		`
CREATE TABLE IF NOT EXISTS tourney_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tournament_id INTEGER NOT NULL,
    player_id INTEGER NOT NULL,
    transaction_type TEXT NOT NULL,
    amount_cents INTEGER NOT NULL DEFAULT 0,
    chips INTEGER NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    eliminated_by_json TEXT NOT NULL DEFAULT '[]',
    actor_user_id INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_transactions_player ON tourney_transactions(tournament_id, player_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_transactions_type ON tourney_transactions(tournament_id, transaction_type, id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// localDatabasePath resolves the default sqlite file under the user config dir.
func localDatabasePath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "TourneyLite", defaultLocalDBName), nil
}

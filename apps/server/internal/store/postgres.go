package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// NewPostgres connects to dsn and creates any missing tables.
func NewPostgres(dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{db: db, dialect: dialectPostgres}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS tourney_clocks (
    tournament_id BIGINT PRIMARY KEY,
    status TEXT NOT NULL,
    current_level INTEGER NOT NULL,
    time_remaining_ns BIGINT NOT NULL,
    updated_at_ns BIGINT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tourney_tables (
    id BIGSERIAL PRIMARY KEY,
    tournament_id BIGINT NOT NULL,
    max_seats INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_tables_tournament ON tourney_tables(tournament_id, status)`,
		`
CREATE TABLE IF NOT EXISTS tourney_seats (
    tournament_id BIGINT NOT NULL,
    table_id BIGINT NOT NULL REFERENCES tourney_tables(id) ON DELETE CASCADE,
    seat_number INTEGER NOT NULL,
    registration_id BIGINT,
    PRIMARY KEY (table_id, seat_number)
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tourney_seats_registration ON tourney_seats(registration_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tourney_seats_tournament ON tourney_seats(tournament_id, table_id)`,
		`
CREATE TABLE IF NOT EXISTS tourney_registrations (
    id BIGSERIAL PRIMARY KEY,
    tournament_id BIGINT NOT NULL,
    player_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    chip_count BIGINT NOT NULL DEFAULT 0,
    paid_amount_cents BIGINT NOT NULL DEFAULT 0,
    rebuys_count INTEGER NOT NULL DEFAULT 0,
    addons_count INTEGER NOT NULL DEFAULT 0,
    eliminated_by_json TEXT NOT NULL DEFAULT '[]',
    withdraw_reason TEXT NOT NULL DEFAULT '',
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tourney_registrations_player ON tourney_registrations(tournament_id, player_id)`,
		`
CREATE TABLE IF NOT EXISTS tourney_transactions (
    id BIGSERIAL PRIMARY KEY,
    tournament_id BIGINT NOT NULL,
    player_id BIGINT NOT NULL,
    transaction_type TEXT NOT NULL,
    amount_cents BIGINT NOT NULL DEFAULT 0,
    chips BIGINT NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    eliminated_by_json TEXT NOT NULL DEFAULT '[]',
    actor_user_id BIGINT NOT NULL DEFAULT 0,
    created_at_ms BIGINT NOT NULL,
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

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

package database

import (
	"context"
	"fmt"

	"github.com/yourusername/cyclebet/internal/config"
)

// schema holds the DDL for the engine's tables. The unique constraint on
// completed_cycles (bot_id, cycle_number) is what makes cycle closing
// idempotent across concurrent closers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bots (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		stake_min NUMERIC(18,2) NOT NULL,
		stake_max NUMERIC(18,2) NOT NULL,
		cycle_games INT NOT NULL,
		win_pct INT NOT NULL,
		loss_pct INT NOT NULL,
		draw_pct INT NOT NULL,
		win_count INT NOT NULL,
		loss_count INT NOT NULL,
		draw_count INT NOT NULL,
		cycle_pause_seconds BIGINT NOT NULL DEFAULT 0,
		current_cycle INT NOT NULL DEFAULT 0,
		paused_until TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wagers (
		id UUID PRIMARY KEY,
		bot_id UUID NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
		cycle_number INT NOT NULL,
		stake_amount NUMERIC(18,2) NOT NULL,
		intended_result TEXT NOT NULL,
		state TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		counterparty_id UUID,
		counterparty_kind TEXT,
		counterparty_commit TEXT,
		settled_result TEXT,
		match_deadline TIMESTAMPTZ,
		matched_at TIMESTAMPTZ,
		settled_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_bot_state ON wagers (bot_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_deadline ON wagers (match_deadline) WHERE state = 'MATCHED'`,
	`CREATE TABLE IF NOT EXISTS commission_events (
		id UUID PRIMARY KEY,
		wager_id UUID NOT NULL REFERENCES wagers(id) ON DELETE CASCADE,
		payer_id UUID NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		state TEXT NOT NULL,
		attribution TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commission_wager ON commission_events (wager_id)`,
	`CREATE TABLE IF NOT EXISTS completed_cycles (
		id UUID PRIMARY KEY,
		bot_id UUID NOT NULL,
		cycle_number INT NOT NULL,
		wins_amount NUMERIC(18,2) NOT NULL,
		losses_amount NUMERIC(18,2) NOT NULL,
		draws_amount NUMERIC(18,2) NOT NULL,
		active_pool NUMERIC(18,2) NOT NULL,
		net_profit NUMERIC(18,2) NOT NULL,
		roi_active NUMERIC(8,2) NOT NULL,
		total_bet_amount NUMERIC(18,2) NOT NULL,
		wins_count INT NOT NULL,
		losses_count INT NOT NULL,
		draws_count INT NOT NULL,
		closed_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_completed_cycles_bot_cycle UNIQUE (bot_id, cycle_number)
	)`,
}

// Initialize creates a connection pool and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, ddl := range schema {
		if _, err := db.pool.Exec(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}

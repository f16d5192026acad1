package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/cyclebet/internal/database"
	"github.com/yourusername/cyclebet/internal/models"
)

// PostgresWagerRepository implements WagerRepository for PostgreSQL
type PostgresWagerRepository struct {
	db *database.DB
}

// NewPostgresWagerRepository creates a new wager repository
func NewPostgresWagerRepository(db *database.DB) WagerRepository {
	return &PostgresWagerRepository{db: db}
}

const wagerColumns = `id, bot_id, cycle_number, stake_amount, intended_result, state, commit_hash,
	counterparty_id, counterparty_kind, counterparty_commit, settled_result, match_deadline, matched_at,
	settled_at, cancelled_at, created_at, updated_at`

// CreateBatch inserts all wagers of a cycle in one transaction
func (r *PostgresWagerRepository) CreateBatch(ctx context.Context, wagers []*models.Wager) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO wagers (id, bot_id, cycle_number, stake_amount, intended_result, state, commit_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, w := range wagers {
			if _, err := tx.Exec(ctx, query,
				w.ID, w.BotID, w.CycleNumber, w.StakeAmount, w.IntendedResult, w.State, w.CommitHash,
			); err != nil {
				return fmt.Errorf("failed to insert wager %s: %w", w.ID, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a wager by ID
func (r *PostgresWagerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	w, err := scanWager(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}

	return w, nil
}

// GetByBot retrieves a bot's wagers, optionally filtered by state
func (r *PostgresWagerRepository) GetByBot(ctx context.Context, botID uuid.UUID, states ...models.WagerState) ([]*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE bot_id = $1`
	args := []interface{}{botID}

	if len(states) > 0 {
		query += ` AND state = ANY($2)`
		stateStrs := make([]string, len(states))
		for i, s := range states {
			stateStrs[i] = string(s)
		}
		args = append(args, stateStrs)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wagers: %w", err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

// GetMatchedBefore retrieves matched wagers whose deadline has passed
func (r *PostgresWagerRepository) GetMatchedBefore(ctx context.Context, deadline time.Time) ([]*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers
		WHERE state = 'MATCHED' AND match_deadline IS NOT NULL AND match_deadline < $1
		ORDER BY match_deadline ASC`

	rows, err := r.db.GetPool().Query(ctx, query, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to query timed-out wagers: %w", err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

// CountByCycle aggregates a bot's wagers by state for one cycle
func (r *PostgresWagerRepository) CountByCycle(ctx context.Context, botID uuid.UUID, cycleNumber int) (models.WagerCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state = 'OPEN'),
			COUNT(*) FILTER (WHERE state = 'MATCHED'),
			COUNT(*) FILTER (WHERE state = 'SETTLED')
		FROM wagers
		WHERE bot_id = $1 AND cycle_number = $2
	`

	var counts models.WagerCounts
	err := r.db.GetPool().QueryRow(ctx, query, botID, cycleNumber).Scan(
		&counts.Open, &counts.Matched, &counts.Settled,
	)
	if err != nil {
		return counts, fmt.Errorf("failed to count wagers: %w", err)
	}

	return counts, nil
}

// CountAll returns the total number of wagers ever created for a bot
func (r *PostgresWagerRepository) CountAll(ctx context.Context, botID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM wagers WHERE bot_id = $1`, botID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count wagers: %w", err)
	}
	return n, nil
}

// Match transitions OPEN -> MATCHED. The WHERE clause on state makes two
// concurrent joins on the same wager mutually exclusive.
func (r *PostgresWagerRepository) Match(ctx context.Context, id, counterpartyID uuid.UUID, kind models.ParticipantKind, counterCommit string, deadline time.Time) error {
	query := `
		UPDATE wagers SET
			state = 'MATCHED', counterparty_id = $2, counterparty_kind = $3, counterparty_commit = $4,
			match_deadline = $5, matched_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = 'OPEN'
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, counterpartyID, kind, counterCommit, deadline)
	if err != nil {
		return fmt.Errorf("failed to match wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

// ReplaceOpen cancels every OPEN wager of a cycle and inserts the given
// replacements in one transaction. Returns the wagers that were cancelled so
// the caller can unwind their ledger holds.
func (r *PostgresWagerRepository) ReplaceOpen(ctx context.Context, botID uuid.UUID, cycleNumber int, replacements []*models.Wager) ([]*models.Wager, error) {
	var cancelled []*models.Wager

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		cancelQuery := `
			UPDATE wagers SET state = 'CANCELLED', cancelled_at = NOW(), updated_at = NOW()
			WHERE bot_id = $1 AND cycle_number = $2 AND state = 'OPEN'
			RETURNING ` + wagerColumns

		rows, err := tx.Query(ctx, cancelQuery, botID, cycleNumber)
		if err != nil {
			return fmt.Errorf("failed to cancel open wagers: %w", err)
		}
		cancelled, err = collectWagers(rows)
		rows.Close()
		if err != nil {
			return err
		}

		insertQuery := `
			INSERT INTO wagers (id, bot_id, cycle_number, stake_amount, intended_result, state, commit_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, w := range replacements {
			if _, err := tx.Exec(ctx, insertQuery,
				w.ID, w.BotID, w.CycleNumber, w.StakeAmount, w.IntendedResult, w.State, w.CommitHash,
			); err != nil {
				return fmt.Errorf("failed to insert replacement wager %s: %w", w.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// Settle transitions MATCHED -> SETTLED and records the result
func (r *PostgresWagerRepository) Settle(ctx context.Context, id uuid.UUID, result models.Result) error {
	query := `
		UPDATE wagers SET
			state = 'SETTLED', settled_result = $2, settled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = 'MATCHED'
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, result)
	if err != nil {
		return fmt.Errorf("failed to settle wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

// RevertSettle rolls a wager back from SETTLED to MATCHED after a failed
// ledger operation
func (r *PostgresWagerRepository) RevertSettle(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE wagers SET
			state = 'MATCHED', settled_result = NULL, settled_at = NULL, updated_at = NOW()
		WHERE id = $1 AND state = 'SETTLED'
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revert settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

// Reopen transitions MATCHED -> OPEN, clearing the counterparty so the same
// stake re-enters the public matching pool
func (r *PostgresWagerRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE wagers SET
			state = 'OPEN', counterparty_id = NULL, counterparty_kind = NULL, counterparty_commit = NULL,
			match_deadline = NULL, matched_at = NULL, updated_at = NOW()
		WHERE id = $1 AND state = 'MATCHED'
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reopen wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

// Cancel transitions OPEN -> CANCELLED
func (r *PostgresWagerRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE wagers SET state = 'CANCELLED', cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = 'OPEN'
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

// SettledTotals sums stake amounts of settled wagers grouped by result. The
// closer recomputes from rows rather than a running accumulator.
func (r *PostgresWagerRepository) SettledTotals(ctx context.Context, botID uuid.UUID, cycleNumber int) (models.CycleTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(stake_amount) FILTER (WHERE settled_result = 'win'), 0),
			COALESCE(SUM(stake_amount) FILTER (WHERE settled_result = 'loss'), 0),
			COALESCE(SUM(stake_amount) FILTER (WHERE settled_result = 'draw'), 0),
			COUNT(*) FILTER (WHERE settled_result = 'win'),
			COUNT(*) FILTER (WHERE settled_result = 'loss'),
			COUNT(*) FILTER (WHERE settled_result = 'draw')
		FROM wagers
		WHERE bot_id = $1 AND cycle_number = $2 AND state = 'SETTLED'
	`

	var totals models.CycleTotals
	err := r.db.GetPool().QueryRow(ctx, query, botID, cycleNumber).Scan(
		&totals.WinsAmount, &totals.LossesAmount, &totals.DrawsAmount,
		&totals.WinsCount, &totals.LossesCount, &totals.DrawsCount,
	)
	if err != nil {
		return totals, fmt.Errorf("failed to aggregate settled wagers: %w", err)
	}

	return totals, nil
}

func scanWager(row pgx.Row) (*models.Wager, error) {
	w := &models.Wager{}
	err := row.Scan(
		&w.ID, &w.BotID, &w.CycleNumber, &w.StakeAmount, &w.IntendedResult, &w.State, &w.CommitHash,
		&w.CounterpartyID, &w.CounterpartyKind, &w.CounterpartyCommit, &w.SettledResult, &w.MatchDeadline,
		&w.MatchedAt, &w.SettledAt, &w.CancelledAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func collectWagers(rows pgx.Rows) ([]*models.Wager, error) {
	var wagers []*models.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	return wagers, rows.Err()
}

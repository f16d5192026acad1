package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/cyclebet/internal/database"
	"github.com/yourusername/cyclebet/internal/models"
)

// PostgresCompletedCycleRepository implements CompletedCycleRepository for PostgreSQL
type PostgresCompletedCycleRepository struct {
	db *database.DB
}

// NewPostgresCompletedCycleRepository creates a new completed-cycle repository
func NewPostgresCompletedCycleRepository(db *database.DB) CompletedCycleRepository {
	return &PostgresCompletedCycleRepository{db: db}
}

const cycleColumns = `id, bot_id, cycle_number, wins_amount, losses_amount, draws_amount,
	active_pool, net_profit, roi_active, total_bet_amount, wins_count, losses_count, draws_count, closed_at`

// InsertIfAbsent inserts the record, reporting a duplicate as
// models.ErrDuplicateKey instead of raising. ON CONFLICT DO NOTHING keeps
// the insert race-free without a separate lock.
func (r *PostgresCompletedCycleRepository) InsertIfAbsent(ctx context.Context, cycle *models.CompletedCycle) error {
	query := `
		INSERT INTO completed_cycles (id, bot_id, cycle_number, wins_amount, losses_amount, draws_amount,
		                              active_pool, net_profit, roi_active, total_bet_amount,
		                              wins_count, losses_count, draws_count, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ON CONSTRAINT uq_completed_cycles_bot_cycle DO NOTHING
	`

	tag, err := r.db.GetPool().Exec(ctx, query,
		cycle.ID, cycle.BotID, cycle.CycleNumber, cycle.WinsAmount, cycle.LossesAmount, cycle.DrawsAmount,
		cycle.ActivePool, cycle.NetProfit, cycle.ROIActive, cycle.TotalBetAmount,
		cycle.WinsCount, cycle.LossesCount, cycle.DrawsCount, cycle.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert completed cycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDuplicateKey
	}

	return nil
}

// GetByBotAndCycle retrieves one completed cycle
func (r *PostgresCompletedCycleRepository) GetByBotAndCycle(ctx context.Context, botID uuid.UUID, cycleNumber int) (*models.CompletedCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM completed_cycles WHERE bot_id = $1 AND cycle_number = $2`

	c, err := scanCycle(r.db.GetPool().QueryRow(ctx, query, botID, cycleNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completed cycle: %w", err)
	}

	return c, nil
}

// ListByBot retrieves a bot's completed cycles, most recent first
func (r *PostgresCompletedCycleRepository) ListByBot(ctx context.Context, botID uuid.UUID) ([]*models.CompletedCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM completed_cycles WHERE bot_id = $1 ORDER BY cycle_number DESC`

	rows, err := r.db.GetPool().Query(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.CompletedCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed cycle: %w", err)
		}
		cycles = append(cycles, c)
	}

	return cycles, rows.Err()
}

func scanCycle(row pgx.Row) (*models.CompletedCycle, error) {
	c := &models.CompletedCycle{}
	err := row.Scan(
		&c.ID, &c.BotID, &c.CycleNumber, &c.WinsAmount, &c.LossesAmount, &c.DrawsAmount,
		&c.ActivePool, &c.NetProfit, &c.ROIActive, &c.TotalBetAmount,
		&c.WinsCount, &c.LossesCount, &c.DrawsCount, &c.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

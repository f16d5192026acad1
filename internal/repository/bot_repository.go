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

// PostgresBotRepository implements BotRepository for PostgreSQL
type PostgresBotRepository struct {
	db *database.DB
}

// NewPostgresBotRepository creates a new bot repository
func NewPostgresBotRepository(db *database.DB) BotRepository {
	return &PostgresBotRepository{db: db}
}

const botColumns = `id, name, kind, stake_min, stake_max, cycle_games, win_pct, loss_pct, draw_pct,
	win_count, loss_count, draw_count, cycle_pause_seconds, current_cycle, paused_until, is_active,
	created_at, updated_at`

// Create inserts a new bot profile
func (r *PostgresBotRepository) Create(ctx context.Context, bot *models.BotProfile) error {
	query := `
		INSERT INTO bots (id, name, kind, stake_min, stake_max, cycle_games, win_pct, loss_pct, draw_pct,
		                  win_count, loss_count, draw_count, cycle_pause_seconds, current_cycle, paused_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		bot.ID, bot.Name, bot.Kind, bot.StakeMin, bot.StakeMax, bot.CycleGames,
		bot.WinPct, bot.LossPct, bot.DrawPct, bot.WinCount, bot.LossCount, bot.DrawCount,
		int64(bot.CyclePause/time.Second), bot.CurrentCycle, bot.PausedUntil, bot.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	return nil
}

// GetByID retrieves a bot profile by ID
func (r *PostgresBotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BotProfile, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`

	bot, err := scanBot(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	return bot, nil
}

// GetActive retrieves all active bot profiles
func (r *PostgresBotRepository) GetActive(ctx context.Context) ([]*models.BotProfile, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE is_active ORDER BY created_at ASC`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active bots: %w", err)
	}
	defer rows.Close()

	var bots []*models.BotProfile
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bot: %w", err)
		}
		bots = append(bots, bot)
	}

	return bots, rows.Err()
}

// Update updates an existing bot profile and its scheduler state
func (r *PostgresBotRepository) Update(ctx context.Context, bot *models.BotProfile) error {
	query := `
		UPDATE bots SET
			name = $2, kind = $3, stake_min = $4, stake_max = $5, cycle_games = $6,
			win_pct = $7, loss_pct = $8, draw_pct = $9, win_count = $10, loss_count = $11,
			draw_count = $12, cycle_pause_seconds = $13, current_cycle = $14, paused_until = $15,
			is_active = $16, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.GetPool().Exec(ctx, query,
		bot.ID, bot.Name, bot.Kind, bot.StakeMin, bot.StakeMax, bot.CycleGames,
		bot.WinPct, bot.LossPct, bot.DrawPct, bot.WinCount, bot.LossCount, bot.DrawCount,
		int64(bot.CyclePause/time.Second), bot.CurrentCycle, bot.PausedUntil, bot.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update bot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete removes a bot profile
func (r *PostgresBotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.GetPool().Exec(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanBot(row pgx.Row) (*models.BotProfile, error) {
	bot := &models.BotProfile{}
	var pauseSeconds int64
	err := row.Scan(
		&bot.ID, &bot.Name, &bot.Kind, &bot.StakeMin, &bot.StakeMax, &bot.CycleGames,
		&bot.WinPct, &bot.LossPct, &bot.DrawPct, &bot.WinCount, &bot.LossCount, &bot.DrawCount,
		&pauseSeconds, &bot.CurrentCycle, &bot.PausedUntil, &bot.IsActive,
		&bot.CreatedAt, &bot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	bot.CyclePause = time.Duration(pauseSeconds) * time.Second
	return bot, nil
}

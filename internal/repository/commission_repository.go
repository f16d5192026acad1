package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourusername/cyclebet/internal/database"
	"github.com/yourusername/cyclebet/internal/models"
)

// PostgresCommissionEventRepository implements CommissionEventRepository for PostgreSQL
type PostgresCommissionEventRepository struct {
	db *database.DB
}

// NewPostgresCommissionEventRepository creates a new commission event repository
func NewPostgresCommissionEventRepository(db *database.DB) CommissionEventRepository {
	return &PostgresCommissionEventRepository{db: db}
}

// Create inserts a new commission event
func (r *PostgresCommissionEventRepository) Create(ctx context.Context, event *models.CommissionEvent) error {
	query := `
		INSERT INTO commission_events (id, wager_id, payer_id, amount, state, attribution)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		event.ID, event.WagerID, event.PayerID, event.Amount, event.State, event.Attribution,
	)
	if err != nil {
		return fmt.Errorf("failed to create commission event: %w", err)
	}

	return nil
}

// GetByWager retrieves all commission events for a wager
func (r *PostgresCommissionEventRepository) GetByWager(ctx context.Context, wagerID uuid.UUID) ([]*models.CommissionEvent, error) {
	query := `
		SELECT id, wager_id, payer_id, amount, state, attribution, created_at, updated_at
		FROM commission_events
		WHERE wager_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commission events: %w", err)
	}
	defer rows.Close()

	var events []*models.CommissionEvent
	for rows.Next() {
		e := &models.CommissionEvent{}
		if err := rows.Scan(&e.ID, &e.WagerID, &e.PayerID, &e.Amount, &e.State, &e.Attribution, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commission event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// UpdateState transitions an event between commission states conditionally
func (r *PostgresCommissionEventRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to models.CommissionState) error {
	query := `UPDATE commission_events SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2`

	tag, err := r.db.GetPool().Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update commission event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStateConflict
	}

	return nil
}

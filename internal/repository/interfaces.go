// Package repository provides data access for bots, wagers, commission
// events and completed cycles.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/cyclebet/internal/models"
)

// BotRepository manages bot profiles and their persisted scheduler state
type BotRepository interface {
	Create(ctx context.Context, bot *models.BotProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BotProfile, error)
	GetActive(ctx context.Context) ([]*models.BotProfile, error)
	Update(ctx context.Context, bot *models.BotProfile) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// WagerRepository manages wagers. State transitions are conditional writes:
// they fail with models.ErrStateConflict when the wager is no longer in the
// expected source state, which is what serializes concurrent joins.
type WagerRepository interface {
	// CreateBatch inserts a cycle's wagers atomically; either every wager
	// becomes visible or none do.
	CreateBatch(ctx context.Context, wagers []*models.Wager) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wager, error)
	GetByBot(ctx context.Context, botID uuid.UUID, states ...models.WagerState) ([]*models.Wager, error)
	GetMatchedBefore(ctx context.Context, deadline time.Time) ([]*models.Wager, error)
	CountByCycle(ctx context.Context, botID uuid.UUID, cycleNumber int) (models.WagerCounts, error)
	CountAll(ctx context.Context, botID uuid.UUID) (int, error)

	Match(ctx context.Context, id, counterpartyID uuid.UUID, kind models.ParticipantKind, counterCommit string, deadline time.Time) error
	ReplaceOpen(ctx context.Context, botID uuid.UUID, cycleNumber int, replacements []*models.Wager) ([]*models.Wager, error)
	Settle(ctx context.Context, id uuid.UUID, result models.Result) error
	RevertSettle(ctx context.Context, id uuid.UUID) error
	Reopen(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error

	SettledTotals(ctx context.Context, botID uuid.UUID, cycleNumber int) (models.CycleTotals, error)
}

// CompletedCycleRepository manages the immutable per-cycle accounting records
type CompletedCycleRepository interface {
	// InsertIfAbsent inserts the record under the (bot_id, cycle_number)
	// uniqueness constraint and returns models.ErrDuplicateKey when a
	// concurrent closer already won.
	InsertIfAbsent(ctx context.Context, cycle *models.CompletedCycle) error
	GetByBotAndCycle(ctx context.Context, botID uuid.UUID, cycleNumber int) (*models.CompletedCycle, error)
	ListByBot(ctx context.Context, botID uuid.UUID) ([]*models.CompletedCycle, error)
}

// CommissionEventRepository manages commission events
type CommissionEventRepository interface {
	Create(ctx context.Context, event *models.CommissionEvent) error
	GetByWager(ctx context.Context, wagerID uuid.UUID) ([]*models.CommissionEvent, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.CommissionState) error
}

// Repositories bundles all repository dependencies
type Repositories struct {
	Bots        BotRepository
	Wagers      WagerRepository
	Cycles      CompletedCycleRepository
	Commissions CommissionEventRepository
}

// Package service exposes the administrative surface of the cycle engine to
// the rest of the platform.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/engine"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
)

const (
	historyCacheTTL     = 5 * time.Minute
	historyCacheCleanup = 10 * time.Minute
)

// BotService manages bot profiles and answers operational queries. Cycle
// history is served from a short-lived cache since closed cycles never
// change; the cache entry is dropped whenever the bot's wager set mutates
// through this service.
type BotService struct {
	repos   *repository.Repositories
	engine  *engine.Engine
	logger  *logrus.Logger
	history *cache.Cache
}

// NewBotService creates a bot service
func NewBotService(repos *repository.Repositories, eng *engine.Engine, logger *logrus.Logger) *BotService {
	return &BotService{
		repos:   repos,
		engine:  eng,
		logger:  logger,
		history: cache.New(historyCacheTTL, historyCacheCleanup),
	}
}

// BotUpdate carries a partial profile change. Nil fields are left untouched.
type BotUpdate struct {
	Name       *string          `json:"name,omitempty"`
	StakeMin   *decimal.Decimal `json:"stake_min,omitempty"`
	StakeMax   *decimal.Decimal `json:"stake_max,omitempty"`
	CycleGames *int             `json:"cycle_games,omitempty"`
	WinPct     *int             `json:"win_pct,omitempty"`
	LossPct    *int             `json:"loss_pct,omitempty"`
	DrawPct    *int             `json:"draw_pct,omitempty"`
	WinCount   *int             `json:"win_count,omitempty"`
	LossCount  *int             `json:"loss_count,omitempty"`
	DrawCount  *int             `json:"draw_count,omitempty"`
	CyclePause *time.Duration   `json:"cycle_pause,omitempty"`
	IsActive   *bool            `json:"is_active,omitempty"`
}

// ActiveBets describes a bot's in-flight wagers and remaining cycle capacity
type ActiveBets struct {
	BotID             uuid.UUID       `json:"bot_id"`
	CycleNumber       int             `json:"cycle_number"`
	Wagers            []*models.Wager `json:"wagers"`
	RemainingCapacity int             `json:"remaining_capacity"`
}

// CreateBot validates and persists a new bot profile. The scheduler picks it
// up on its next tick and materializes the first cycle.
func (s *BotService) CreateBot(ctx context.Context, profile *models.BotProfile) (*models.BotProfile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	profile.CurrentCycle = 1
	profile.PausedUntil = nil
	profile.IsActive = true

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	if err := s.repos.Bots.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"bot_id":      profile.ID,
		"name":        profile.Name,
		"kind":        profile.Kind,
		"cycle_games": profile.CycleGames,
	}).Info("Bot created")

	return profile, nil
}

// UpdateBot applies a partial profile change. The change never rewrites an
// already materialized cycle; it takes effect from the next materialization.
// Use RecalculateBets to rebuild the current cycle under the new profile.
func (s *BotService) UpdateBot(ctx context.Context, botID uuid.UUID, update *BotUpdate) (*models.BotProfile, error) {
	bot, err := s.repos.Bots.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}

	applyUpdate(bot, update)

	if err := bot.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.Bots.Update(ctx, bot); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"bot_id": bot.ID,
		"name":   bot.Name,
	}).Info("Bot updated")

	return bot, nil
}

func applyUpdate(bot *models.BotProfile, update *BotUpdate) {
	if update.Name != nil {
		bot.Name = *update.Name
	}
	if update.StakeMin != nil {
		bot.StakeMin = *update.StakeMin
	}
	if update.StakeMax != nil {
		bot.StakeMax = *update.StakeMax
	}
	if update.CycleGames != nil {
		bot.CycleGames = *update.CycleGames
	}
	if update.WinPct != nil {
		bot.WinPct = *update.WinPct
	}
	if update.LossPct != nil {
		bot.LossPct = *update.LossPct
	}
	if update.DrawPct != nil {
		bot.DrawPct = *update.DrawPct
	}
	if update.WinCount != nil {
		bot.WinCount = *update.WinCount
	}
	if update.LossCount != nil {
		bot.LossCount = *update.LossCount
	}
	if update.DrawCount != nil {
		bot.DrawCount = *update.DrawCount
	}
	if update.CyclePause != nil {
		bot.CyclePause = *update.CyclePause
	}
	if update.IsActive != nil {
		bot.IsActive = *update.IsActive
	}
}

// RecalculateBets rebuilds the bot's current cycle from scratch under its
// present profile. Open wagers are cancelled with their commission returned;
// the cycle number does not change.
func (s *BotService) RecalculateBets(ctx context.Context, botID uuid.UUID) error {
	if err := s.engine.Recalculate(ctx, botID); err != nil {
		return err
	}
	s.history.Delete(botID.String())
	return nil
}

// GetActiveBets returns the bot's in-flight wagers and how many more wagers
// the current cycle can still absorb.
func (s *BotService) GetActiveBets(ctx context.Context, botID uuid.UUID) (*ActiveBets, error) {
	bot, err := s.repos.Bots.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}

	wagers, err := s.repos.Wagers.GetByBot(ctx, botID, models.WagerStateOpen, models.WagerStateMatched)
	if err != nil {
		return nil, err
	}

	counts, err := s.repos.Wagers.CountByCycle(ctx, botID, bot.CurrentCycle)
	if err != nil {
		return nil, err
	}
	remaining := bot.CycleGames - counts.InFlight() - counts.Settled
	if remaining < 0 {
		remaining = 0
	}

	return &ActiveBets{
		BotID:             botID,
		CycleNumber:       bot.CurrentCycle,
		Wagers:            wagers,
		RemainingCapacity: remaining,
	}, nil
}

// GetCycleHistory returns the bot's permanent cycle accounting records,
// newest first, served from cache when fresh.
func (s *BotService) GetCycleHistory(ctx context.Context, botID uuid.UUID) ([]*models.CompletedCycle, error) {
	if cached, found := s.history.Get(botID.String()); found {
		return cached.([]*models.CompletedCycle), nil
	}

	records, err := s.repos.Cycles.ListByBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	s.history.Set(botID.String(), records, cache.DefaultExpiration)
	return records, nil
}

// DeleteBot cancels the bot's open wagers, releasing any frozen commission,
// and removes the profile.
func (s *BotService) DeleteBot(ctx context.Context, botID uuid.UUID) error {
	if _, err := s.repos.Bots.GetByID(ctx, botID); err != nil {
		return err
	}

	cancelled, err := s.engine.CancelOpenWagers(ctx, botID)
	if err != nil {
		return fmt.Errorf("failed to cancel open wagers: %w", err)
	}

	if err := s.repos.Bots.Delete(ctx, botID); err != nil {
		return err
	}
	s.engine.ForgetBot(botID)
	s.history.Delete(botID.String())

	s.logger.WithFields(logrus.Fields{
		"bot_id":    botID,
		"cancelled": cancelled,
	}).Info("Bot deleted")

	return nil
}

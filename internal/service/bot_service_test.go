package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/engine"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

func newTestService(t *testing.T) (*BotService, *repository.Repositories, *wallet.MemoryWallet) {
	t.Helper()

	repos := repository.NewMemoryRepositories()
	w := wallet.NewMemoryWallet()
	cfg := &config.Config{
		Commission: config.CommissionConfig{Rate: 0.03},
		Engine: config.EngineConfig{
			TickIntervalSeconds:  1,
			SweepIntervalSeconds: 5,
			MatchTimeoutSeconds:  60,
			DefaultPauseSeconds:  0,
		},
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	eng := engine.New(&repos, w, cfg, logger)
	return NewBotService(&repos, eng, logger), &repos, w
}

func referenceProfile() *models.BotProfile {
	return &models.BotProfile{
		Name:       "reference",
		Kind:       models.ParticipantHumanBot,
		StakeMin:   decimal.NewFromInt(1),
		StakeMax:   decimal.NewFromInt(100),
		CycleGames: 16,
		WinPct:     44,
		LossPct:    36,
		DrawPct:    20,
		WinCount:   7,
		LossCount:  6,
		DrawCount:  3,
		CyclePause: time.Millisecond,
	}
}

func TestCreateBotAssignsIdentityAndDefaults(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, bot.ID)
	assert.Equal(t, 1, bot.CurrentCycle)
	assert.True(t, bot.IsActive)
	assert.Nil(t, bot.PausedUntil)

	stored, err := repos.Bots.GetByID(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.Name, stored.Name)
}

func TestCreateBotRejectsInvalidProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	profile := referenceProfile()
	profile.WinCount = 8 // counts no longer sum to cycle_games

	_, err := svc.CreateBot(ctx, profile)
	require.Error(t, err)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateBotAppliesOnlyProvidedFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)

	newMax := decimal.NewFromInt(250)
	pause := 30 * time.Second
	updated, err := svc.UpdateBot(ctx, bot.ID, &BotUpdate{
		StakeMax:   &newMax,
		CyclePause: &pause,
	})
	require.NoError(t, err)

	assert.True(t, updated.StakeMax.Equal(newMax))
	assert.Equal(t, pause, updated.CyclePause)
	assert.Equal(t, bot.Name, updated.Name)
	assert.True(t, updated.StakeMin.Equal(bot.StakeMin))
}

func TestUpdateBotRejectsInvalidResult(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)

	bad := decimal.NewFromInt(500) // above stake_max
	_, err = svc.UpdateBot(ctx, bot.ID, &BotUpdate{StakeMin: &bad})
	require.Error(t, err)

	stored, err := repos.Bots.GetByID(ctx, bot.ID)
	require.NoError(t, err)
	assert.True(t, stored.StakeMin.Equal(bot.StakeMin))
}

func TestGetActiveBetsReportsRemainingCapacity(t *testing.T) {
	svc, _, w := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)
	w.Deposit(bot.ID, decimal.NewFromInt(1000))

	// Nothing materialized yet: the whole cycle is still capacity.
	active, err := svc.GetActiveBets(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.ID, active.BotID)
	assert.Equal(t, 1, active.CycleNumber)
	assert.Empty(t, active.Wagers)
	assert.Equal(t, 16, active.RemainingCapacity)

	svc.engine.Tick(ctx)

	active, err = svc.GetActiveBets(ctx, bot.ID)
	require.NoError(t, err)
	assert.Len(t, active.Wagers, 16)
	assert.Equal(t, 0, active.RemainingCapacity)
}

func TestGetCycleHistoryServesFromCache(t *testing.T) {
	svc, repos, w := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)
	w.Deposit(bot.ID, decimal.NewFromInt(1000))

	record := models.NewCompletedCycle(bot.ID, 1, models.CycleTotals{
		WinsAmount:   decimal.NewFromInt(356),
		LossesAmount: decimal.NewFromInt(291),
		DrawsAmount:  decimal.NewFromInt(162),
		WinsCount:    7,
		LossesCount:  6,
		DrawsCount:   3,
	}, time.Now().UTC())
	require.NoError(t, repos.Cycles.InsertIfAbsent(ctx, record))

	first, err := svc.GetCycleHistory(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A record inserted behind the cache is not visible until invalidation.
	second := models.NewCompletedCycle(bot.ID, 2, models.CycleTotals{}, time.Now().UTC())
	require.NoError(t, repos.Cycles.InsertIfAbsent(ctx, second))

	cached, err := svc.GetCycleHistory(ctx, bot.ID)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	require.NoError(t, svc.RecalculateBets(ctx, bot.ID))

	fresh, err := svc.GetCycleHistory(ctx, bot.ID)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestDeleteBotCancelsWagersAndReleasesCommission(t *testing.T) {
	svc, repos, w := newTestService(t)
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, referenceProfile())
	require.NoError(t, err)
	w.Deposit(bot.ID, decimal.NewFromInt(1000))
	svc.engine.Tick(ctx)

	require.True(t, w.BalanceOf(bot.ID).Frozen.IsPositive())

	require.NoError(t, svc.DeleteBot(ctx, bot.ID))

	assert.True(t, w.BalanceOf(bot.ID).Frozen.IsZero())

	_, err = repos.Bots.GetByID(ctx, bot.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDeleteBotUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.DeleteBot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

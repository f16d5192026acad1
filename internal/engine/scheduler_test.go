package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cyclebet/internal/commit"
	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

func newTestEngine(t *testing.T) (*Engine, *repository.Repositories, *wallet.MemoryWallet) {
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

	return New(&repos, w, cfg, logger), &repos, w
}

func referenceBot(kind models.ParticipantKind) *models.BotProfile {
	return &models.BotProfile{
		ID:           uuid.New(),
		Name:         "reference",
		Kind:         kind,
		StakeMin:     decimal.NewFromInt(1),
		StakeMax:     decimal.NewFromInt(100),
		CycleGames:   16,
		WinPct:       44,
		LossPct:      36,
		DrawPct:      20,
		WinCount:     7,
		LossCount:    6,
		DrawCount:    3,
		CyclePause:   time.Millisecond,
		CurrentCycle: 1,
		IsActive:     true,
	}
}

func TestTickMaterializesFirstCycle(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))

	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	require.Len(t, open, 16)

	total := decimal.Zero
	for _, w := range open {
		assert.Equal(t, 1, w.CycleNumber)
		assert.NotEmpty(t, w.CommitHash)
		total = total.Add(w.StakeAmount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(809)))

	// A second tick must not materialize on top of an active cycle.
	e.Tick(ctx)
	counts, err := repos.Wagers.CountByCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 16, counts.Open)
}

func TestConcurrentJoinsAreMutuallyExclusive(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	target := open[0]

	const joiners = 10
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.JoinWager(ctx, target.ID, uuid.New(), models.ParticipantPlayer, "commitment")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrStateConflict)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one join wins the open wager")

	counts, err := repos.Wagers.CountByCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, counts.InFlight()+counts.Settled, bot.CycleGames)
}

func TestJoinRejectedBeyondCycleCapacity(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	bot.CycleGames = 2
	bot.WinCount, bot.LossCount, bot.DrawCount = 1, 1, 0
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	// An oversupplied pool: one wager beyond the cycle's capacity.
	extra := &models.Wager{
		ID:             uuid.New(),
		BotID:          bot.ID,
		CycleNumber:    1,
		StakeAmount:    decimal.NewFromInt(10),
		IntendedResult: models.ResultWin,
		State:          models.WagerStateOpen,
		CommitHash:     "placeholder",
	}
	require.NoError(t, repos.Wagers.CreateBatch(ctx, []*models.Wager{extra}))

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	require.Len(t, open, 3)

	matched := 0
	var capacityErr *models.CapacityViolation
	for _, w := range open {
		_, err := e.JoinWager(ctx, w.ID, uuid.New(), models.ParticipantPlayer, "commitment")
		if err == nil {
			matched++
			continue
		}
		require.ErrorAs(t, err, &capacityErr)
	}

	assert.Equal(t, 2, matched)
	require.NotNil(t, capacityErr, "the join past capacity is rejected")

	counts, err := repos.Wagers.CountByCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, counts.Matched+counts.Settled, bot.CycleGames)
}

func TestLeaveReopensWagerWithCreatorCommissionFrozen(t *testing.T) {
	e, repos, w := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantHumanBot)
	bot.StakeMin, bot.StakeMax = decimal.NewFromInt(20), decimal.NewFromInt(20)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	w.Deposit(bot.ID, decimal.NewFromInt(1000))

	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	target := open[0]
	fee := e.Ledger().Fee(target.StakeAmount)

	player := uuid.New()
	w.Deposit(player, decimal.NewFromInt(50))

	_, err = e.JoinWager(ctx, target.ID, player, models.ParticipantPlayer, "commitment")
	require.NoError(t, err)
	assert.True(t, w.BalanceOf(player).Frozen.Equal(fee))
	creatorFrozen := w.BalanceOf(bot.ID).Frozen

	require.NoError(t, e.LeaveWager(ctx, target.ID, player))

	reopened, err := repos.Wagers.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WagerStateOpen, reopened.State)
	assert.Nil(t, reopened.CounterpartyID)
	assert.True(t, reopened.StakeAmount.Equal(target.StakeAmount), "same stake re-enters the pool")
	assert.Equal(t, target.IntendedResult, reopened.IntendedResult)

	// The leaver got their commission back; the creator's stays frozen.
	assert.True(t, w.BalanceOf(player).Frozen.IsZero())
	assert.True(t, w.BalanceOf(player).Available.Equal(decimal.NewFromInt(50)))
	assert.True(t, w.BalanceOf(bot.ID).Frozen.Equal(creatorFrozen))
}

func TestSweepReopensTimedOutWagers(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	target := open[0]

	// Match with an already-expired deadline, as if the counterparty went
	// silent past the response window.
	require.NoError(t, repos.Wagers.Match(ctx, target.ID, uuid.New(), models.ParticipantPlayer,
		"commitment", time.Now().Add(-time.Minute)))

	reopened, err := e.SweepTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened)

	stored, err := repos.Wagers.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WagerStateOpen, stored.State)
	assert.Nil(t, stored.MatchDeadline)
}

func TestRecalculateRebuildsCurrentCycle(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	before, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	require.Len(t, before, 16)

	require.NoError(t, e.Recalculate(ctx, bot.ID))

	after, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	require.Len(t, after, 16, "rebuild leaves exactly cycle_games open wagers")

	total := decimal.Zero
	for _, w := range after {
		assert.Equal(t, 1, w.CycleNumber, "cycle number does not change")
		total = total.Add(w.StakeAmount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(809)))

	cancelled, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateCancelled)
	require.NoError(t, err)
	assert.Len(t, cancelled, 16)

	stored, err := repos.Bots.GetByID(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentCycle)
}

func TestRecalculateRejectedOnceMatched(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	_, err = e.JoinWager(ctx, open[0].ID, uuid.New(), models.ParticipantPlayer, "commitment")
	require.NoError(t, err)

	err = e.Recalculate(ctx, bot.ID)
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestCancelOpenWagersForDeactivation(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	cancelled, err := e.CancelOpenWagers(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, cancelled)

	counts, err := repos.Wagers.CountByCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.InFlight())
}

// TestFullCycleLifecycle drives the reference profile end to end: materialize,
// join and settle all sixteen wagers, then verify the cycle closed with the
// reference accounting values and the bot moved on to its next cycle.
func TestFullCycleLifecycle(t *testing.T) {
	e, repos, _ := newTestEngine(t)
	ctx := context.Background()

	bot := referenceBot(models.ParticipantRegularBot)
	require.NoError(t, repos.Bots.Create(ctx, bot))
	e.Tick(ctx)

	open, err := repos.Wagers.GetByBot(ctx, bot.ID, models.WagerStateOpen)
	require.NoError(t, err)
	require.Len(t, open, 16)

	for i, w := range open {
		salt := "salt"
		move := models.MoveRock
		if i%2 == 0 {
			move = models.MoveScissors
		}

		_, err := e.JoinWager(ctx, w.ID, uuid.New(), models.ParticipantPlayer, commit.New(string(move), salt))
		require.NoError(t, err)

		settled, err := e.SettleWager(ctx, w.ID, move, salt)
		require.NoError(t, err)
		require.NotNil(t, settled.SettledResult)
		assert.Equal(t, w.IntendedResult, *settled.SettledResult)
	}

	record, err := repos.Cycles.GetByBotAndCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.True(t, record.ActivePool.Equal(decimal.NewFromInt(647)))
	assert.True(t, record.NetProfit.Equal(decimal.NewFromInt(65)))
	assert.True(t, record.ROIActive.Equal(decimal.RequireFromString("10.05")))

	stored, err := repos.Bots.GetByID(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentCycle)
	require.NotNil(t, stored.PausedUntil)

	// After the pause elapses the next tick starts cycle two.
	time.Sleep(2 * time.Millisecond)
	e.Tick(ctx)

	counts, err := repos.Wagers.CountByCycle(ctx, bot.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 16, counts.Open)
}

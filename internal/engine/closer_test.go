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

	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
)

func newTestCloser(t *testing.T) (*Closer, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewCloser(&repos, logger), &repos
}

// seedSettledCycle inserts settled wagers matching the reference cycle:
// 7 wins summing 356, 6 losses summing 291, 3 draws summing 162.
func seedSettledCycle(t *testing.T, repos *repository.Repositories, botID uuid.UUID, cycleNumber int) {
	t.Helper()
	ctx := context.Background()

	stakes := map[models.Result][]int64{
		models.ResultWin:  {50, 50, 50, 50, 50, 50, 56},
		models.ResultLoss: {48, 48, 48, 48, 48, 51},
		models.ResultDraw: {54, 54, 54},
	}

	for result, amounts := range stakes {
		for _, amount := range amounts {
			w := &models.Wager{
				ID:             uuid.New(),
				BotID:          botID,
				CycleNumber:    cycleNumber,
				StakeAmount:    decimal.NewFromInt(amount),
				IntendedResult: result,
				State:          models.WagerStateOpen,
				CommitHash:     "placeholder",
			}
			require.NoError(t, repos.Wagers.CreateBatch(ctx, []*models.Wager{w}))
			require.NoError(t, repos.Wagers.Match(ctx, w.ID, uuid.New(), models.ParticipantPlayer,
				"commitment", time.Now().Add(time.Minute)))
			require.NoError(t, repos.Wagers.Settle(ctx, w.ID, result))
		}
	}
}

func TestCloseCycleAccounting(t *testing.T) {
	closer, repos := newTestCloser(t)
	botID := uuid.New()
	seedSettledCycle(t, repos, botID, 1)

	record, created, err := closer.CloseCycle(context.Background(), botID, 1)
	require.NoError(t, err)
	assert.True(t, created)

	assert.True(t, record.WinsAmount.Equal(decimal.NewFromInt(356)))
	assert.True(t, record.LossesAmount.Equal(decimal.NewFromInt(291)))
	assert.True(t, record.DrawsAmount.Equal(decimal.NewFromInt(162)))
	assert.True(t, record.ActivePool.Equal(decimal.NewFromInt(647)))
	assert.True(t, record.NetProfit.Equal(decimal.NewFromInt(65)))
	assert.True(t, record.ROIActive.Equal(decimal.RequireFromString("10.05")))
	assert.True(t, record.TotalBetAmount.Equal(decimal.NewFromInt(809)))
	assert.Equal(t, 7, record.WinsCount)
	assert.Equal(t, 6, record.LossesCount)
	assert.Equal(t, 3, record.DrawsCount)
}

func TestCloseCycleZeroActivePool(t *testing.T) {
	closer, repos := newTestCloser(t)
	ctx := context.Background()
	botID := uuid.New()

	w := &models.Wager{
		ID:             uuid.New(),
		BotID:          botID,
		CycleNumber:    1,
		StakeAmount:    decimal.NewFromInt(30),
		IntendedResult: models.ResultDraw,
		State:          models.WagerStateOpen,
		CommitHash:     "placeholder",
	}
	require.NoError(t, repos.Wagers.CreateBatch(ctx, []*models.Wager{w}))
	require.NoError(t, repos.Wagers.Match(ctx, w.ID, uuid.New(), models.ParticipantPlayer,
		"commitment", time.Now().Add(time.Minute)))
	require.NoError(t, repos.Wagers.Settle(ctx, w.ID, models.ResultDraw))

	record, created, err := closer.CloseCycle(ctx, botID, 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, record.ActivePool.IsZero())
	assert.True(t, record.ROIActive.IsZero(), "roi is zero when there were no decisive outcomes")
}

func TestCloseCycleIdempotentSequentially(t *testing.T) {
	closer, repos := newTestCloser(t)
	ctx := context.Background()
	botID := uuid.New()
	seedSettledCycle(t, repos, botID, 3)

	first, created, err := closer.CloseCycle(ctx, botID, 3)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := closer.CloseCycle(ctx, botID, 3)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.NetProfit.Equal(second.NetProfit))

	records, err := repos.Cycles.ListByBot(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCloseCycleIdempotentConcurrently(t *testing.T) {
	closer, repos := newTestCloser(t)
	ctx := context.Background()
	botID := uuid.New()
	seedSettledCycle(t, repos, botID, 5)

	const closers = 8
	var wg sync.WaitGroup
	results := make([]*models.CompletedCycle, closers)
	createdFlags := make([]bool, closers)
	errs := make([]error, closers)

	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], createdFlags[i], errs[i] = closer.CloseCycle(ctx, botID, 5)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < closers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		if createdFlags[i] {
			winners++
		}
		assert.Equal(t, results[0].ID, results[i].ID, "every closer sees the same row")
	}
	assert.Equal(t, 1, winners, "exactly one closer creates the record")

	records, err := repos.Cycles.ListByBot(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

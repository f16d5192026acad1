package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cyclebet/internal/commit"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

func TestCounterMove(t *testing.T) {
	tests := []struct {
		opponent models.Move
		intended models.Result
		want     models.Move
	}{
		{models.MoveRock, models.ResultWin, models.MovePaper},
		{models.MoveRock, models.ResultLoss, models.MoveScissors},
		{models.MoveRock, models.ResultDraw, models.MoveRock},
		{models.MovePaper, models.ResultWin, models.MoveScissors},
		{models.MovePaper, models.ResultLoss, models.MoveRock},
		{models.MovePaper, models.ResultDraw, models.MovePaper},
		{models.MoveScissors, models.ResultWin, models.MoveRock},
		{models.MoveScissors, models.ResultLoss, models.MovePaper},
		{models.MoveScissors, models.ResultDraw, models.MoveScissors},
	}

	for _, tt := range tests {
		t.Run(string(tt.opponent)+"_"+string(tt.intended), func(t *testing.T) {
			assert.Equal(t, tt.want, CounterMove(tt.opponent, tt.intended))
		})
	}
}

func newTestExecutor(t *testing.T) (*Executor, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	ledger := NewLedger(&repos, wallet.NewMemoryWallet(), 0.03, logger)
	return NewExecutor(&repos, ledger, logger), &repos
}

func seedMatchedWager(t *testing.T, repos *repository.Repositories, intended models.Result, move models.Move, salt string) *models.Wager {
	t.Helper()
	ctx := context.Background()

	w := &models.Wager{
		ID:             uuid.New(),
		BotID:          uuid.New(),
		CycleNumber:    1,
		StakeAmount:    decimal.NewFromInt(10),
		IntendedResult: intended,
		State:          models.WagerStateOpen,
		CommitHash:     "placeholder",
	}
	require.NoError(t, repos.Wagers.CreateBatch(ctx, []*models.Wager{w}))
	require.NoError(t, repos.Wagers.Match(ctx, w.ID, uuid.New(), models.ParticipantPlayer,
		commit.New(string(move), salt), time.Now().Add(time.Minute)))

	matched, err := repos.Wagers.GetByID(ctx, w.ID)
	require.NoError(t, err)
	return matched
}

func TestSettleRecordsPlannedOutcome(t *testing.T) {
	exec, repos := newTestExecutor(t)
	ctx := context.Background()

	for _, intended := range models.Results {
		w := seedMatchedWager(t, repos, intended, models.MoveRock, "salt-1")

		settled, err := exec.Settle(ctx, w, models.MoveRock, "salt-1")
		require.NoError(t, err)
		require.NotNil(t, settled.SettledResult)
		assert.Equal(t, intended, *settled.SettledResult)

		stored, err := repos.Wagers.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WagerStateSettled, stored.State)
		require.NotNil(t, stored.SettledResult)
		assert.Equal(t, intended, *stored.SettledResult)
	}
}

func TestSettleRejectsRevealNotMatchingCommitment(t *testing.T) {
	exec, repos := newTestExecutor(t)
	ctx := context.Background()

	w := seedMatchedWager(t, repos, models.ResultWin, models.MoveRock, "salt-1")

	_, err := exec.Settle(ctx, w, models.MoveRock, "wrong-salt")
	assert.ErrorIs(t, err, models.ErrInvalidMove)

	_, err = exec.Settle(ctx, w, models.MovePaper, "salt-1")
	assert.ErrorIs(t, err, models.ErrInvalidMove)

	stored, err := repos.Wagers.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WagerStateMatched, stored.State, "failed reveal leaves the wager matched")
}

func TestSettleRejectsUnmatchedWager(t *testing.T) {
	exec, repos := newTestExecutor(t)
	ctx := context.Background()

	w := &models.Wager{
		ID:             uuid.New(),
		BotID:          uuid.New(),
		CycleNumber:    1,
		StakeAmount:    decimal.NewFromInt(10),
		IntendedResult: models.ResultWin,
		State:          models.WagerStateOpen,
		CommitHash:     "placeholder",
	}
	require.NoError(t, repos.Wagers.CreateBatch(ctx, []*models.Wager{w}))

	_, err := exec.Settle(ctx, w, models.MoveRock, "salt")
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestSettleRejectsUnknownMove(t *testing.T) {
	exec, repos := newTestExecutor(t)
	ctx := context.Background()

	w := seedMatchedWager(t, repos, models.ResultWin, models.MoveRock, "salt-1")

	_, err := exec.Settle(ctx, w, models.Move("lizard"), "salt-1")
	assert.ErrorIs(t, err, models.ErrInvalidMove)
}

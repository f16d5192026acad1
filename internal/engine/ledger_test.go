package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

func newTestLedger(t *testing.T) (*Ledger, *repository.Repositories, *wallet.MemoryWallet) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	w := wallet.NewMemoryWallet()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewLedger(&repos, w, 0.03, logger), &repos, w
}

func matchedWager(stake int64, creator, counterparty uuid.UUID, kind models.ParticipantKind) *models.Wager {
	commitHash := "placeholder"
	return &models.Wager{
		ID:                 uuid.New(),
		BotID:              creator,
		CycleNumber:        1,
		StakeAmount:        decimal.NewFromInt(stake),
		IntendedResult:     models.ResultWin,
		State:              models.WagerStateMatched,
		CounterpartyID:     &counterparty,
		CounterpartyKind:   &kind,
		CounterpartyCommit: &commitHash,
	}
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name string
		a, b models.ParticipantKind
		want models.CommissionAttribution
	}{
		{"player vs player", models.ParticipantPlayer, models.ParticipantPlayer, models.AttributionPlayerFee},
		{"player vs human bot", models.ParticipantPlayer, models.ParticipantHumanBot, models.AttributionBotInteractionFee},
		{"human bot vs player", models.ParticipantHumanBot, models.ParticipantPlayer, models.AttributionBotInteractionFee},
		{"player vs regular bot", models.ParticipantPlayer, models.ParticipantRegularBot, models.AttributionExempt},
		{"regular bot vs player", models.ParticipantRegularBot, models.ParticipantPlayer, models.AttributionExempt},
		{"regular bot vs human bot", models.ParticipantRegularBot, models.ParticipantHumanBot, models.AttributionExempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policyFor(tt.a, tt.b))
		})
	}
}

func TestHumanBotDrawReleasesBothSides(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	bot := uuid.New()
	player := uuid.New()
	w.Deposit(bot, decimal.NewFromInt(100))
	w.Deposit(player, decimal.NewFromInt(100))

	wager := matchedWager(25, bot, player, models.ParticipantPlayer)

	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantHumanBot))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantHumanBot))

	fee := decimal.RequireFromString("0.75")
	assert.True(t, w.BalanceOf(bot).Frozen.Equal(fee))
	assert.True(t, w.BalanceOf(player).Frozen.Equal(fee))

	draw := models.ResultDraw
	wager.SettledResult = &draw
	require.NoError(t, ledger.OnSettled(ctx, wager))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.CommissionReleased, ev.State)
		assert.Equal(t, models.AttributionBotInteractionFee, ev.Attribution)
	}

	// Available balances are back to pre-wager levels exactly.
	assert.True(t, w.BalanceOf(bot).Available.Equal(decimal.NewFromInt(100)))
	assert.True(t, w.BalanceOf(player).Available.Equal(decimal.NewFromInt(100)))
	assert.True(t, w.BalanceOf(bot).Frozen.IsZero())
	assert.True(t, w.BalanceOf(player).Frozen.IsZero())
}

func TestDecisiveResultCapturesBothSides(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	bot := uuid.New()
	player := uuid.New()
	w.Deposit(bot, decimal.NewFromInt(100))
	w.Deposit(player, decimal.NewFromInt(100))

	wager := matchedWager(25, bot, player, models.ParticipantPlayer)

	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantHumanBot))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantHumanBot))

	win := models.ResultWin
	wager.SettledResult = &win
	require.NoError(t, ledger.OnSettled(ctx, wager))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.CommissionCaptured, ev.State)
	}

	want := decimal.RequireFromString("99.25")
	assert.True(t, w.BalanceOf(bot).Available.Equal(want))
	assert.True(t, w.BalanceOf(player).Available.Equal(want))
	assert.True(t, w.BalanceOf(bot).Frozen.IsZero())
	assert.True(t, w.BalanceOf(player).Frozen.IsZero())
}

func TestPlayerDrawStillCaptured(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	w.Deposit(a, decimal.NewFromInt(50))
	w.Deposit(b, decimal.NewFromInt(50))

	wager := matchedWager(20, a, b, models.ParticipantPlayer)

	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantPlayer))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantPlayer))

	draw := models.ResultDraw
	wager.SettledResult = &draw
	require.NoError(t, ledger.OnSettled(ctx, wager))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.CommissionCaptured, ev.State)
		assert.Equal(t, models.AttributionPlayerFee, ev.Attribution)
	}
}

func TestRegularBotGeneratesNoCommission(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	bot := uuid.New()
	player := uuid.New()
	w.Deposit(player, decimal.NewFromInt(50))

	wager := matchedWager(25, bot, player, models.ParticipantPlayer)

	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantRegularBot))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantRegularBot))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, w.BalanceOf(player).Frozen.IsZero())
}

func TestLeaveReleasesOnlyTheLeaver(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	w.Deposit(a, decimal.NewFromInt(50))
	w.Deposit(b, decimal.NewFromInt(50))

	wager := matchedWager(20, a, b, models.ParticipantPlayer)
	fee := decimal.RequireFromString("0.60")

	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantPlayer))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantPlayer))

	require.NoError(t, ledger.OnLeave(ctx, wager.ID, b))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		if ev.PayerID == b {
			assert.Equal(t, models.CommissionReleased, ev.State)
		} else {
			assert.Equal(t, models.CommissionFrozen, ev.State)
		}
	}

	assert.True(t, w.BalanceOf(b).Frozen.IsZero())
	assert.True(t, w.BalanceOf(b).Available.Equal(decimal.NewFromInt(50)))
	assert.True(t, w.BalanceOf(a).Frozen.Equal(fee), "creator's commission stays frozen")
}

func TestOnSettledIsIdempotent(t *testing.T) {
	ledger, repos, w := newTestLedger(t)
	ctx := context.Background()

	bot := uuid.New()
	player := uuid.New()
	w.Deposit(bot, decimal.NewFromInt(100))
	w.Deposit(player, decimal.NewFromInt(100))

	wager := matchedWager(25, bot, player, models.ParticipantPlayer)
	require.NoError(t, ledger.FreezeCreator(ctx, wager, models.ParticipantHumanBot))
	require.NoError(t, ledger.FreezeCounterparty(ctx, wager, models.ParticipantHumanBot))

	win := models.ResultWin
	wager.SettledResult = &win
	require.NoError(t, ledger.OnSettled(ctx, wager))
	require.NoError(t, ledger.OnSettled(ctx, wager))

	events, err := repos.Commissions.GetByWager(ctx, wager.ID)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, models.CommissionCaptured, ev.State)
	}
	// Captured exactly once per side.
	want := decimal.RequireFromString("99.25")
	assert.True(t, w.BalanceOf(bot).Available.Equal(want))
	assert.True(t, w.BalanceOf(player).Available.Equal(want))
}

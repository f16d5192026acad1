package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CyclePlan holds the target monetary sums for one cycle. It is created once
// by the planner and read-only afterward.
type CyclePlan struct {
	BotID           uuid.UUID       `json:"bot_id"`
	CycleNumber     int             `json:"cycle_number"`
	TargetWin       decimal.Decimal `json:"target_win"`
	TargetLoss      decimal.Decimal `json:"target_loss"`
	TargetDraw      decimal.Decimal `json:"target_draw"`
	ExactCycleTotal decimal.Decimal `json:"exact_cycle_total"`
}

// TargetFor returns the planned sum for an outcome category
func (p *CyclePlan) TargetFor(r Result) decimal.Decimal {
	switch r {
	case ResultWin:
		return p.TargetWin
	case ResultLoss:
		return p.TargetLoss
	case ResultDraw:
		return p.TargetDraw
	}
	return decimal.Zero
}

// CycleTotals aggregates the settled wagers of one cycle by result
type CycleTotals struct {
	WinsAmount   decimal.Decimal
	LossesAmount decimal.Decimal
	DrawsAmount  decimal.Decimal
	WinsCount    int
	LossesCount  int
	DrawsCount   int
}

// SettledCount returns the number of settled wagers across all categories
func (t CycleTotals) SettledCount() int {
	return t.WinsCount + t.LossesCount + t.DrawsCount
}

// CompletedCycle is the permanent accounting record for one finished cycle.
// The (bot_id, cycle_number) pair is unique at the storage level and the row
// is never mutated after insertion.
type CompletedCycle struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BotID          uuid.UUID       `db:"bot_id" json:"bot_id"`
	CycleNumber    int             `db:"cycle_number" json:"cycle_number"`
	WinsAmount     decimal.Decimal `db:"wins_amount" json:"wins_amount"`
	LossesAmount   decimal.Decimal `db:"losses_amount" json:"losses_amount"`
	DrawsAmount    decimal.Decimal `db:"draws_amount" json:"draws_amount"`
	ActivePool     decimal.Decimal `db:"active_pool" json:"active_pool"`
	NetProfit      decimal.Decimal `db:"net_profit" json:"net_profit"`
	ROIActive      decimal.Decimal `db:"roi_active" json:"roi_active"`
	TotalBetAmount decimal.Decimal `db:"total_bet_amount" json:"total_bet_amount"`
	WinsCount      int             `db:"wins_count" json:"wins_count"`
	LossesCount    int             `db:"losses_count" json:"losses_count"`
	DrawsCount     int             `db:"draws_count" json:"draws_count"`
	ClosedAt       time.Time       `db:"closed_at" json:"closed_at"`
}

// NewCompletedCycle derives the accounting record from settled-wager totals
func NewCompletedCycle(botID uuid.UUID, cycleNumber int, totals CycleTotals, closedAt time.Time) *CompletedCycle {
	activePool := totals.WinsAmount.Add(totals.LossesAmount)
	netProfit := totals.WinsAmount.Sub(totals.LossesAmount)

	roi := decimal.Zero
	if !activePool.IsZero() {
		roi = netProfit.Div(activePool).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &CompletedCycle{
		ID:             uuid.New(),
		BotID:          botID,
		CycleNumber:    cycleNumber,
		WinsAmount:     totals.WinsAmount,
		LossesAmount:   totals.LossesAmount,
		DrawsAmount:    totals.DrawsAmount,
		ActivePool:     activePool,
		NetProfit:      netProfit,
		ROIActive:      roi,
		TotalBetAmount: activePool.Add(totals.DrawsAmount),
		WinsCount:      totals.WinsCount,
		LossesCount:    totals.LossesCount,
		DrawsCount:     totals.DrawsCount,
		ClosedAt:       closedAt,
	}
}

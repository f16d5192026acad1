package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/commit"
	"github.com/yourusername/cyclebet/internal/metrics"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
)

// Executor resolves matched wagers. The house side of a match defers its real
// move until the counterparty reveals, then plays whichever move produces the
// wager's planned outcome. It is the only writer of settled_result and the
// trigger point for the commission ledger.
type Executor struct {
	repos  *repository.Repositories
	ledger *Ledger
	logger *logrus.Logger
}

// NewExecutor creates an outcome executor
func NewExecutor(repos *repository.Repositories, ledger *Ledger, logger *logrus.Logger) *Executor {
	return &Executor{repos: repos, ledger: ledger, logger: logger}
}

// CounterMove returns the house move that forces the planned outcome against
// a revealed opponent move. Outcomes are from the house's perspective.
func CounterMove(opponent models.Move, intended models.Result) models.Move {
	switch intended {
	case models.ResultWin:
		return opponent.BeatenBy()
	case models.ResultLoss:
		return opponent.Beats()
	default:
		return opponent
	}
}

// Settle resolves a matched wager against the counterparty's revealed move.
// The reveal must open the commitment published at match time. The recorded
// result always equals the wager's planned outcome; the house move is derived
// from the reveal to make that so.
func (e *Executor) Settle(ctx context.Context, w *models.Wager, move models.Move, salt string) (*models.Wager, error) {
	start := time.Now()

	if w.State != models.WagerStateMatched {
		return nil, fmt.Errorf("wager %s is %s: %w", w.ID, w.State, models.ErrStateConflict)
	}
	if !move.Valid() {
		return nil, fmt.Errorf("%w: unknown move %q", models.ErrInvalidMove, move)
	}
	if w.CounterpartyCommit == nil || !commit.Verify(*w.CounterpartyCommit, string(move), salt) {
		return nil, fmt.Errorf("%w: reveal does not open the commitment", models.ErrInvalidMove)
	}

	houseMove := CounterMove(move, w.IntendedResult)
	result := w.IntendedResult

	if err := e.repos.Wagers.Settle(ctx, w.ID, result); err != nil {
		return nil, err
	}

	settled := *w
	settled.State = models.WagerStateSettled
	settled.SettledResult = &result
	now := time.Now().UTC()
	settled.SettledAt = &now

	if err := e.ledger.OnSettled(ctx, &settled); err != nil {
		if rerr := e.repos.Wagers.RevertSettle(ctx, w.ID); rerr != nil && !errors.Is(rerr, models.ErrStateConflict) {
			e.logger.WithError(rerr).WithField("wager_id", w.ID).Error("Failed to revert settlement")
		}
		return nil, err
	}

	metrics.WagersSettledTotal.Inc()
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	e.logger.WithFields(logrus.Fields{
		"wager_id":   w.ID,
		"bot_id":     w.BotID,
		"house_move": houseMove,
		"result":     result,
		"stake":      w.StakeAmount,
	}).Info("Wager settled")

	return &settled, nil
}

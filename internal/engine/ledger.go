package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/metrics"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

// Ledger tracks platform commission per wager. Funds are frozen when a party
// enters a wager, then either captured as revenue or released back to the
// payer at the wager's terminal event. Every wallet movement is paired with a
// commission event state transition; a failure in either direction unwinds
// the other so no partial movement is observable.
type Ledger struct {
	repos  *repository.Repositories
	wallet wallet.Wallet
	rate   decimal.Decimal
	logger *logrus.Logger
}

// NewLedger creates a commission ledger charging the given rate per wager side
func NewLedger(repos *repository.Repositories, w wallet.Wallet, rate float64, logger *logrus.Logger) *Ledger {
	return &Ledger{
		repos:  repos,
		wallet: w,
		rate:   decimal.NewFromFloat(rate),
		logger: logger,
	}
}

// policyFor resolves the commission attribution from the participant pairing.
// A fully automated bot on either side exempts the whole wager; a
// human-mediated bot on either side makes both parties pay the bot
// interaction fee; two humans both pay the player fee.
func policyFor(a, b models.ParticipantKind) models.CommissionAttribution {
	if a == models.ParticipantRegularBot || b == models.ParticipantRegularBot {
		return models.AttributionExempt
	}
	if a == models.ParticipantHumanBot || b == models.ParticipantHumanBot {
		return models.AttributionBotInteractionFee
	}
	return models.AttributionPlayerFee
}

// Fee returns the commission one side owes on a stake
func (l *Ledger) Fee(stake decimal.Decimal) decimal.Decimal {
	return stake.Mul(l.rate).Round(2)
}

// FreezeCreator freezes the creator side's commission when the wager enters
// the matching pool. Fully automated bots never generate commission, so no
// event is created for them.
func (l *Ledger) FreezeCreator(ctx context.Context, w *models.Wager, creatorKind models.ParticipantKind) error {
	if creatorKind == models.ParticipantRegularBot {
		return nil
	}

	attribution := models.AttributionPlayerFee
	if creatorKind == models.ParticipantHumanBot {
		attribution = models.AttributionBotInteractionFee
	}

	return l.freeze(ctx, w, w.BotID, attribution)
}

// FreezeCounterparty freezes the joining side's commission at match time.
// This is the first moment the full pairing is known: if it turns out exempt,
// any commission already frozen for the creator is returned instead.
func (l *Ledger) FreezeCounterparty(ctx context.Context, w *models.Wager, creatorKind models.ParticipantKind) error {
	if w.CounterpartyID == nil || w.CounterpartyKind == nil {
		return fmt.Errorf("wager %s has no counterparty: %w", w.ID, models.ErrStateConflict)
	}

	attribution := policyFor(creatorKind, *w.CounterpartyKind)
	if attribution == models.AttributionExempt {
		return l.ReleaseAll(ctx, w.ID)
	}

	return l.freeze(ctx, w, *w.CounterpartyID, attribution)
}

// OnSettled captures or releases every frozen event on a settled wager. A
// decisive result captures both sides. A draw is waived only when a
// human-mediated bot is involved; a player-vs-player draw is still captured.
func (l *Ledger) OnSettled(ctx context.Context, w *models.Wager) error {
	if w.SettledResult == nil {
		return fmt.Errorf("wager %s has no settled result: %w", w.ID, models.ErrStateConflict)
	}

	events, err := l.repos.Commissions.GetByWager(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("failed to load commission events: %w", err)
	}

	draw := *w.SettledResult == models.ResultDraw
	for _, ev := range events {
		if ev.State != models.CommissionFrozen {
			continue
		}
		if draw && ev.Attribution == models.AttributionBotInteractionFee {
			err = l.release(ctx, ev)
		} else {
			err = l.capture(ctx, ev)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// OnLeave releases the leaving party's frozen commission. The remaining
// party's event is untouched so its funds stay frozen while the wager
// re-enters the pool.
func (l *Ledger) OnLeave(ctx context.Context, wagerID, leaver uuid.UUID) error {
	events, err := l.repos.Commissions.GetByWager(ctx, wagerID)
	if err != nil {
		return fmt.Errorf("failed to load commission events: %w", err)
	}

	for _, ev := range events {
		if ev.PayerID != leaver || ev.State != models.CommissionFrozen {
			continue
		}
		if err := l.release(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}

// ReleaseAll releases every frozen event on a wager. Used when a wager is
// cancelled before matching and when a pairing turns out exempt.
func (l *Ledger) ReleaseAll(ctx context.Context, wagerID uuid.UUID) error {
	events, err := l.repos.Commissions.GetByWager(ctx, wagerID)
	if err != nil {
		return fmt.Errorf("failed to load commission events: %w", err)
	}

	for _, ev := range events {
		if ev.State != models.CommissionFrozen {
			continue
		}
		if err := l.release(ctx, ev); err != nil {
			return err
		}
	}

	return nil
}

// freeze moves the fee from available to frozen and records the event. The
// wallet moves first; if the event cannot be recorded the freeze is unwound.
func (l *Ledger) freeze(ctx context.Context, w *models.Wager, payer uuid.UUID, attribution models.CommissionAttribution) error {
	amount := l.Fee(w.StakeAmount)
	if amount.IsZero() {
		return nil
	}

	if err := l.wallet.Freeze(ctx, payer, amount); err != nil {
		return &models.LedgerInconsistency{WagerID: w.ID.String(), Op: "freeze", Err: err}
	}

	event := &models.CommissionEvent{
		ID:          uuid.New(),
		WagerID:     w.ID,
		PayerID:     payer,
		Amount:      amount,
		State:       models.CommissionFrozen,
		Attribution: attribution,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := l.repos.Commissions.Create(ctx, event); err != nil {
		if rerr := l.wallet.Release(ctx, payer, amount); rerr != nil {
			l.logger.WithError(rerr).WithFields(logrus.Fields{
				"wager_id": w.ID,
				"payer_id": payer,
			}).Error("Failed to unwind commission freeze")
		}
		return &models.LedgerInconsistency{WagerID: w.ID.String(), Op: "freeze", Err: err}
	}

	metrics.CommissionFrozenTotal.Add(amount.InexactFloat64())
	l.logger.WithFields(logrus.Fields{
		"wager_id":    w.ID,
		"payer_id":    payer,
		"amount":      amount,
		"attribution": attribution,
	}).Debug("Commission frozen")

	return nil
}

// capture transitions FROZEN -> CAPTURED and realizes the frozen funds as
// platform revenue. A lost state race means another settlement path already
// resolved the event, which is not an error.
func (l *Ledger) capture(ctx context.Context, ev *models.CommissionEvent) error {
	err := l.repos.Commissions.UpdateState(ctx, ev.ID, models.CommissionFrozen, models.CommissionCaptured)
	if errors.Is(err, models.ErrStateConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark commission captured: %w", err)
	}

	if err := l.wallet.Capture(ctx, ev.PayerID, ev.Amount); err != nil {
		if rerr := l.repos.Commissions.UpdateState(ctx, ev.ID, models.CommissionCaptured, models.CommissionFrozen); rerr != nil {
			l.logger.WithError(rerr).WithField("event_id", ev.ID).Error("Failed to unwind commission capture")
		}
		return &models.LedgerInconsistency{WagerID: ev.WagerID.String(), Op: "capture", Err: err}
	}

	metrics.CommissionCapturedTotal.Add(ev.Amount.InexactFloat64())
	return nil
}

// release transitions FROZEN -> RELEASED and returns the frozen funds to the
// payer's available balance.
func (l *Ledger) release(ctx context.Context, ev *models.CommissionEvent) error {
	err := l.repos.Commissions.UpdateState(ctx, ev.ID, models.CommissionFrozen, models.CommissionReleased)
	if errors.Is(err, models.ErrStateConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark commission released: %w", err)
	}

	if err := l.wallet.Release(ctx, ev.PayerID, ev.Amount); err != nil {
		if rerr := l.repos.Commissions.UpdateState(ctx, ev.ID, models.CommissionReleased, models.CommissionFrozen); rerr != nil {
			l.logger.WithError(rerr).WithField("event_id", ev.ID).Error("Failed to unwind commission release")
		}
		return &models.LedgerInconsistency{WagerID: ev.WagerID.String(), Op: "release", Err: err}
	}

	metrics.CommissionReleasedTotal.Add(ev.Amount.InexactFloat64())
	return nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/metrics"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/planner"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/wallet"
)

// Engine drives every bot through its cycle state machine and mediates all
// concurrent access to a bot's wager set. The scheduler tick, counterparty
// joins, settlements and administrative rebuilds all acquire the bot's lease
// before touching shared state, so capacity checks read-then-act atomically.
type Engine struct {
	repos    *repository.Repositories
	wallet   wallet.Wallet
	cfg      *config.Config
	logger   *logrus.Logger
	ledger   *Ledger
	executor *Executor
	closer   *Closer
	leases   *leaseArena
}

// New creates the cycle engine
func New(repos *repository.Repositories, w wallet.Wallet, cfg *config.Config, logger *logrus.Logger) *Engine {
	ledger := NewLedger(repos, w, cfg.Commission.Rate, logger)
	return &Engine{
		repos:    repos,
		wallet:   w,
		cfg:      cfg,
		logger:   logger,
		ledger:   ledger,
		executor: NewExecutor(repos, ledger, logger),
		closer:   NewCloser(repos, logger),
		leases:   newLeaseArena(),
	}
}

// Ledger exposes the commission ledger to the administrative surface
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Tick advances every active bot one step through its cycle state machine.
// Per-bot failures are logged and do not stop the sweep over the other bots.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()

	bots, err := e.repos.Bots.GetActive(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to list active bots")
		return
	}
	metrics.ActiveBots.Set(float64(len(bots)))

	for _, bot := range bots {
		if ctx.Err() != nil {
			return
		}
		if err := e.runBot(ctx, bot); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"bot_id": bot.ID,
				"name":   bot.Name,
			}).Error("Bot tick failed")
		}
	}

	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// runBot holds the bot's lease and advances its cycle. An empty current cycle
// is (re)materialized, which also recovers a bot that crashed between
// incrementing its cycle and creating the wagers. A fully settled cycle is
// closed and the bot enters its inter-cycle pause.
func (e *Engine) runBot(ctx context.Context, bot *models.BotProfile) error {
	release := e.leases.acquire(bot.ID)
	defer release()

	now := time.Now().UTC()
	if bot.PausedUntil != nil {
		if now.Before(*bot.PausedUntil) {
			return nil
		}
		bot.PausedUntil = nil
		if err := e.repos.Bots.Update(ctx, bot); err != nil {
			return fmt.Errorf("failed to clear pause: %w", err)
		}
	}

	counts, err := e.repos.Wagers.CountByCycle(ctx, bot.ID, bot.CurrentCycle)
	if err != nil {
		return err
	}
	metrics.InFlightWagers.Set(float64(counts.InFlight()))

	switch {
	case counts.InFlight() == 0 && counts.Settled == 0:
		return e.startCycle(ctx, bot)
	case counts.InFlight() == 0 && counts.Settled == bot.CycleGames:
		return e.completeCycle(ctx, bot)
	}

	return nil
}

// startCycle plans, materializes and commission-freezes the bot's current
// cycle. The wager batch is inserted atomically; if the commission freeze
// fails part-way the whole batch is unwound so no partial cycle is visible.
func (e *Engine) startCycle(ctx context.Context, bot *models.BotProfile) error {
	plan, err := planner.BuildPlan(bot, bot.CurrentCycle)
	if err != nil {
		return err
	}
	wagers, err := planner.Materialize(plan, bot)
	if err != nil {
		return err
	}

	if err := e.repos.Wagers.CreateBatch(ctx, wagers); err != nil {
		return err
	}

	if err := e.freezeBatch(ctx, wagers, bot.Kind); err != nil {
		for _, w := range wagers {
			if cerr := e.repos.Wagers.Cancel(ctx, w.ID); cerr != nil {
				e.logger.WithError(cerr).WithField("wager_id", w.ID).Error("Failed to unwind materialized wager")
			}
		}
		return err
	}

	metrics.WagersMaterializedTotal.Add(float64(len(wagers)))
	e.logger.WithFields(logrus.Fields{
		"bot_id":       bot.ID,
		"name":         bot.Name,
		"cycle_number": bot.CurrentCycle,
		"cycle_total":  plan.ExactCycleTotal,
		"wagers":       len(wagers),
	}).Info("Cycle materialized")

	return nil
}

func (e *Engine) freezeBatch(ctx context.Context, wagers []*models.Wager, kind models.ParticipantKind) error {
	for i, w := range wagers {
		if err := e.ledger.FreezeCreator(ctx, w, kind); err != nil {
			for _, frozen := range wagers[:i] {
				if rerr := e.ledger.ReleaseAll(ctx, frozen.ID); rerr != nil {
					e.logger.WithError(rerr).WithField("wager_id", frozen.ID).Error("Failed to unwind commission freeze")
				}
			}
			return err
		}
	}
	return nil
}

// completeCycle closes the settled cycle and schedules the next one after the
// bot's pause. Caller holds the bot's lease.
func (e *Engine) completeCycle(ctx context.Context, bot *models.BotProfile) error {
	if _, _, err := e.closer.CloseCycle(ctx, bot.ID, bot.CurrentCycle); err != nil {
		return err
	}

	pause := bot.CyclePause
	if pause <= 0 {
		pause = e.cfg.DefaultCyclePause()
	}
	pausedUntil := time.Now().UTC().Add(pause)

	bot.CurrentCycle++
	bot.PausedUntil = &pausedUntil

	return e.repos.Bots.Update(ctx, bot)
}

// JoinWager matches a counterparty against an open wager. The conditional
// write on the wager's state makes concurrent joins mutually exclusive: the
// loser gets models.ErrStateConflict. The counterparty's move commitment is
// recorded before the house reveals anything.
func (e *Engine) JoinWager(ctx context.Context, wagerID, counterpartyID uuid.UUID, kind models.ParticipantKind, counterCommit string) (*models.Wager, error) {
	if !kind.Valid() {
		return nil, &models.ValidationError{Field: "counterparty_kind", Reason: "unknown participant kind"}
	}
	if counterCommit == "" {
		return nil, &models.ValidationError{Field: "commitment", Reason: "must be supplied before the house reveals"}
	}

	w, err := e.repos.Wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	bot, err := e.repos.Bots.GetByID(ctx, w.BotID)
	if err != nil {
		return nil, err
	}

	release := e.leases.acquire(bot.ID)
	defer release()

	counts, err := e.repos.Wagers.CountByCycle(ctx, bot.ID, w.CycleNumber)
	if err != nil {
		return nil, err
	}
	if counts.Matched+counts.Settled+1 > bot.CycleGames {
		metrics.CapacityViolationsTotal.Inc()
		return nil, &models.CapacityViolation{
			BotID:      bot.ID.String(),
			CycleGames: bot.CycleGames,
			InFlight:   counts.InFlight(),
			Settled:    counts.Settled,
		}
	}

	deadline := time.Now().UTC().Add(e.cfg.MatchTimeout())
	if err := e.repos.Wagers.Match(ctx, wagerID, counterpartyID, kind, counterCommit, deadline); err != nil {
		return nil, err
	}

	matched := *w
	matched.State = models.WagerStateMatched
	matched.CounterpartyID = &counterpartyID
	matched.CounterpartyKind = &kind
	matched.CounterpartyCommit = &counterCommit
	matched.MatchDeadline = &deadline

	if err := e.ledger.FreezeCounterparty(ctx, &matched, bot.Kind); err != nil {
		if rerr := e.repos.Wagers.Reopen(ctx, wagerID); rerr != nil {
			e.logger.WithError(rerr).WithField("wager_id", wagerID).Error("Failed to unwind match")
		}
		return nil, err
	}

	metrics.WagersMatchedTotal.Inc()
	e.logger.WithFields(logrus.Fields{
		"wager_id":        wagerID,
		"bot_id":          bot.ID,
		"counterparty_id": counterpartyID,
		"kind":            kind,
	}).Info("Wager matched")

	return &matched, nil
}

// SettleWager resolves a matched wager against the counterparty's revealed
// move and, when it was the cycle's last unresolved wager, closes the cycle.
func (e *Engine) SettleWager(ctx context.Context, wagerID uuid.UUID, move models.Move, salt string) (*models.Wager, error) {
	w, err := e.repos.Wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}

	release := e.leases.acquire(w.BotID)
	defer release()

	settled, err := e.executor.Settle(ctx, w, move, salt)
	if err != nil {
		return nil, err
	}

	bot, err := e.repos.Bots.GetByID(ctx, w.BotID)
	if err != nil {
		return settled, err
	}
	if bot.CurrentCycle != w.CycleNumber {
		return settled, nil
	}
	counts, err := e.repos.Wagers.CountByCycle(ctx, bot.ID, bot.CurrentCycle)
	if err != nil {
		return settled, err
	}
	if counts.InFlight() == 0 && counts.Settled == bot.CycleGames {
		if err := e.completeCycle(ctx, bot); err != nil {
			return settled, err
		}
	}

	return settled, nil
}

// LeaveWager handles a counterparty voluntarily abandoning a matched wager.
// The leaver's commission is released; the wager itself returns to OPEN with
// the creator's commission still frozen and re-enters the matching pool with
// the same stake and planned outcome.
func (e *Engine) LeaveWager(ctx context.Context, wagerID, leaver uuid.UUID) error {
	w, err := e.repos.Wagers.GetByID(ctx, wagerID)
	if err != nil {
		return err
	}
	if w.State != models.WagerStateMatched {
		return fmt.Errorf("wager %s is %s: %w", w.ID, w.State, models.ErrStateConflict)
	}
	if w.CounterpartyID == nil || *w.CounterpartyID != leaver {
		return &models.ValidationError{Field: "participant", Reason: "not a party to this wager"}
	}

	release := e.leases.acquire(w.BotID)
	defer release()

	return e.reopen(ctx, w, leaver)
}

// SweepTimeouts reopens every matched wager whose deadline has passed,
// treating the unresponsive counterparty as having left. Returns the number
// of wagers returned to the pool.
func (e *Engine) SweepTimeouts(ctx context.Context) (int, error) {
	stale, err := e.repos.Wagers.GetMatchedBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, w := range stale {
		if ctx.Err() != nil {
			return reopened, ctx.Err()
		}
		if w.CounterpartyID == nil {
			continue
		}

		release := e.leases.acquire(w.BotID)
		err := e.reopen(ctx, w, *w.CounterpartyID)
		release()

		if errors.Is(err, models.ErrStateConflict) {
			// Settled or already reopened between the query and the sweep.
			continue
		}
		if err != nil {
			e.logger.WithError(err).WithField("wager_id", w.ID).Error("Failed to reopen timed-out wager")
			continue
		}
		reopened++
	}

	if reopened > 0 {
		e.logger.WithField("reopened", reopened).Info("Timed-out wagers returned to the pool")
	}

	return reopened, nil
}

// reopen puts a matched wager back in the pool and releases the departed
// counterparty's commission. Caller holds the bot's lease.
func (e *Engine) reopen(ctx context.Context, w *models.Wager, leaver uuid.UUID) error {
	if err := e.repos.Wagers.Reopen(ctx, w.ID); err != nil {
		return err
	}
	if err := e.ledger.OnLeave(ctx, w.ID, leaver); err != nil {
		return err
	}

	metrics.WagersReopenedTotal.Inc()
	e.logger.WithFields(logrus.Fields{
		"wager_id": w.ID,
		"bot_id":   w.BotID,
		"leaver":   leaver,
	}).Info("Wager reopened")

	return nil
}

// Recalculate rebuilds the bot's current cycle from scratch: every OPEN wager
// is cancelled with its commission returned, and a freshly planned set takes
// their place in one transaction. The cycle number does not change. Rejected
// once any wager of the cycle has been matched or settled, since replacing
// the full set would then exceed the cycle's capacity.
func (e *Engine) Recalculate(ctx context.Context, botID uuid.UUID) error {
	bot, err := e.repos.Bots.GetByID(ctx, botID)
	if err != nil {
		return err
	}

	release := e.leases.acquire(bot.ID)
	defer release()

	counts, err := e.repos.Wagers.CountByCycle(ctx, bot.ID, bot.CurrentCycle)
	if err != nil {
		return err
	}
	if counts.Matched > 0 || counts.Settled > 0 {
		return fmt.Errorf("cycle %d has matched or settled wagers: %w", bot.CurrentCycle, models.ErrStateConflict)
	}

	plan, err := planner.BuildPlan(bot, bot.CurrentCycle)
	if err != nil {
		return err
	}
	replacements, err := planner.Materialize(plan, bot)
	if err != nil {
		return err
	}

	cancelled, err := e.repos.Wagers.ReplaceOpen(ctx, bot.ID, bot.CurrentCycle, replacements)
	if err != nil {
		return err
	}
	for _, w := range cancelled {
		if rerr := e.ledger.ReleaseAll(ctx, w.ID); rerr != nil {
			e.logger.WithError(rerr).WithField("wager_id", w.ID).Error("Failed to release commission on cancelled wager")
		}
	}

	if err := e.freezeBatch(ctx, replacements, bot.Kind); err != nil {
		return err
	}

	metrics.WagersCancelledTotal.Add(float64(len(cancelled)))
	metrics.WagersMaterializedTotal.Add(float64(len(replacements)))
	e.logger.WithFields(logrus.Fields{
		"bot_id":       bot.ID,
		"cycle_number": bot.CurrentCycle,
		"cancelled":    len(cancelled),
		"materialized": len(replacements),
	}).Info("Cycle rebuilt")

	return nil
}

// CancelOpenWagers cancels every OPEN wager of a bot, releasing any frozen
// commission. Used when a bot is deactivated or deleted. Returns the number
// of wagers cancelled.
func (e *Engine) CancelOpenWagers(ctx context.Context, botID uuid.UUID) (int, error) {
	release := e.leases.acquire(botID)
	defer release()

	open, err := e.repos.Wagers.GetByBot(ctx, botID, models.WagerStateOpen)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, w := range open {
		if err := e.repos.Wagers.Cancel(ctx, w.ID); err != nil {
			if errors.Is(err, models.ErrStateConflict) {
				continue
			}
			return cancelled, err
		}
		if err := e.ledger.ReleaseAll(ctx, w.ID); err != nil {
			return cancelled, err
		}
		cancelled++
	}

	metrics.WagersCancelledTotal.Add(float64(cancelled))
	return cancelled, nil
}

// ForgetBot drops the deleted bot's lease
func (e *Engine) ForgetBot(botID uuid.UUID) {
	e.leases.forget(botID)
}

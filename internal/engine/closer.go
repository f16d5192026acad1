package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/metrics"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
)

// Closer turns a fully settled cycle into its permanent accounting record.
// The scheduler invokes it from more than one trigger path, so it is
// idempotent twice over: a pre-check for an existing record, and an insert
// under the storage uniqueness constraint that treats a lost race as success.
type Closer struct {
	repos  *repository.Repositories
	logger *logrus.Logger
}

// NewCloser creates a cycle closer
func NewCloser(repos *repository.Repositories, logger *logrus.Logger) *Closer {
	return &Closer{repos: repos, logger: logger}
}

// CloseCycle records the accounting entry for a finished cycle. Amounts are
// recomputed from the cycle's settled wager rows, never from a running
// accumulator. The bool reports whether this call created the record; a
// duplicate invocation returns the existing row unchanged.
func (c *Closer) CloseCycle(ctx context.Context, botID uuid.UUID, cycleNumber int) (*models.CompletedCycle, bool, error) {
	existing, err := c.repos.Cycles.GetByBotAndCycle(ctx, botID, cycleNumber)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check for completed cycle: %w", err)
	}

	totals, err := c.repos.Wagers.SettledTotals(ctx, botID, cycleNumber)
	if err != nil {
		return nil, false, err
	}

	record := models.NewCompletedCycle(botID, cycleNumber, totals, time.Now().UTC())

	err = c.repos.Cycles.InsertIfAbsent(ctx, record)
	if errors.Is(err, models.ErrDuplicateKey) {
		// A concurrent closer won the insert; yield to its row.
		metrics.DuplicateCompletionsTotal.Inc()
		c.logger.WithFields(logrus.Fields{
			"bot_id":       botID,
			"cycle_number": cycleNumber,
		}).Info("Cycle already closed by a concurrent closer")

		winner, gerr := c.repos.Cycles.GetByBotAndCycle(ctx, botID, cycleNumber)
		if gerr != nil {
			return nil, false, fmt.Errorf("failed to load winning cycle record: %w", gerr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	metrics.CyclesCompletedTotal.Inc()
	c.logger.WithFields(logrus.Fields{
		"bot_id":       botID,
		"cycle_number": cycleNumber,
		"active_pool":  record.ActivePool,
		"net_profit":   record.NetProfit,
		"roi_active":   record.ROIActive,
	}).Info("Cycle closed")

	return record, true, nil
}

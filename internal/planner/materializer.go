package planner

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/cyclebet/internal/commit"
	"github.com/yourusername/cyclebet/internal/models"
)

var one = decimal.NewFromInt(1)

// Materialize expands a cycle plan into individual OPEN wagers, one per
// planned (category, slot) pair. Each category's target sum is split so the
// first count−1 wagers carry the integer quotient (at least 1) and the final
// wager carries the remainder, keeping the category sum exact.
//
// The combined set is shuffled before it is handed to the matching pool so
// that neither stake ordering nor release order leaks the concealed results.
func Materialize(plan *models.CyclePlan, profile *models.BotProfile) ([]*models.Wager, error) {
	wagers := make([]*models.Wager, 0, profile.CycleGames)

	for _, r := range models.Results {
		amounts := splitTarget(plan.TargetFor(r), profile.CountFor(r))
		for _, amount := range amounts {
			hash, err := commit.Placeholder()
			if err != nil {
				return nil, fmt.Errorf("failed to create commitment for wager: %w", err)
			}
			wagers = append(wagers, &models.Wager{
				ID:             uuid.New(),
				BotID:          plan.BotID,
				CycleNumber:    plan.CycleNumber,
				StakeAmount:    amount,
				IntendedResult: r,
				State:          models.WagerStateOpen,
				CommitHash:     hash,
			})
		}
	}

	rand.Shuffle(len(wagers), func(i, j int) {
		wagers[i], wagers[j] = wagers[j], wagers[i]
	})

	return wagers, nil
}

// splitTarget divides a category target across count wagers
func splitTarget(target decimal.Decimal, count int) []decimal.Decimal {
	if count <= 0 {
		return nil
	}

	base := target.Div(decimal.NewFromInt(int64(count))).Floor()
	if base.LessThan(one) {
		base = one
	}

	amounts := make([]decimal.Decimal, count)
	remainder := target
	for i := 0; i < count-1; i++ {
		amounts[i] = base
		remainder = remainder.Sub(base)
	}
	amounts[count-1] = remainder

	return amounts
}

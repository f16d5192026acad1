// Package planner computes a cycle's target monetary distribution and
// expands it into individual wagers.
package planner

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/cyclebet/internal/models"
)

var (
	half    = decimal.New(5, -1)
	hundred = decimal.NewFromInt(100)
)

// roundHalfUp rounds to the nearest integer with halves rounding up:
// floor(x + 0.5)
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// BuildPlan computes the target sum for each outcome category of one cycle.
//
// The exact cycle total is the sum of per-category expected totals
// (mean stake × category count), each rounded half-up. Summing the rounded
// per-category values rather than rounding mean × cycle_games once is what
// the settled reference cycles reproduce. The percentage split is then
// rounded half-up per category, and any residual ±1–2 drift from the triple
// rounding is absorbed into the loss bucket. That absorption target is a
// fixed policy, covered by tests; do not vary it per profile.
func BuildPlan(profile *models.BotProfile, cycleNumber int) (*models.CyclePlan, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	mean := profile.MeanStake()

	total := decimal.Zero
	for _, r := range models.Results {
		count := decimal.NewFromInt(int64(profile.CountFor(r)))
		total = total.Add(roundHalfUp(mean.Mul(count)))
	}

	targets := make(map[models.Result]decimal.Decimal, len(models.Results))
	for _, r := range models.Results {
		pct := decimal.NewFromInt(int64(profile.PctFor(r)))
		targets[r] = roundHalfUp(total.Mul(pct).Div(hundred))
	}

	drift := targets[models.ResultWin].
		Add(targets[models.ResultLoss]).
		Add(targets[models.ResultDraw]).
		Sub(total)
	if !drift.IsZero() {
		targets[models.ResultLoss] = targets[models.ResultLoss].Sub(drift)
	}

	plan := &models.CyclePlan{
		BotID:           profile.ID,
		CycleNumber:     cycleNumber,
		TargetWin:       targets[models.ResultWin],
		TargetLoss:      targets[models.ResultLoss],
		TargetDraw:      targets[models.ResultDraw],
		ExactCycleTotal: total,
	}

	// Provably unreachable after the correction above; an inconsistent plan
	// must never be materialized, so verify anyway.
	sum := plan.TargetWin.Add(plan.TargetLoss).Add(plan.TargetDraw)
	if !sum.Equal(plan.ExactCycleTotal) {
		return nil, &models.PlannerDriftError{
			BotID:       profile.ID.String(),
			CycleNumber: cycleNumber,
			Expected:    plan.ExactCycleTotal.String(),
			Actual:      sum.String(),
		}
	}

	return plan, nil
}

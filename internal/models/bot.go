package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParticipantKind identifies who is on one side of a wager
type ParticipantKind string

const (
	ParticipantPlayer     ParticipantKind = "player"
	ParticipantHumanBot   ParticipantKind = "human_bot"
	ParticipantRegularBot ParticipantKind = "regular_bot"
)

// Valid reports whether the kind is one of the known participant kinds
func (k ParticipantKind) Valid() bool {
	switch k {
	case ParticipantPlayer, ParticipantHumanBot, ParticipantRegularBot:
		return true
	}
	return false
}

// BotProfile represents a platform-operated bot counterparty and its
// per-cycle wagering configuration
type BotProfile struct {
	ID         uuid.UUID       `db:"id" json:"id" validate:"required"`
	Name       string          `db:"name" json:"name" validate:"required"`
	Kind       ParticipantKind `db:"kind" json:"kind" validate:"required,oneof=human_bot regular_bot"`
	StakeMin   decimal.Decimal `db:"stake_min" json:"stake_min"`
	StakeMax   decimal.Decimal `db:"stake_max" json:"stake_max"`
	CycleGames int             `db:"cycle_games" json:"cycle_games" validate:"required,gte=1"`
	WinPct     int             `db:"win_pct" json:"win_pct" validate:"gte=0,lte=100"`
	LossPct    int             `db:"loss_pct" json:"loss_pct" validate:"gte=0,lte=100"`
	DrawPct    int             `db:"draw_pct" json:"draw_pct" validate:"gte=0,lte=100"`
	WinCount   int             `db:"win_count" json:"win_count" validate:"gte=0"`
	LossCount  int             `db:"loss_count" json:"loss_count" validate:"gte=0"`
	DrawCount  int             `db:"draw_count" json:"draw_count" validate:"gte=0"`
	CyclePause time.Duration   `db:"cycle_pause" json:"cycle_pause"`

	// Scheduler state, persisted so any worker can pick the bot up
	CurrentCycle int        `db:"current_cycle" json:"current_cycle"`
	PausedUntil  *time.Time `db:"paused_until" json:"paused_until"`
	IsActive     bool       `db:"is_active" json:"is_active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the profile's internal consistency. It is rejected
// synchronously on any violation; nothing is persisted for an invalid profile.
func (p *BotProfile) Validate() error {
	if p.CycleGames < 1 {
		return &ValidationError{Field: "cycle_games", Reason: "must be at least 1"}
	}
	if p.StakeMin.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "stake_min", Reason: "must be positive"}
	}
	if p.StakeMin.GreaterThan(p.StakeMax) {
		return &ValidationError{Field: "stake_min", Reason: "must not exceed stake_max"}
	}
	if p.WinPct < 0 || p.LossPct < 0 || p.DrawPct < 0 {
		return &ValidationError{Field: "percentages", Reason: "must not be negative"}
	}
	if p.WinPct+p.LossPct+p.DrawPct != 100 {
		return &ValidationError{Field: "percentages", Reason: "must sum to 100"}
	}
	if p.WinCount < 0 || p.LossCount < 0 || p.DrawCount < 0 {
		return &ValidationError{Field: "counts", Reason: "must not be negative"}
	}
	if p.WinCount+p.LossCount+p.DrawCount != p.CycleGames {
		return &ValidationError{Field: "counts", Reason: "must sum to cycle_games"}
	}
	if !p.Kind.Valid() || p.Kind == ParticipantPlayer {
		return &ValidationError{Field: "kind", Reason: "must be human_bot or regular_bot"}
	}
	return nil
}

// MeanStake returns the midpoint of the configured stake range
func (p *BotProfile) MeanStake() decimal.Decimal {
	return p.StakeMin.Add(p.StakeMax).Div(decimal.NewFromInt(2))
}

// CountFor returns the configured number of wagers for an outcome category
func (p *BotProfile) CountFor(r Result) int {
	switch r {
	case ResultWin:
		return p.WinCount
	case ResultLoss:
		return p.LossCount
	case ResultDraw:
		return p.DrawCount
	}
	return 0
}

// PctFor returns the configured percentage for an outcome category
func (p *BotProfile) PctFor(r Result) int {
	switch r {
	case ResultWin:
		return p.WinPct
	case ResultLoss:
		return p.LossPct
	case ResultDraw:
		return p.DrawPct
	}
	return 0
}

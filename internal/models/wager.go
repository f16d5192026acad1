package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WagerState represents the lifecycle state of a wager
type WagerState string

const (
	WagerStateOpen      WagerState = "OPEN"
	WagerStateMatched   WagerState = "MATCHED"
	WagerStateSettled   WagerState = "SETTLED"
	WagerStateCancelled WagerState = "CANCELLED"
)

// Result is an outcome category from the bot's perspective
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Results lists the outcome categories in a fixed order
var Results = []Result{ResultWin, ResultLoss, ResultDraw}

// Move is a hand in the rock-paper-scissors wagering protocol
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

var beatenBy = map[Move]Move{
	MoveRock:     MovePaper,
	MovePaper:    MoveScissors,
	MoveScissors: MoveRock,
}

// Valid reports whether m is a known move
func (m Move) Valid() bool {
	_, ok := beatenBy[m]
	return ok
}

// BeatenBy returns the move that beats m
func (m Move) BeatenBy() Move { return beatenBy[m] }

// Beats returns the move that m beats
func (m Move) Beats() Move {
	for loser, winner := range beatenBy {
		if winner == m {
			return loser
		}
	}
	return ""
}

// Wager is one publicly offered stake carrying a concealed intended outcome.
// Exactly one wager exists per planned (category, slot) pair of a cycle.
type Wager struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BotID          uuid.UUID       `db:"bot_id" json:"bot_id"`
	CycleNumber    int             `db:"cycle_number" json:"cycle_number"`
	StakeAmount    decimal.Decimal `db:"stake_amount" json:"stake_amount"`
	IntendedResult Result          `db:"intended_result" json:"-"`
	State          WagerState      `db:"state" json:"state"`

	// Pre-commitment published at creation time; the house move itself is
	// chosen only at settlement (see engine.Executor).
	CommitHash string `db:"commit_hash" json:"commit_hash"`

	CounterpartyID     *uuid.UUID       `db:"counterparty_id" json:"counterparty_id"`
	CounterpartyKind   *ParticipantKind `db:"counterparty_kind" json:"counterparty_kind"`
	CounterpartyCommit *string          `db:"counterparty_commit" json:"counterparty_commit"`
	SettledResult      *Result          `db:"settled_result" json:"settled_result"`

	MatchDeadline *time.Time `db:"match_deadline" json:"match_deadline"`
	MatchedAt     *time.Time `db:"matched_at" json:"matched_at"`
	SettledAt     *time.Time `db:"settled_at" json:"settled_at"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelled_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the wager has reached a terminal state
func (w *Wager) IsTerminal() bool {
	return w.State == WagerStateSettled || w.State == WagerStateCancelled
}

// InFlight reports whether the wager counts against the bot's cycle capacity
func (w *Wager) InFlight() bool {
	return w.State == WagerStateOpen || w.State == WagerStateMatched
}

// WagerCounts aggregates a bot's wagers by state for one cycle
type WagerCounts struct {
	Open    int
	Matched int
	Settled int
}

// InFlight returns the number of unresolved wagers
func (c WagerCounts) InFlight() int { return c.Open + c.Matched }

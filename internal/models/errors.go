package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateKey  = errors.New("duplicate key violation")
	ErrStateConflict = errors.New("state transition conflict")
	ErrBotInactive   = errors.New("bot is not active")
	ErrInvalidMove   = errors.New("invalid move")
)

// ValidationError reports a malformed bot profile or request. It is returned
// synchronously and nothing is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CapacityViolation reports a match attempt that would push a bot past its
// in-flight plus settled cap. The wager stays OPEN for another counterparty.
type CapacityViolation struct {
	BotID      string
	CycleGames int
	InFlight   int
	Settled    int
}

func (e *CapacityViolation) Error() string {
	return fmt.Sprintf("capacity violation for bot %s: %d in-flight + %d settled against %d cycle games",
		e.BotID, e.InFlight, e.Settled, e.CycleGames)
}

// LedgerInconsistency reports a wallet operation failure mid-settlement. The
// wager and wallet are left in their pre-operation state; the event must be
// retried or escalated.
type LedgerInconsistency struct {
	WagerID string
	Op      string
	Err     error
}

func (e *LedgerInconsistency) Error() string {
	return fmt.Sprintf("ledger inconsistency on wager %s during %s: %v", e.WagerID, e.Op, e.Err)
}

func (e *LedgerInconsistency) Unwrap() error { return e.Err }

// PlannerDriftError reports category targets that fail to sum to the cycle
// total even after drift correction. Cycle creation is aborted.
type PlannerDriftError struct {
	BotID       string
	CycleNumber int
	Expected    string
	Actual      string
}

func (e *PlannerDriftError) Error() string {
	return fmt.Sprintf("planner drift for bot %s cycle %d: targets sum to %s, expected %s",
		e.BotID, e.CycleNumber, e.Actual, e.Expected)
}

// Package wallet provides access to the platform wallet collaborator. The
// wallet exposes three idempotent primitives: freeze moves funds from
// available to frozen, capture realizes frozen funds as platform revenue,
// release returns frozen funds to available.
package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet errors
var (
	ErrInsufficientFunds  = errors.New("insufficient available funds")
	ErrInsufficientFrozen = errors.New("insufficient frozen funds")
)

// Wallet is the balance primitive consumed by the commission ledger
type Wallet interface {
	Freeze(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error
	Capture(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error
	Release(ctx context.Context, account uuid.UUID, amount decimal.Decimal) error
}

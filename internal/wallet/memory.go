package wallet

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance holds one account's available and frozen funds
type Balance struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// MemoryWallet is an in-memory Wallet used by tests and paper-mode runs.
// Each operation is an atomic read-modify-write under the mutex.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*Balance
}

// NewMemoryWallet creates an empty in-memory wallet
func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: make(map[uuid.UUID]*Balance)}
}

// Deposit credits an account's available balance
func (w *MemoryWallet) Deposit(account uuid.UUID, amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account(account).Available = w.account(account).Available.Add(amount)
}

// BalanceOf returns a copy of an account's balance
func (w *MemoryWallet) BalanceOf(account uuid.UUID) Balance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.account(account)
}

// Freeze moves funds from available to frozen
func (w *MemoryWallet) Freeze(_ context.Context, account uuid.UUID, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.account(account)
	if b.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	b.Available = b.Available.Sub(amount)
	b.Frozen = b.Frozen.Add(amount)
	return nil
}

// Capture removes frozen funds as realized platform revenue
func (w *MemoryWallet) Capture(_ context.Context, account uuid.UUID, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.account(account)
	if b.Frozen.LessThan(amount) {
		return ErrInsufficientFrozen
	}
	b.Frozen = b.Frozen.Sub(amount)
	return nil
}

// Release returns frozen funds to the available balance
func (w *MemoryWallet) Release(_ context.Context, account uuid.UUID, amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.account(account)
	if b.Frozen.LessThan(amount) {
		return ErrInsufficientFrozen
	}
	b.Frozen = b.Frozen.Sub(amount)
	b.Available = b.Available.Add(amount)
	return nil
}

func (w *MemoryWallet) account(id uuid.UUID) *Balance {
	b, ok := w.balances[id]
	if !ok {
		b = &Balance{Available: decimal.Zero, Frozen: decimal.Zero}
		w.balances[id] = b
	}
	return b
}

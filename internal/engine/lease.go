// Package engine implements the cycle scheduling, outcome execution,
// commission accounting and cycle closing core.
package engine

import (
	"sync"

	"github.com/google/uuid"
)

// leaseArena serializes all mutations of one bot's wager set. Matching a
// wager and materializing new wagers for the same bot run concurrently, so
// both acquire the bot's lease before touching shared state.
type leaseArena struct {
	mu     sync.Mutex
	leases map[uuid.UUID]*sync.Mutex
}

func newLeaseArena() *leaseArena {
	return &leaseArena{leases: make(map[uuid.UUID]*sync.Mutex)}
}

// acquire locks the bot's lease, creating it on first use. The returned
// function releases it.
func (a *leaseArena) acquire(botID uuid.UUID) func() {
	a.mu.Lock()
	lease, ok := a.leases[botID]
	if !ok {
		lease = &sync.Mutex{}
		a.leases[botID] = lease
	}
	a.mu.Unlock()

	lease.Lock()
	return lease.Unlock
}

// forget drops a deleted bot's lease
func (a *leaseArena) forget(botID uuid.UUID) {
	a.mu.Lock()
	delete(a.leases, botID)
	a.mu.Unlock()
}

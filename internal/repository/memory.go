package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/cyclebet/internal/models"
)

// In-memory repository implementations. They back unit tests and paper-mode
// runs with the same conditional-write semantics as the Postgres versions.

// MemoryBotRepository is an in-memory BotRepository
type MemoryBotRepository struct {
	mu   sync.RWMutex
	bots map[uuid.UUID]*models.BotProfile
}

// NewMemoryBotRepository creates an empty in-memory bot repository
func NewMemoryBotRepository() *MemoryBotRepository {
	return &MemoryBotRepository{bots: make(map[uuid.UUID]*models.BotProfile)}
}

func (r *MemoryBotRepository) Create(_ context.Context, bot *models.BotProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bots[bot.ID]; ok {
		return models.ErrDuplicateKey
	}
	cp := *bot
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.bots[bot.ID] = &cp
	return nil
}

func (r *MemoryBotRepository) GetByID(_ context.Context, id uuid.UUID) (*models.BotProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bot, ok := r.bots[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *bot
	return &cp, nil
}

func (r *MemoryBotRepository) GetActive(_ context.Context) ([]*models.BotProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var bots []*models.BotProfile
	for _, bot := range r.bots {
		if bot.IsActive {
			cp := *bot
			bots = append(bots, &cp)
		}
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].CreatedAt.Before(bots[j].CreatedAt) })
	return bots, nil
}

func (r *MemoryBotRepository) Update(_ context.Context, bot *models.BotProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bots[bot.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *bot
	cp.UpdatedAt = time.Now().UTC()
	r.bots[bot.ID] = &cp
	return nil
}

func (r *MemoryBotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bots[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.bots, id)
	return nil
}

// MemoryWagerRepository is an in-memory WagerRepository
type MemoryWagerRepository struct {
	mu     sync.RWMutex
	wagers map[uuid.UUID]*models.Wager
}

// NewMemoryWagerRepository creates an empty in-memory wager repository
func NewMemoryWagerRepository() *MemoryWagerRepository {
	return &MemoryWagerRepository{wagers: make(map[uuid.UUID]*models.Wager)}
}

func (r *MemoryWagerRepository) CreateBatch(_ context.Context, wagers []*models.Wager) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range wagers {
		if _, ok := r.wagers[w.ID]; ok {
			return models.ErrDuplicateKey
		}
	}
	now := time.Now().UTC()
	for _, w := range wagers {
		cp := *w
		cp.CreatedAt = now
		cp.UpdatedAt = now
		r.wagers[w.ID] = &cp
	}
	return nil
}

func (r *MemoryWagerRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wagers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *MemoryWagerRepository) GetByBot(_ context.Context, botID uuid.UUID, states ...models.WagerState) ([]*models.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[models.WagerState]bool, len(states))
	for _, s := range states {
		wanted[s] = true
	}
	var out []*models.Wager
	for _, w := range r.wagers {
		if w.BotID != botID {
			continue
		}
		if len(states) > 0 && !wanted[w.State] {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryWagerRepository) GetMatchedBefore(_ context.Context, deadline time.Time) ([]*models.Wager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Wager
	for _, w := range r.wagers {
		if w.State == models.WagerStateMatched && w.MatchDeadline != nil && w.MatchDeadline.Before(deadline) {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchDeadline.Before(*out[j].MatchDeadline) })
	return out, nil
}

func (r *MemoryWagerRepository) CountByCycle(_ context.Context, botID uuid.UUID, cycleNumber int) (models.WagerCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var counts models.WagerCounts
	for _, w := range r.wagers {
		if w.BotID != botID || w.CycleNumber != cycleNumber {
			continue
		}
		switch w.State {
		case models.WagerStateOpen:
			counts.Open++
		case models.WagerStateMatched:
			counts.Matched++
		case models.WagerStateSettled:
			counts.Settled++
		}
	}
	return counts, nil
}

func (r *MemoryWagerRepository) CountAll(_ context.Context, botID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, w := range r.wagers {
		if w.BotID == botID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryWagerRepository) ReplaceOpen(_ context.Context, botID uuid.UUID, cycleNumber int, replacements []*models.Wager) ([]*models.Wager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var cancelled []*models.Wager
	for _, w := range r.wagers {
		if w.BotID != botID || w.CycleNumber != cycleNumber || w.State != models.WagerStateOpen {
			continue
		}
		w.State = models.WagerStateCancelled
		w.CancelledAt = &now
		w.UpdatedAt = now
		cp := *w
		cancelled = append(cancelled, &cp)
	}
	for _, w := range replacements {
		cp := *w
		cp.CreatedAt = now
		cp.UpdatedAt = now
		r.wagers[cp.ID] = &cp
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].CreatedAt.Before(cancelled[j].CreatedAt) })
	return cancelled, nil
}

func (r *MemoryWagerRepository) Match(_ context.Context, id, counterpartyID uuid.UUID, kind models.ParticipantKind, counterCommit string, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return models.ErrNotFound
	}
	if w.State != models.WagerStateOpen {
		return models.ErrStateConflict
	}
	now := time.Now().UTC()
	w.State = models.WagerStateMatched
	w.CounterpartyID = &counterpartyID
	w.CounterpartyKind = &kind
	w.CounterpartyCommit = &counterCommit
	w.MatchDeadline = &deadline
	w.MatchedAt = &now
	w.UpdatedAt = now
	return nil
}

func (r *MemoryWagerRepository) Settle(_ context.Context, id uuid.UUID, result models.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return models.ErrNotFound
	}
	if w.State != models.WagerStateMatched {
		return models.ErrStateConflict
	}
	now := time.Now().UTC()
	w.State = models.WagerStateSettled
	w.SettledResult = &result
	w.SettledAt = &now
	w.UpdatedAt = now
	return nil
}

func (r *MemoryWagerRepository) RevertSettle(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return models.ErrNotFound
	}
	if w.State != models.WagerStateSettled {
		return models.ErrStateConflict
	}
	w.State = models.WagerStateMatched
	w.SettledResult = nil
	w.SettledAt = nil
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryWagerRepository) Reopen(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return models.ErrNotFound
	}
	if w.State != models.WagerStateMatched {
		return models.ErrStateConflict
	}
	w.State = models.WagerStateOpen
	w.CounterpartyID = nil
	w.CounterpartyKind = nil
	w.CounterpartyCommit = nil
	w.MatchDeadline = nil
	w.MatchedAt = nil
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryWagerRepository) Cancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return models.ErrNotFound
	}
	if w.State != models.WagerStateOpen {
		return models.ErrStateConflict
	}
	now := time.Now().UTC()
	w.State = models.WagerStateCancelled
	w.CancelledAt = &now
	w.UpdatedAt = now
	return nil
}

func (r *MemoryWagerRepository) SettledTotals(_ context.Context, botID uuid.UUID, cycleNumber int) (models.CycleTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var totals models.CycleTotals
	for _, w := range r.wagers {
		if w.BotID != botID || w.CycleNumber != cycleNumber || w.State != models.WagerStateSettled || w.SettledResult == nil {
			continue
		}
		switch *w.SettledResult {
		case models.ResultWin:
			totals.WinsAmount = totals.WinsAmount.Add(w.StakeAmount)
			totals.WinsCount++
		case models.ResultLoss:
			totals.LossesAmount = totals.LossesAmount.Add(w.StakeAmount)
			totals.LossesCount++
		case models.ResultDraw:
			totals.DrawsAmount = totals.DrawsAmount.Add(w.StakeAmount)
			totals.DrawsCount++
		}
	}
	return totals, nil
}

// MemoryCompletedCycleRepository is an in-memory CompletedCycleRepository
type MemoryCompletedCycleRepository struct {
	mu     sync.RWMutex
	cycles map[uuid.UUID]map[int]*models.CompletedCycle
}

// NewMemoryCompletedCycleRepository creates an empty in-memory completed-cycle repository
func NewMemoryCompletedCycleRepository() *MemoryCompletedCycleRepository {
	return &MemoryCompletedCycleRepository{cycles: make(map[uuid.UUID]map[int]*models.CompletedCycle)}
}

func (r *MemoryCompletedCycleRepository) InsertIfAbsent(_ context.Context, cycle *models.CompletedCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCycle, ok := r.cycles[cycle.BotID]
	if !ok {
		byCycle = make(map[int]*models.CompletedCycle)
		r.cycles[cycle.BotID] = byCycle
	}
	if _, exists := byCycle[cycle.CycleNumber]; exists {
		return models.ErrDuplicateKey
	}
	cp := *cycle
	byCycle[cycle.CycleNumber] = &cp
	return nil
}

func (r *MemoryCompletedCycleRepository) GetByBotAndCycle(_ context.Context, botID uuid.UUID, cycleNumber int) (*models.CompletedCycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cycles[botID][cycleNumber]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCompletedCycleRepository) ListByBot(_ context.Context, botID uuid.UUID) ([]*models.CompletedCycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.CompletedCycle
	for _, c := range r.cycles[botID] {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleNumber > out[j].CycleNumber })
	return out, nil
}

// MemoryCommissionEventRepository is an in-memory CommissionEventRepository
type MemoryCommissionEventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*models.CommissionEvent
}

// NewMemoryCommissionEventRepository creates an empty in-memory commission event repository
func NewMemoryCommissionEventRepository() *MemoryCommissionEventRepository {
	return &MemoryCommissionEventRepository{events: make(map[uuid.UUID]*models.CommissionEvent)}
}

func (r *MemoryCommissionEventRepository) Create(_ context.Context, event *models.CommissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; ok {
		return models.ErrDuplicateKey
	}
	cp := *event
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.events[event.ID] = &cp
	return nil
}

func (r *MemoryCommissionEventRepository) GetByWager(_ context.Context, wagerID uuid.UUID) ([]*models.CommissionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.CommissionEvent
	for _, e := range r.events {
		if e.WagerID == wagerID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCommissionEventRepository) UpdateState(_ context.Context, id uuid.UUID, from, to models.CommissionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return models.ErrNotFound
	}
	if e.State != from {
		return models.ErrStateConflict
	}
	e.State = to
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// NewMemoryRepositories bundles fresh in-memory repositories
func NewMemoryRepositories() Repositories {
	return Repositories{
		Bots:        NewMemoryBotRepository(),
		Wagers:      NewMemoryWagerRepository(),
		Cycles:      NewMemoryCompletedCycleRepository(),
		Commissions: NewMemoryCommissionEventRepository(),
	}
}

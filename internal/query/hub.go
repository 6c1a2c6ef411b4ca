package query

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"solar-field-backend/internal/model"
)

// Lister runs a filtered, canonically sorted schedule query.
type Lister interface {
	ListSchedules(ctx context.Context, f Filter) ([]model.Schedule, error)
}

// Hub keeps live queries. Each subscription gets an initial snapshot and a
// new one after every published write that changes its result.
//
// Callbacks run on the publishing goroutine and must not write to the store.
// They may unsubscribe.
type Hub struct {
	lister Lister
	logger *zap.Logger

	// deliverMu serializes snapshot delivery so a subscriber never sees an
	// older snapshot after a newer one.
	deliverMu sync.Mutex

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	filter      Filter
	fn          func([]model.Schedule)
	fingerprint uint64
}

// NewHub creates a hub over the given lister.
func NewHub(lister Lister, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		lister: lister,
		logger: logger,
		subs:   make(map[int]*subscription),
	}
}

// Subscribe registers fn for f and delivers the current result before returning.
func (h *Hub) Subscribe(ctx context.Context, f Filter, fn func([]model.Schedule)) (func(), error) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	list, err := h.lister.ListSchedules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscription{filter: f, fn: fn, fingerprint: Fingerprint(list)}
	h.mu.Unlock()

	fn(list)

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}, nil
}

// Publish re-runs every live query and pushes to the ones whose result changed.
func (h *Hub) Publish(ctx context.Context) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.mu.Lock()
		sub, ok := h.subs[id]
		h.mu.Unlock()
		if !ok {
			continue
		}

		list, err := h.lister.ListSchedules(ctx, sub.filter)
		if err != nil {
			h.logger.Error("live query refresh failed", zap.Int("subscription", id), zap.Error(err))
			continue
		}
		fp := Fingerprint(list)
		if fp == sub.fingerprint {
			continue
		}
		sub.fingerprint = fp
		sub.fn(list)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Fingerprint summarizes an ordered result so unchanged results can be skipped.
func Fingerprint(list []model.Schedule) uint64 {
	hash := fnv.New64a()
	for _, s := range list {
		fmt.Fprintf(hash, "%s|%d|%t|%t;", s.ID, s.Version, s.Synced, s.Archived)
	}
	return hash.Sum64()
}

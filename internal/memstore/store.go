// Package memstore is an in-memory entity store keyed by uuid. Each unit of
// work runs against a private copy that replaces the committed state only
// when the unit succeeds.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderledger/internal/orders"
	"github.com/angelmondragon/orderledger/pkg/db/models"
)

type arena struct {
	customers map[uuid.UUID]models.Customer
	products  map[uuid.UUID]models.Product
	orders    map[uuid.UUID]models.Order
	items     map[uuid.UUID]models.LineItem
	events    []models.OutboxEvent
}

func newArena() *arena {
	return &arena{
		customers: make(map[uuid.UUID]models.Customer),
		products:  make(map[uuid.UUID]models.Product),
		orders:    make(map[uuid.UUID]models.Order),
		items:     make(map[uuid.UUID]models.LineItem),
	}
}

func (a *arena) clone() *arena {
	out := &arena{
		customers: make(map[uuid.UUID]models.Customer, len(a.customers)),
		products:  make(map[uuid.UUID]models.Product, len(a.products)),
		orders:    make(map[uuid.UUID]models.Order, len(a.orders)),
		items:     make(map[uuid.UUID]models.LineItem, len(a.items)),
		events:    append([]models.OutboxEvent(nil), a.events...),
	}
	for id, c := range a.customers {
		out.customers[id] = c
	}
	for id, p := range a.products {
		out.products[id] = p
	}
	for id, o := range a.orders {
		out.orders[id] = o.Clone()
	}
	for id, li := range a.items {
		out.items[id] = li
	}
	return out
}

// Store serializes units of work behind a single writer lock.
type Store struct {
	mu    sync.Mutex
	state *arena
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: newArena(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run executes fn against a copy of the committed state and publishes the copy
// only when fn returns nil.
func (s *Store) Run(ctx context.Context, fn func(repo orders.Repository) error) error {
	if fn == nil {
		return fmt.Errorf("unit of work function required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&repository{state: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Events returns a copy of the recorded cascade events, oldest first.
func (s *Store) Events() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutboxEvent(nil), s.state.events...)
}

var (
	_ orders.UnitOfWork = (*Store)(nil)
	_ orders.Repository = (*repository)(nil)
)

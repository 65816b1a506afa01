// Package cascade keeps line item amounts, order totals and customer balances
// consistent when line items or orders are inserted, updated, deleted or
// moved between parents.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
)

// Plan is the full set of recomputed values for one mutation. Nothing in a
// plan is persisted until the store commits it.
type Plan struct {
	// Item is the in-flight line item with unit_price and amount applied.
	// Nil for deletes and order mutations.
	Item *models.LineItem
	// Order is the in-flight order with its total recomputed. Nil for
	// deletes and line item mutations.
	Order *models.Order
	// Orders are the parent orders of a line item mutation, old chain first.
	Orders []models.Order
	// Customers are recomputed once each, in the order they were reached.
	Customers []models.Customer
	// Events describe the change for the event log.
	Events []Event
}

// Coordinator resolves the old and new owner chains of a mutation and
// recomputes them bottom-up.
type Coordinator struct {
	store   EntityStore
	logg    *logger.Logger
	metrics *metrics.CascadeMetrics
}

// NewCoordinator builds a coordinator over store. Metrics are optional.
func NewCoordinator(store EntityStore, logg *logger.Logger, m *metrics.CascadeMetrics) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("entity store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Coordinator{store: store, logg: logg, metrics: m}, nil
}

// ResolveLineItem plans a line item mutation. proposed is nil for deletes.
func (c *Coordinator) ResolveLineItem(ctx context.Context, proposed *models.LineItem, snap Snapshot) (Plan, error) {
	var plan Plan

	var working *models.LineItem
	if proposed != nil && snap.Op() != enums.MutationDelete {
		item := *proposed
		working = &item

		if snap.Op() == enums.MutationInsert || snap.ProductChanged() {
			product, err := c.loadProduct(ctx, working.ProductID)
			if err != nil {
				return Plan{}, err
			}
			CopyUnitPrice(working, product)
		}
		RecomputeLineItemAmount(working)
		plan.Item = working
	}

	var customerIDs idSet
	for _, orderID := range lineItemOrderIDs(snap) {
		order, err := c.loadOrder(ctx, orderID)
		if err != nil {
			return Plan{}, err
		}
		if order == nil {
			continue
		}

		items, err := c.store.LineItemsByOrder(ctx, orderID)
		if err != nil {
			return Plan{}, fmt.Errorf("load line items for order %s: %w", orderID, err)
		}
		items = overlayItems(items, snap.ID, working, orderID)

		RecomputeOrderTotal(order, items)
		plan.Orders = append(plan.Orders, *order)
		customerIDs.add(order.CustomerID)
	}

	customers, err := c.resolveCustomers(ctx, customerIDs.ids, plan.Orders, nil)
	if err != nil {
		return Plan{}, err
	}
	plan.Customers = customers
	return plan, nil
}

// ResolveOrder plans an order mutation. proposed is nil for deletes.
func (c *Coordinator) ResolveOrder(ctx context.Context, proposed *models.Order, snap Snapshot) (Plan, error) {
	var plan Plan

	var inflight []models.Order
	var removed []uuid.UUID
	if proposed != nil && snap.Op() != enums.MutationDelete {
		order := proposed.Clone()
		items, err := c.store.LineItemsByOrder(ctx, order.ID)
		if err != nil {
			return Plan{}, fmt.Errorf("load line items for order %s: %w", order.ID, err)
		}
		RecomputeOrderTotal(&order, items)
		plan.Order = &order
		inflight = append(inflight, order)
	} else {
		removed = append(removed, snap.ID)
	}

	customers, err := c.resolveCustomers(ctx, orderCustomerIDs(snap), inflight, removed)
	if err != nil {
		return Plan{}, err
	}
	plan.Customers = customers
	return plan, nil
}

// resolveCustomers recomputes each customer once from its stored unshipped
// orders, overlaid with the in-flight orders of this cascade.
func (c *Coordinator) resolveCustomers(ctx context.Context, ids []uuid.UUID, inflight []models.Order, removed []uuid.UUID) ([]models.Customer, error) {
	var out []models.Customer
	for _, customerID := range ids {
		customer, err := c.loadCustomer(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			continue
		}

		orders, err := c.store.UnshippedOrdersByCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("load unshipped orders for customer %s: %w", customerID, err)
		}
		orders = overlayOrders(orders, customerID, inflight, removed)

		RecomputeCustomerBalance(customer, orders)
		out = append(out, *customer)
	}
	return out, nil
}

func (c *Coordinator) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	entity, err := c.lookup(ctx, enums.EntityProduct, id)
	if entity == nil || err != nil {
		return nil, err
	}
	product, ok := entity.(*models.Product)
	if !ok {
		return nil, fmt.Errorf("store returned %T for product %s", entity, id)
	}
	return product, nil
}

// loadOrder returns a copy the caller may mutate.
func (c *Coordinator) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	entity, err := c.lookup(ctx, enums.EntityOrder, id)
	if entity == nil || err != nil {
		return nil, err
	}
	order, ok := entity.(*models.Order)
	if !ok {
		return nil, fmt.Errorf("store returned %T for order %s", entity, id)
	}
	clone := order.Clone()
	return &clone, nil
}

// loadCustomer returns a copy the caller may mutate.
func (c *Coordinator) loadCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	entity, err := c.lookup(ctx, enums.EntityCustomer, id)
	if entity == nil || err != nil {
		return nil, err
	}
	customer, ok := entity.(*models.Customer)
	if !ok {
		return nil, fmt.Errorf("store returned %T for customer %s", entity, id)
	}
	clone := *customer
	return &clone, nil
}

// lookup returns (nil, nil) for a missing entity after logging it.
func (c *Coordinator) lookup(ctx context.Context, kind enums.EntityKind, id uuid.UUID) (Entity, error) {
	entity, err := c.store.EntityByID(ctx, kind, id)
	if errors.Is(err, ErrEntityNotFound) {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"entity_kind": kind,
			"entity_id":   id.String(),
		})
		c.logg.Warn(logCtx, "cascade reference missing; skipping branch")
		c.metrics.IncMissingEntity(string(kind))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("store returned no %s for %s", kind, id)
	}
	return entity, nil
}

// lineItemOrderIDs is {old order if it changed or the item was deleted} ∪ {new order}.
func lineItemOrderIDs(snap Snapshot) []uuid.UUID {
	var ids idSet
	if snap.Old != nil && (snap.New == nil || snap.OrderChanged()) {
		ids.add(snap.Old.OrderID)
	}
	if snap.New != nil {
		ids.add(snap.New.OrderID)
	}
	return ids.ids
}

// orderCustomerIDs is {old customer if it changed or the order was deleted} ∪ {new customer}.
func orderCustomerIDs(snap Snapshot) []uuid.UUID {
	var ids idSet
	if snap.Old != nil && (snap.New == nil || snap.CustomerChanged()) {
		ids.add(snap.Old.CustomerID)
	}
	if snap.New != nil {
		ids.add(snap.New.CustomerID)
	}
	return ids.ids
}

// overlayItems drops the stored copy of the in-flight item and re-adds the
// working version when it belongs to orderID.
func overlayItems(stored []models.LineItem, itemID uuid.UUID, working *models.LineItem, orderID uuid.UUID) []models.LineItem {
	out := make([]models.LineItem, 0, len(stored)+1)
	for _, item := range stored {
		if item.ID == itemID {
			continue
		}
		out = append(out, item)
	}
	if working != nil && working.OrderID == orderID {
		out = append(out, *working)
	}
	return out
}

// overlayOrders replaces stored orders with their in-flight versions. In-flight
// orders that moved away, shipped or were removed drop out; ones that moved in
// or were un-shipped are added.
func overlayOrders(stored []models.Order, customerID uuid.UUID, inflight []models.Order, removed []uuid.UUID) []models.Order {
	skip := make(map[uuid.UUID]struct{}, len(inflight)+len(removed))
	for _, id := range removed {
		skip[id] = struct{}{}
	}
	for _, order := range inflight {
		skip[order.ID] = struct{}{}
	}

	out := make([]models.Order, 0, len(stored)+len(inflight))
	for _, order := range stored {
		if _, ok := skip[order.ID]; ok {
			continue
		}
		out = append(out, order)
	}
	for _, order := range inflight {
		if order.CustomerID == customerID && !order.Shipped() {
			out = append(out, order)
		}
	}
	return out
}

// idSet keeps first-seen order.
type idSet struct {
	ids  []uuid.UUID
	seen map[uuid.UUID]struct{}
}

func (s *idSet) add(id uuid.UUID) {
	if s.seen == nil {
		s.seen = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}

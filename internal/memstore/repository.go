package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/outbox"
)

// repository is bound to one unit of work's private arena.
type repository struct {
	state *arena
	now   func() time.Time
}

func (r *repository) LineItemsByOrder(_ context.Context, orderID uuid.UUID) ([]models.LineItem, error) {
	var out []models.LineItem
	for _, li := range r.state.items {
		if li.OrderID == orderID {
			out = append(out, li)
		}
	}
	sortByCreated(out, func(li models.LineItem) (time.Time, uuid.UUID) { return li.CreatedAt, li.ID })
	return out, nil
}

func (r *repository) UnshippedOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.state.orders {
		if o.CustomerID == customerID && !o.Shipped() {
			out = append(out, o.Clone())
		}
	}
	sortByCreated(out, func(o models.Order) (time.Time, uuid.UUID) { return o.CreatedAt, o.ID })
	return out, nil
}

func (r *repository) EntityByID(ctx context.Context, kind enums.EntityKind, id uuid.UUID) (cascade.Entity, error) {
	switch kind {
	case enums.EntityCustomer:
		return r.FindCustomer(ctx, id)
	case enums.EntityOrder:
		return r.FindOrder(ctx, id)
	case enums.EntityLineItem:
		return r.FindLineItem(ctx, id)
	case enums.EntityProduct:
		return r.FindProduct(ctx, id)
	default:
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}
}

func (r *repository) FindCustomer(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	c, ok := r.state.customers[id]
	if !ok {
		return nil, cascade.ErrEntityNotFound
	}
	return &c, nil
}

func (r *repository) FindProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.state.products[id]
	if !ok {
		return nil, cascade.ErrEntityNotFound
	}
	return &p, nil
}

func (r *repository) FindOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.state.orders[id]
	if !ok {
		return nil, cascade.ErrEntityNotFound
	}
	clone := o.Clone()
	return &clone, nil
}

func (r *repository) FindLineItem(_ context.Context, id uuid.UUID) (*models.LineItem, error) {
	li, ok := r.state.items[id]
	if !ok {
		return nil, cascade.ErrEntityNotFound
	}
	return &li, nil
}

func (r *repository) ListCustomers(context.Context) ([]models.Customer, error) {
	out := make([]models.Customer, 0, len(r.state.customers))
	for _, c := range r.state.customers {
		out = append(out, c)
	}
	sortByCreated(out, func(c models.Customer) (time.Time, uuid.UUID) { return c.CreatedAt, c.ID })
	return out, nil
}

func (r *repository) ListOrders(context.Context) ([]models.Order, error) {
	out := make([]models.Order, 0, len(r.state.orders))
	for _, o := range r.state.orders {
		out = append(out, o.Clone())
	}
	sortByCreated(out, func(o models.Order) (time.Time, uuid.UUID) { return o.CreatedAt, o.ID })
	return out, nil
}

func (r *repository) ListLineItems(context.Context) ([]models.LineItem, error) {
	out := make([]models.LineItem, 0, len(r.state.items))
	for _, li := range r.state.items {
		out = append(out, li)
	}
	sortByCreated(out, func(li models.LineItem) (time.Time, uuid.UUID) { return li.CreatedAt, li.ID })
	return out, nil
}

func (r *repository) CreateCustomer(_ context.Context, customer *models.Customer) error {
	if _, exists := r.state.customers[customer.ID]; exists {
		return duplicateKey("customers_pkey")
	}
	r.stamp(&customer.CreatedAt, &customer.UpdatedAt)
	r.state.customers[customer.ID] = *customer
	return nil
}

func (r *repository) UpdateCustomerCreditLimit(_ context.Context, id uuid.UUID, limit decimal.NullDecimal) error {
	c, ok := r.state.customers[id]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	c.CreditLimit = limit
	c.UpdatedAt = r.now()
	r.state.customers[id] = c
	return nil
}

func (r *repository) CreateProduct(_ context.Context, product *models.Product) error {
	if _, exists := r.state.products[product.ID]; exists {
		return duplicateKey("products_pkey")
	}
	for _, p := range r.state.products {
		if p.Name == product.Name {
			return duplicateKey("products_name_key")
		}
	}
	r.stamp(&product.CreatedAt, &product.UpdatedAt)
	r.state.products[product.ID] = *product
	return nil
}

func (r *repository) UpdateProductPrice(_ context.Context, id uuid.UUID, price decimal.Decimal) error {
	p, ok := r.state.products[id]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	p.UnitPrice = price
	p.UpdatedAt = r.now()
	r.state.products[id] = p
	return nil
}

func (r *repository) CreateOrder(_ context.Context, order *models.Order) error {
	if _, exists := r.state.orders[order.ID]; exists {
		return duplicateKey("orders_pkey")
	}
	if _, ok := r.state.customers[order.CustomerID]; !ok {
		return foreignKey("orders_customer_id_fkey")
	}
	r.stamp(&order.CreatedAt, &order.UpdatedAt)
	r.state.orders[order.ID] = order.Clone()
	return nil
}

func (r *repository) UpdateOrder(_ context.Context, order *models.Order) error {
	existing, ok := r.state.orders[order.ID]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	if _, ok := r.state.customers[order.CustomerID]; !ok {
		return foreignKey("orders_customer_id_fkey")
	}
	next := order.Clone()
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = r.now()
	r.state.orders[order.ID] = next
	return nil
}

// DeleteOrder removes the order together with its line items.
func (r *repository) DeleteOrder(_ context.Context, id uuid.UUID) error {
	if _, ok := r.state.orders[id]; !ok {
		return cascade.ErrEntityNotFound
	}
	for itemID, li := range r.state.items {
		if li.OrderID == id {
			delete(r.state.items, itemID)
		}
	}
	delete(r.state.orders, id)
	return nil
}

func (r *repository) CreateLineItem(_ context.Context, item *models.LineItem) error {
	if _, exists := r.state.items[item.ID]; exists {
		return duplicateKey("line_items_pkey")
	}
	if err := r.checkLineItem(item); err != nil {
		return err
	}
	r.stamp(&item.CreatedAt, &item.UpdatedAt)
	r.state.items[item.ID] = *item
	return nil
}

func (r *repository) UpdateLineItem(_ context.Context, item *models.LineItem) error {
	existing, ok := r.state.items[item.ID]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	if err := r.checkLineItem(item); err != nil {
		return err
	}
	next := *item
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = r.now()
	r.state.items[item.ID] = next
	return nil
}

func (r *repository) DeleteLineItem(_ context.Context, id uuid.UUID) error {
	if _, ok := r.state.items[id]; !ok {
		return cascade.ErrEntityNotFound
	}
	delete(r.state.items, id)
	return nil
}

func (r *repository) UpdateLineItemAmount(_ context.Context, id uuid.UUID, amount decimal.NullDecimal) error {
	li, ok := r.state.items[id]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	li.Amount = amount
	li.UpdatedAt = r.now()
	r.state.items[id] = li
	return nil
}

func (r *repository) UpdateOrderTotal(_ context.Context, id uuid.UUID, total decimal.Decimal) error {
	o, ok := r.state.orders[id]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	o.AmountTotal = total
	o.UpdatedAt = r.now()
	r.state.orders[id] = o
	return nil
}

func (r *repository) UpdateCustomerBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	c, ok := r.state.customers[id]
	if !ok {
		return cascade.ErrEntityNotFound
	}
	c.Balance = balance
	c.UpdatedAt = r.now()
	r.state.customers[id] = c
	return nil
}

func (r *repository) RecordEvent(_ context.Context, event outbox.DomainEvent) error {
	row, err := outbox.NewRow(event)
	if err != nil {
		return err
	}
	r.state.events = append(r.state.events, row)
	return nil
}

func (r *repository) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	kept := r.state.events[:0]
	var removed int64
	for _, ev := range r.state.events {
		if ev.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	r.state.events = kept
	return removed, nil
}

// checkLineItem mirrors the foreign key and quantity checks of the SQL schema.
func (r *repository) checkLineItem(item *models.LineItem) error {
	if _, ok := r.state.orders[item.OrderID]; !ok {
		return foreignKey("line_items_order_id_fkey")
	}
	if _, ok := r.state.products[item.ProductID]; !ok {
		return foreignKey("line_items_product_id_fkey")
	}
	if item.Quantity <= 0 {
		return fmt.Errorf(`new row for relation "line_items" violates check constraint "line_items_quantity_check"`)
	}
	return nil
}

func (r *repository) stamp(created, updated *time.Time) {
	now := r.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func duplicateKey(constraint string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q", constraint)
}

func foreignKey(constraint string) error {
	return fmt.Errorf("insert or update violates foreign key constraint %q", constraint)
}

func sortByCreated[T any](rows []T, key func(T) (time.Time, uuid.UUID)) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, idi := key(rows[i])
		tj, idj := key(rows[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return bytes.Compare(idi[:], idj[:]) < 0
	})
}

package cascade

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
)

type stubStore struct {
	customers map[uuid.UUID]models.Customer
	orders    map[uuid.UUID]models.Order
	items     map[uuid.UUID]models.LineItem
	products  map[uuid.UUID]models.Product

	failKind enums.EntityKind
	calls    map[enums.EntityKind]int
}

func newStubStore() *stubStore {
	return &stubStore{
		customers: map[uuid.UUID]models.Customer{},
		orders:    map[uuid.UUID]models.Order{},
		items:     map[uuid.UUID]models.LineItem{},
		products:  map[uuid.UUID]models.Product{},
		calls:     map[enums.EntityKind]int{},
	}
}

var errStoreDown = errors.New("store unavailable")

func (s *stubStore) LineItemsByOrder(_ context.Context, orderID uuid.UUID) ([]models.LineItem, error) {
	var out []models.LineItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubStore) UnshippedOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID && !order.Shipped() {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}

func (s *stubStore) EntityByID(_ context.Context, kind enums.EntityKind, id uuid.UUID) (Entity, error) {
	s.calls[kind]++
	if kind == s.failKind {
		return nil, errStoreDown
	}
	switch kind {
	case enums.EntityCustomer:
		if c, ok := s.customers[id]; ok {
			return &c, nil
		}
	case enums.EntityOrder:
		if o, ok := s.orders[id]; ok {
			clone := o.Clone()
			return &clone, nil
		}
	case enums.EntityLineItem:
		if item, ok := s.items[id]; ok {
			return &item, nil
		}
	case enums.EntityProduct:
		if p, ok := s.products[id]; ok {
			return &p, nil
		}
	}
	return nil, ErrEntityNotFound
}

// commit writes a plan back the way a real store would.
func (s *stubStore) commit(snap Snapshot) CommitFunc {
	return func(_ context.Context, plan Plan) error {
		switch snap.Kind {
		case enums.EntityLineItem:
			if plan.Item != nil {
				s.items[plan.Item.ID] = *plan.Item
			} else {
				delete(s.items, snap.ID)
			}
		case enums.EntityOrder:
			if plan.Order != nil {
				s.orders[plan.Order.ID] = plan.Order.Clone()
			} else {
				delete(s.orders, snap.ID)
				for id, item := range s.items {
					if item.OrderID == snap.ID {
						delete(s.items, id)
					}
				}
			}
		}
		for _, order := range plan.Orders {
			stored := s.orders[order.ID]
			stored.AmountTotal = order.AmountTotal
			s.orders[order.ID] = stored
		}
		for _, customer := range plan.Customers {
			stored := s.customers[customer.ID]
			stored.Balance = customer.Balance
			s.customers[customer.ID] = stored
		}
		return nil
	}
}

func (s *stubStore) addCustomer(limit string) models.Customer {
	c := models.Customer{ID: uuid.New(), Name: "customer"}
	if limit != "" {
		c.CreditLimit = decimal.NewNullDecimal(decimal.RequireFromString(limit))
	}
	s.customers[c.ID] = c
	return c
}

func (s *stubStore) addProduct(price string) models.Product {
	p := models.Product{ID: uuid.New(), Name: "product-" + price, UnitPrice: decimal.RequireFromString(price)}
	s.products[p.ID] = p
	return p
}

func (s *stubStore) addOrder(customerID uuid.UUID) models.Order {
	o := models.Order{ID: uuid.New(), CustomerID: customerID}
	s.orders[o.ID] = o
	return o
}

// addItem stores an item with derived fields already consistent and rolls the
// totals up so the fixture starts in a committed state.
func (s *stubStore) addItem(orderID uuid.UUID, product models.Product, qty int) models.LineItem {
	item := models.LineItem{ID: uuid.New(), OrderID: orderID, ProductID: product.ID, Quantity: qty}
	CopyUnitPrice(&item, &product)
	RecomputeLineItemAmount(&item)
	s.items[item.ID] = item
	s.rollup()
	return item
}

func (s *stubStore) ship(orderID uuid.UUID) {
	o := s.orders[orderID]
	now := time.Now().UTC()
	o.DateShipped = &now
	s.orders[orderID] = o
	s.rollup()
}

func (s *stubStore) rollup() {
	for id, order := range s.orders {
		items, _ := s.LineItemsByOrder(context.Background(), id)
		RecomputeOrderTotal(&order, items)
		s.orders[id] = order
	}
	for id, customer := range s.customers {
		orders, _ := s.UnshippedOrdersByCustomer(context.Background(), id)
		RecomputeCustomerBalance(&customer, orders)
		s.customers[id] = customer
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

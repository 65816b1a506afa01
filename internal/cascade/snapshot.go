package cascade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
)

// Fields holds the cascade-relevant attributes of one side of a change.
// Line items use OrderID, ProductID, Quantity and UnitPrice; orders use
// CustomerID and DateShipped.
type Fields struct {
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	Quantity    int
	UnitPrice   decimal.NullDecimal
	CustomerID  uuid.UUID
	DateShipped *time.Time
}

// Snapshot captures an entity before and after a proposed change.
// Old is nil for inserts and New is nil for deletes.
type Snapshot struct {
	Kind enums.EntityKind
	ID   uuid.UUID
	Old  *Fields
	New  *Fields
}

func lineItemFields(item *models.LineItem) *Fields {
	if item == nil {
		return nil
	}
	return &Fields{
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
	}
}

func orderFields(order *models.Order) *Fields {
	if order == nil {
		return nil
	}
	f := &Fields{CustomerID: order.CustomerID}
	if order.DateShipped != nil {
		shipped := *order.DateShipped
		f.DateShipped = &shipped
	}
	return f
}

// NewLineItemSnapshot records a line item change. Pass nil prior for an insert
// and nil proposed for a delete.
func NewLineItemSnapshot(prior, proposed *models.LineItem) Snapshot {
	snap := Snapshot{
		Kind: enums.EntityLineItem,
		Old:  lineItemFields(prior),
		New:  lineItemFields(proposed),
	}
	switch {
	case proposed != nil:
		snap.ID = proposed.ID
	case prior != nil:
		snap.ID = prior.ID
	}
	return snap
}

// NewOrderSnapshot records an order change. Pass nil prior for an insert and
// nil proposed for a delete.
func NewOrderSnapshot(prior, proposed *models.Order) Snapshot {
	snap := Snapshot{
		Kind: enums.EntityOrder,
		Old:  orderFields(prior),
		New:  orderFields(proposed),
	}
	switch {
	case proposed != nil:
		snap.ID = proposed.ID
	case prior != nil:
		snap.ID = prior.ID
	}
	return snap
}

// Op classifies the change.
func (s Snapshot) Op() enums.MutationOp {
	switch {
	case s.Old == nil:
		return enums.MutationInsert
	case s.New == nil:
		return enums.MutationDelete
	default:
		return enums.MutationUpdate
	}
}

func (s Snapshot) isUpdate() bool {
	return s.Old != nil && s.New != nil
}

// OrderChanged reports whether an update moved a line item to another order.
func (s Snapshot) OrderChanged() bool {
	return s.isUpdate() && s.Old.OrderID != s.New.OrderID
}

// ProductChanged reports whether an update pointed a line item at another product.
func (s Snapshot) ProductChanged() bool {
	return s.isUpdate() && s.Old.ProductID != s.New.ProductID
}

// CustomerChanged reports whether an update moved an order to another customer.
func (s Snapshot) CustomerChanged() bool {
	return s.isUpdate() && s.Old.CustomerID != s.New.CustomerID
}

// Shipped reports an unset to set transition of date_shipped.
func (s Snapshot) Shipped() bool {
	return s.isUpdate() && s.Old.DateShipped == nil && s.New.DateShipped != nil
}

// Unshipped reports a set to unset transition of date_shipped.
func (s Snapshot) Unshipped() bool {
	return s.isUpdate() && s.Old.DateShipped != nil && s.New.DateShipped == nil
}

// ShipmentChanged reports any transition of date_shipped between set and unset.
func (s Snapshot) ShipmentChanged() bool {
	return s.Shipped() || s.Unshipped()
}

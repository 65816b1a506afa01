package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/enums"
)

// Order groups line items for a customer. AmountTotal is derived from the
// order's line items; an order counts toward the customer balance until shipped.
type Order struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID  uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	DateShipped *time.Time      `gorm:"column:date_shipped"`
	AmountTotal decimal.Decimal `gorm:"column:amount_total;type:numeric(19,4);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) EntityKind() enums.EntityKind { return enums.EntityOrder }
func (o *Order) EntityID() uuid.UUID          { return o.ID }

// Shipped reports whether the order has left the customer's open balance.
func (o *Order) Shipped() bool {
	return o.DateShipped != nil
}

// Clone returns a deep copy safe to mutate independently.
func (o *Order) Clone() Order {
	clone := *o
	if o.DateShipped != nil {
		shipped := *o.DateShipped
		clone.DateShipped = &shipped
	}
	return clone
}

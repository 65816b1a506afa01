package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/enums"
)

// LineItem is a quantity of a product on an order. UnitPrice is copied from
// the product at write time and Amount is derived from it.
type LineItem struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int                 `gorm:"column:quantity;not null"`
	UnitPrice decimal.NullDecimal `gorm:"column:unit_price;type:numeric(19,4)"`
	Amount    decimal.NullDecimal `gorm:"column:amount;type:numeric(19,4)"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *LineItem) EntityKind() enums.EntityKind { return enums.EntityLineItem }
func (l *LineItem) EntityID() uuid.UUID          { return l.ID }

// AmountOrZero returns the derived amount, treating an absent value as zero.
func (l *LineItem) AmountOrZero() decimal.Decimal {
	if !l.Amount.Valid {
		return decimal.Zero
	}
	return l.Amount.Decimal
}

package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemCreatedEvent is recorded when a line item is inserted.
type LineItemCreatedEvent struct {
	LineItemID uuid.UUID           `json:"line_item_id"`
	OrderID    uuid.UUID           `json:"order_id"`
	ProductID  uuid.UUID           `json:"product_id"`
	Quantity   int                 `json:"quantity"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
	Amount     decimal.NullDecimal `json:"amount"`
}

// OrderCreatedEvent is recorded when an order is inserted.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
}

// OrderShippedEvent is recorded when an order's ship date goes from unset to set.
type OrderShippedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	ShippedAt   time.Time       `json:"shipped_at"`
	AmountTotal decimal.Decimal `json:"amount_total"`
}

// ReparentedEvent is recorded when a foreign key on a line item or order moves.
type ReparentedEvent struct {
	EntityID uuid.UUID `json:"entity_id"`
	Field    string    `json:"field"`
	OldRef   uuid.UUID `json:"old_ref"`
	NewRef   uuid.UUID `json:"new_ref"`
}

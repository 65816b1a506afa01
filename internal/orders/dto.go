package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCustomerInput registers a customer. A missing credit limit means unlimited.
type CreateCustomerInput struct {
	Name        string              `json:"name" validate:"required,max=255"`
	CreditLimit decimal.NullDecimal `json:"credit_limit" validate:"omitempty,gte=0"`
}

// UpdateCreditLimitInput replaces a customer's limit; a null limit removes it.
type UpdateCreditLimitInput struct {
	CustomerID  uuid.UUID           `json:"customer_id" validate:"required"`
	CreditLimit decimal.NullDecimal `json:"credit_limit" validate:"omitempty,gte=0"`
}

type CreateProductInput struct {
	Name      string          `json:"name" validate:"required,max=255"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// UpdateProductPriceInput changes the price future line items copy. Existing
// line items keep the price they were created with.
type UpdateProductPriceInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type CreateOrderInput struct {
	CustomerID  uuid.UUID  `json:"customer_id" validate:"required"`
	DateShipped *time.Time `json:"date_shipped,omitempty"`
}

// UpdateOrderInput reassigns an order and/or changes its shipment state.
// ClearShipped wins over DateShipped.
type UpdateOrderInput struct {
	OrderID      uuid.UUID  `json:"order_id" validate:"required"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	DateShipped  *time.Time `json:"date_shipped,omitempty"`
	ClearShipped bool       `json:"clear_shipped,omitempty"`
}

// CreateLineItemInput adds a product to an order. Quantity is checked by the
// cascade so a bad value surfaces as INVALID_QUANTITY.
type CreateLineItemInput struct {
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// UpdateLineItemInput changes quantity and/or moves the item to another order or product.
type UpdateLineItemInput struct {
	LineItemID uuid.UUID  `json:"line_item_id" validate:"required"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	ProductID  *uuid.UUID `json:"product_id,omitempty"`
	Quantity   *int       `json:"quantity,omitempty"`
}

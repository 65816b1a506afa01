package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/outbox"
)

// Repository defines persistence for customers, products, orders and line
// items. Lookups that find nothing return cascade.ErrEntityNotFound.
type Repository interface {
	cascade.EntityStore

	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error)

	ListCustomers(ctx context.Context) ([]models.Customer, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListLineItems(ctx context.Context) ([]models.LineItem, error)

	CreateCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomerCreditLimit(ctx context.Context, id uuid.UUID, limit decimal.NullDecimal) error
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProductPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error

	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	CreateLineItem(ctx context.Context, item *models.LineItem) error
	UpdateLineItem(ctx context.Context, item *models.LineItem) error
	DeleteLineItem(ctx context.Context, id uuid.UUID) error

	UpdateLineItemAmount(ctx context.Context, id uuid.UUID, amount decimal.NullDecimal) error
	UpdateOrderTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	UpdateCustomerBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error

	RecordEvent(ctx context.Context, event outbox.DomainEvent) error
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBinder rebinds a repository onto an open transaction.
type TxBinder interface {
	WithTx(tx *gorm.DB) Repository
}

// UnitOfWork runs fn against a repository whose writes commit together or not at all.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(repo Repository) error) error
}

// Service exposes the mutations that keep derived money fields consistent.
type Service interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	UpdateCreditLimit(ctx context.Context, input UpdateCreditLimitInput) (*models.Customer, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProductPrice(ctx context.Context, input UpdateProductPriceInput) (*models.Product, error)

	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	UpdateOrder(ctx context.Context, input UpdateOrderInput) (*models.Order, error)
	ShipOrder(ctx context.Context, orderID uuid.UUID, shippedAt time.Time) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error

	CreateLineItem(ctx context.Context, input CreateLineItemInput) (*models.LineItem, error)
	UpdateLineItem(ctx context.Context, input UpdateLineItemInput) (*models.LineItem, error)
	DeleteLineItem(ctx context.Context, lineItemID uuid.UUID) error

	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error)
}

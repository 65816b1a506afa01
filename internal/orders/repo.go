package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/internal/repo"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/outbox"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type repository struct {
	repo.Base
	events outboxPublisher
}

// NewRepository builds a gorm-backed repository. Cascade events are written
// through events on the same connection as the mutation.
func NewRepository(db *gorm.DB, events outboxPublisher) *repository {
	return &repository{Base: repo.NewBase(db), events: events}
}

// WithTx binds the repository to tx.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx), events: r.events}
}

func (r *repository) LineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LineItem, error) {
	var items []models.LineItem
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) UnshippedOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Where("customer_id = ? AND date_shipped IS NULL", customerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
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

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.first(ctx, &customer, id); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.first(ctx, &product, id); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.first(ctx, &order, id); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error) {
	var item models.LineItem
	if err := r.first(ctx, &item, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) first(ctx context.Context, dest any, id uuid.UUID) error {
	return entityErr(r.FirstByID(ctx, dest, id))
}

// entityErr maps the base repository's no-rows sentinel onto the cascade one.
func entityErr(err error) error {
	if errors.Is(err, repo.ErrNoRows) {
		return cascade.ErrEntityNotFound
	}
	return err
}

func (r *repository) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.DB(ctx).Order("created_at ASC").Order("id ASC").Find(&customers).Error
	return customers, err
}

func (r *repository) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).Order("created_at ASC").Order("id ASC").Find(&orders).Error
	return orders, err
}

func (r *repository) ListLineItems(ctx context.Context) ([]models.LineItem, error) {
	var items []models.LineItem
	err := r.DB(ctx).Order("created_at ASC").Order("id ASC").Find(&items).Error
	return items, err
}

func (r *repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.DB(ctx).Create(customer).Error
}

func (r *repository) UpdateCustomerCreditLimit(ctx context.Context, id uuid.UUID, limit decimal.NullDecimal) error {
	return r.update(ctx, &models.Customer{}, id, map[string]any{"credit_limit": limit})
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

func (r *repository) UpdateProductPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	return r.update(ctx, &models.Product{}, id, map[string]any{"unit_price": price})
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.update(ctx, &models.Order{}, order.ID, map[string]any{
		"customer_id":  order.CustomerID,
		"date_shipped": order.DateShipped,
		"amount_total": order.AmountTotal,
	})
}

// DeleteOrder removes the order together with its line items.
func (r *repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := r.DB(ctx).Where("order_id = ?", id).Delete(&models.LineItem{}).Error; err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	return entityErr(r.DeleteByID(ctx, &models.Order{}, id))
}

func (r *repository) CreateLineItem(ctx context.Context, item *models.LineItem) error {
	return r.DB(ctx).Create(item).Error
}

func (r *repository) UpdateLineItem(ctx context.Context, item *models.LineItem) error {
	return r.update(ctx, &models.LineItem{}, item.ID, map[string]any{
		"order_id":   item.OrderID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"unit_price": item.UnitPrice,
		"amount":     item.Amount,
	})
}

func (r *repository) DeleteLineItem(ctx context.Context, id uuid.UUID) error {
	return entityErr(r.DeleteByID(ctx, &models.LineItem{}, id))
}

func (r *repository) UpdateLineItemAmount(ctx context.Context, id uuid.UUID, amount decimal.NullDecimal) error {
	return r.update(ctx, &models.LineItem{}, id, map[string]any{"amount": amount})
}

func (r *repository) UpdateOrderTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.update(ctx, &models.Order{}, id, map[string]any{"amount_total": total})
}

func (r *repository) UpdateCustomerBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return r.update(ctx, &models.Customer{}, id, map[string]any{"balance": balance})
}

func (r *repository) update(ctx context.Context, model any, id uuid.UUID, updates map[string]any) error {
	return entityErr(r.UpdateByID(ctx, model, id, updates))
}

func (r *repository) RecordEvent(ctx context.Context, event outbox.DomainEvent) error {
	if r.events == nil {
		return errors.New("event publisher not configured")
	}
	return r.events.Emit(ctx, r.DB(ctx), event)
}

func (r *repository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return outbox.NewRepository(r.Conn()).DeleteBefore(ctx, cutoff)
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/pkg/db"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderledger/pkg/errors"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
	"github.com/angelmondragon/orderledger/pkg/outbox"
	"github.com/angelmondragon/orderledger/pkg/validators"
)

type service struct {
	uow     UnitOfWork
	logg    *logger.Logger
	metrics *metrics.CascadeMetrics
	now     func() time.Time
}

// NewService builds the order ledger service. Metrics are optional.
func NewService(uow UnitOfWork, logg *logger.Logger, m *metrics.CascadeMetrics) (Service, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		uow:     uow,
		logg:    logg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	customer := &models.Customer{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		CreditLimit: input.CreditLimit,
		Balance:     decimal.Zero,
	}
	err := s.uow.Run(ctx, func(repo Repository) error {
		return repo.CreateCustomer(ctx, customer)
	})
	if err != nil {
		return nil, storeError(err, "create customer")
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "customer created")
	return customer, nil
}

// UpdateCreditLimit never cascades. A limit below the current balance is
// rejected so the constraint holds in every committed state.
func (s *service) UpdateCreditLimit(ctx context.Context, input UpdateCreditLimitInput) (*models.Customer, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	var updated *models.Customer
	err := s.uow.Run(ctx, func(repo Repository) error {
		customer, err := repo.FindCustomer(ctx, input.CustomerID)
		if err != nil {
			return notFound(err, "customer not found")
		}
		customer.CreditLimit = input.CreditLimit
		if err := cascade.ValidateCustomer(customer); err != nil {
			return err
		}
		if err := repo.UpdateCustomerCreditLimit(ctx, customer.ID, input.CreditLimit); err != nil {
			return err
		}
		updated = customer
		return nil
	})
	if err != nil {
		return nil, storeError(err, "update credit limit")
	}
	return updated, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	product := &models.Product{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(input.Name),
		UnitPrice: input.UnitPrice,
	}
	err := s.uow.Run(ctx, func(repo Repository) error {
		return repo.CreateProduct(ctx, product)
	})
	if err != nil {
		return nil, storeError(err, "create product")
	}
	return product, nil
}

func (s *service) UpdateProductPrice(ctx context.Context, input UpdateProductPriceInput) (*models.Product, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	var updated *models.Product
	err := s.uow.Run(ctx, func(repo Repository) error {
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			return notFound(err, "product not found")
		}
		if err := repo.UpdateProductPrice(ctx, product.ID, input.UnitPrice); err != nil {
			return err
		}
		product.UnitPrice = input.UnitPrice
		updated = product
		return nil
	})
	if err != nil {
		return nil, storeError(err, "update product price")
	}
	return updated, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	order := &models.Order{
		ID:          uuid.New(),
		CustomerID:  input.CustomerID,
		AmountTotal: decimal.Zero,
	}
	if input.DateShipped != nil {
		shipped := input.DateShipped.UTC()
		order.DateShipped = &shipped
	}

	var created *models.Order
	err := s.uow.Run(ctx, func(repo Repository) error {
		if _, err := repo.FindCustomer(ctx, input.CustomerID); err != nil {
			return notFound(err, "customer not found")
		}
		plan, err := s.apply(ctx, repo, order, cascade.NewOrderSnapshot(nil, order), func(ctx context.Context, plan cascade.Plan) error {
			return repo.CreateOrder(ctx, plan.Order)
		})
		if err != nil {
			return err
		}
		created = plan.Order
		return nil
	})
	if err != nil {
		return nil, storeError(err, "create order")
	}
	return created, nil
}

func (s *service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (*models.Order, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	var updated *models.Order
	err := s.uow.Run(ctx, func(repo Repository) error {
		order, err := s.updateOrder(ctx, repo, input)
		if err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, storeError(err, "update order")
	}
	return updated, nil
}

// ShipOrder sets date_shipped, which drops the order out of its customer's balance.
func (s *service) ShipOrder(ctx context.Context, orderID uuid.UUID, shippedAt time.Time) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if shippedAt.IsZero() {
		shippedAt = s.now()
	}
	var updated *models.Order
	err := s.uow.Run(ctx, func(repo Repository) error {
		existing, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if existing.Shipped() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already shipped").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}
		order, err := s.updateOrder(ctx, repo, UpdateOrderInput{OrderID: orderID, DateShipped: &shippedAt})
		if err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, storeError(err, "ship order")
	}
	return updated, nil
}

func (s *service) updateOrder(ctx context.Context, repo Repository, input UpdateOrderInput) (*models.Order, error) {
	existing, err := repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	prior := existing.Clone()
	proposed := existing.Clone()

	if input.CustomerID != nil && *input.CustomerID != proposed.CustomerID {
		if _, err := repo.FindCustomer(ctx, *input.CustomerID); err != nil {
			return nil, notFound(err, "customer not found")
		}
		proposed.CustomerID = *input.CustomerID
	}
	switch {
	case input.ClearShipped:
		proposed.DateShipped = nil
	case input.DateShipped != nil:
		shipped := input.DateShipped.UTC()
		proposed.DateShipped = &shipped
	}

	plan, err := s.apply(ctx, repo, &proposed, cascade.NewOrderSnapshot(&prior, &proposed), func(ctx context.Context, plan cascade.Plan) error {
		return repo.UpdateOrder(ctx, plan.Order)
	})
	if err != nil {
		return nil, err
	}
	return plan.Order, nil
}

// DeleteOrder removes the order and its line items and recomputes the customer.
func (s *service) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	err := s.uow.Run(ctx, func(repo Repository) error {
		existing, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		_, err = s.apply(ctx, repo, existing, cascade.NewOrderSnapshot(existing, nil), func(ctx context.Context, _ cascade.Plan) error {
			return repo.DeleteOrder(ctx, orderID)
		})
		return err
	})
	if err != nil {
		return storeError(err, "delete order")
	}
	return nil
}

func (s *service) CreateLineItem(ctx context.Context, input CreateLineItemInput) (*models.LineItem, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	item := &models.LineItem{
		ID:        uuid.New(),
		OrderID:   input.OrderID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	}

	var created *models.LineItem
	err := s.uow.Run(ctx, func(repo Repository) error {
		if _, err := repo.FindOrder(ctx, input.OrderID); err != nil {
			return notFound(err, "order not found")
		}
		if _, err := repo.FindProduct(ctx, input.ProductID); err != nil {
			return notFound(err, "product not found")
		}
		plan, err := s.apply(ctx, repo, item, cascade.NewLineItemSnapshot(nil, item), func(ctx context.Context, plan cascade.Plan) error {
			return repo.CreateLineItem(ctx, plan.Item)
		})
		if err != nil {
			return err
		}
		created = plan.Item
		return nil
	})
	if err != nil {
		return nil, storeError(err, "create line item")
	}
	return created, nil
}

func (s *service) UpdateLineItem(ctx context.Context, input UpdateLineItemInput) (*models.LineItem, error) {
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	var updated *models.LineItem
	err := s.uow.Run(ctx, func(repo Repository) error {
		existing, err := repo.FindLineItem(ctx, input.LineItemID)
		if err != nil {
			return notFound(err, "line item not found")
		}
		prior := *existing
		proposed := *existing

		if input.OrderID != nil && *input.OrderID != proposed.OrderID {
			if _, err := repo.FindOrder(ctx, *input.OrderID); err != nil {
				return notFound(err, "order not found")
			}
			proposed.OrderID = *input.OrderID
		}
		if input.ProductID != nil && *input.ProductID != proposed.ProductID {
			if _, err := repo.FindProduct(ctx, *input.ProductID); err != nil {
				return notFound(err, "product not found")
			}
			proposed.ProductID = *input.ProductID
		}
		if input.Quantity != nil {
			proposed.Quantity = *input.Quantity
		}

		plan, err := s.apply(ctx, repo, &proposed, cascade.NewLineItemSnapshot(&prior, &proposed), func(ctx context.Context, plan cascade.Plan) error {
			return repo.UpdateLineItem(ctx, plan.Item)
		})
		if err != nil {
			return err
		}
		updated = plan.Item
		return nil
	})
	if err != nil {
		return nil, storeError(err, "update line item")
	}
	return updated, nil
}

func (s *service) DeleteLineItem(ctx context.Context, lineItemID uuid.UUID) error {
	if lineItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "line item id required")
	}
	err := s.uow.Run(ctx, func(repo Repository) error {
		existing, err := repo.FindLineItem(ctx, lineItemID)
		if err != nil {
			return notFound(err, "line item not found")
		}
		_, err = s.apply(ctx, repo, existing, cascade.NewLineItemSnapshot(existing, nil), func(ctx context.Context, _ cascade.Plan) error {
			return repo.DeleteLineItem(ctx, lineItemID)
		})
		return err
	})
	if err != nil {
		return storeError(err, "delete line item")
	}
	return nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer *models.Customer
	err := s.uow.Run(ctx, func(repo Repository) error {
		found, err := repo.FindCustomer(ctx, id)
		if err != nil {
			return notFound(err, "customer not found")
		}
		customer = found
		return nil
	})
	if err != nil {
		return nil, storeError(err, "get customer")
	}
	return customer, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.uow.Run(ctx, func(repo Repository) error {
		found, err := repo.FindOrder(ctx, id)
		if err != nil {
			return notFound(err, "order not found")
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, storeError(err, "get order")
	}
	return order, nil
}

func (s *service) GetLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error) {
	var item *models.LineItem
	err := s.uow.Run(ctx, func(repo Repository) error {
		found, err := repo.FindLineItem(ctx, id)
		if err != nil {
			return notFound(err, "line item not found")
		}
		item = found
		return nil
	})
	if err != nil {
		return nil, storeError(err, "get line item")
	}
	return item, nil
}

// apply runs the mutation through the cascade bound to repo. write persists
// the mutated entity; the recomputed parents and events are persisted after it.
func (s *service) apply(ctx context.Context, repo Repository, entity cascade.Entity, snap cascade.Snapshot, write cascade.CommitFunc) (cascade.Plan, error) {
	interceptor, err := cascade.NewInterceptor(repo, s.logg, s.metrics)
	if err != nil {
		return cascade.Plan{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cascade")
	}
	decision, err := interceptor.Apply(ctx, entity, snap, func(ctx context.Context, plan cascade.Plan) error {
		if err := write(ctx, plan); err != nil {
			return storeError(err, "write "+string(snap.Kind))
		}
		return s.persistPlan(ctx, repo, plan)
	})
	if err != nil {
		return cascade.Plan{}, err
	}
	return decision.Plan, nil
}

func (s *service) persistPlan(ctx context.Context, repo Repository, plan cascade.Plan) error {
	for _, order := range plan.Orders {
		if err := repo.UpdateOrderTotal(ctx, order.ID, order.AmountTotal); err != nil {
			return storeError(err, "write order total")
		}
	}
	for _, customer := range plan.Customers {
		if err := repo.UpdateCustomerBalance(ctx, customer.ID, customer.Balance); err != nil {
			return storeError(err, "write customer balance")
		}
	}
	occurredAt := s.now()
	for _, ev := range plan.Events {
		aggregate, err := enums.AggregateForKind(ev.Kind)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map event aggregate")
		}
		err = repo.RecordEvent(ctx, outbox.DomainEvent{
			EventType:     ev.Type,
			AggregateType: aggregate,
			AggregateID:   ev.EntityID,
			Data:          ev.Data,
			OccurredAt:    occurredAt,
		})
		if err != nil {
			return storeError(err, "record "+string(ev.Type))
		}
	}
	return nil
}

func notFound(err error, message string) error {
	if errors.Is(err, cascade.ErrEntityNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}

// storeError keeps typed errors and classifies the rest.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, cascade.ErrEntityNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	}
	switch {
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message)
	case db.IsForeignKeyViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	case db.IsCheckViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// Package credit answers read-only questions about a customer's credit position.
package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/internal/orders"
	pkgerrors "github.com/angelmondragon/orderledger/pkg/errors"
)

// Status is a customer's credit position as of the last committed mutation.
type Status struct {
	CustomerID  uuid.UUID
	Balance     decimal.Decimal
	CreditLimit decimal.NullDecimal
	// AvailableCredit is unset when the customer has no limit.
	AvailableCredit decimal.NullDecimal
	WithinLimit     bool
	UnshippedOrders int
}

// Checker answers credit questions from committed state. It never mutates.
type Checker struct {
	uow orders.UnitOfWork
}

// NewChecker builds a checker over uow.
func NewChecker(uow orders.UnitOfWork) (*Checker, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work required")
	}
	return &Checker{uow: uow}, nil
}

// CheckCreditLimit reports the stored balance against the customer's limit.
func (c *Checker) CheckCreditLimit(ctx context.Context, customerID uuid.UUID) (Status, error) {
	var status Status
	err := c.uow.Run(ctx, func(repo orders.Repository) error {
		customer, err := repo.FindCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		open, err := repo.UnshippedOrdersByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		status = Status{
			CustomerID:      customer.ID,
			Balance:         customer.Balance,
			CreditLimit:     customer.CreditLimit,
			WithinLimit:     customer.WithinCreditLimit(),
			UnshippedOrders: len(open),
		}
		if customer.CreditLimit.Valid {
			status.AvailableCredit = decimal.NewNullDecimal(customer.CreditLimit.Decimal.Sub(customer.Balance))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, cascade.ErrEntityNotFound) {
			return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check credit limit")
	}
	return status, nil
}

// CanCharge reports whether amount more would keep the customer within its limit.
func (c *Checker) CanCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	status, err := c.CheckCreditLimit(ctx, customerID)
	if err != nil {
		return false, err
	}
	if !status.CreditLimit.Valid {
		return true, nil
	}
	return status.Balance.Add(amount).LessThanOrEqual(status.CreditLimit.Decimal), nil
}

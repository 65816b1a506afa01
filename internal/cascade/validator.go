package cascade

import (
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderledger/pkg/errors"
)

// ValidateLineItem rejects non-positive quantities.
func ValidateLineItem(item *models.LineItem) error {
	if item == nil || item.Quantity > 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "line item quantity must be greater than zero").
		WithDetails(map[string]any{
			"line_item_id": item.ID.String(),
			"quantity":     item.Quantity,
		})
}

// ValidateCustomer rejects a balance above the credit limit. Customers without
// a limit always pass.
func ValidateCustomer(customer *models.Customer) error {
	if customer == nil || customer.WithinCreditLimit() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeCreditLimitExceeded, "customer balance exceeds credit limit").
		WithDetails(map[string]any{
			"customer_id":  customer.ID.String(),
			"balance":      customer.Balance.String(),
			"credit_limit": customer.CreditLimit.Decimal.String(),
		})
}

// ValidatePlan checks the in-flight line item before any customer, so a bad
// quantity is reported ahead of a credit failure.
func ValidatePlan(plan Plan) (enums.AbortReason, error) {
	if err := ValidateLineItem(plan.Item); err != nil {
		return enums.AbortInvalidQuantity, err
	}
	for i := range plan.Customers {
		if err := ValidateCustomer(&plan.Customers[i]); err != nil {
			return enums.AbortCreditLimitExceeded, err
		}
	}
	return enums.AbortNone, nil
}

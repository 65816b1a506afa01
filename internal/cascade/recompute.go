package cascade

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/db/models"
)

// RecomputeLineItemAmount sets amount = quantity × unit_price without rounding.
// Items without a unit price are left untouched.
func RecomputeLineItemAmount(item *models.LineItem) {
	if item == nil || !item.UnitPrice.Valid {
		return
	}
	amount := decimal.NewFromInt(int64(item.Quantity)).Mul(item.UnitPrice.Decimal)
	item.Amount = decimal.NewNullDecimal(amount)
}

// RecomputeOrderTotal sets amount_total to the sum of the supplied items' amounts.
func RecomputeOrderTotal(order *models.Order, items []models.LineItem) {
	if order == nil {
		return
	}
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].AmountOrZero())
	}
	order.AmountTotal = total
}

// RecomputeCustomerBalance sets balance to the sum of the supplied orders that
// have not shipped.
func RecomputeCustomerBalance(customer *models.Customer, orders []models.Order) {
	if customer == nil {
		return
	}
	balance := decimal.Zero
	for i := range orders {
		if orders[i].Shipped() {
			continue
		}
		balance = balance.Add(orders[i].AmountTotal)
	}
	customer.Balance = balance
}

// CopyUnitPrice copies the product price onto the item. A nil product is a
// no-op and reports false.
func CopyUnitPrice(item *models.LineItem, product *models.Product) bool {
	if item == nil || product == nil {
		return false
	}
	item.UnitPrice = decimal.NewNullDecimal(product.UnitPrice)
	return true
}

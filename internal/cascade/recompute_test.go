package cascade

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/db/models"
)

func TestRecomputeLineItemAmount(t *testing.T) {
	item := &models.LineItem{Quantity: 5, UnitPrice: decimal.NewNullDecimal(dec("25.50"))}
	RecomputeLineItemAmount(item)
	if !item.Amount.Valid || !item.Amount.Decimal.Equal(dec("127.50")) {
		t.Fatalf("expected 127.50, got %v", item.Amount)
	}
}

func TestRecomputeLineItemAmountKeepsPrecision(t *testing.T) {
	item := &models.LineItem{Quantity: 3, UnitPrice: decimal.NewNullDecimal(dec("0.3333"))}
	RecomputeLineItemAmount(item)
	if item.Amount.Decimal.String() != "0.9999" {
		t.Fatalf("expected unrounded 0.9999, got %s", item.Amount.Decimal)
	}
}

func TestRecomputeLineItemAmountWithoutPriceIsNoop(t *testing.T) {
	item := &models.LineItem{Quantity: 2, Amount: decimal.NewNullDecimal(dec("9"))}
	RecomputeLineItemAmount(item)
	if !item.Amount.Decimal.Equal(dec("9")) {
		t.Fatalf("expected amount untouched, got %v", item.Amount)
	}
	RecomputeLineItemAmount(nil)
}

func TestRecomputeOrderTotalTreatsMissingAmountAsZero(t *testing.T) {
	order := &models.Order{AmountTotal: dec("999")}
	items := []models.LineItem{
		{Amount: decimal.NewNullDecimal(dec("10.25"))},
		{},
		{Amount: decimal.NewNullDecimal(dec("4.75"))},
	}
	RecomputeOrderTotal(order, items)
	if !order.AmountTotal.Equal(dec("15")) {
		t.Fatalf("expected 15, got %s", order.AmountTotal)
	}

	RecomputeOrderTotal(order, nil)
	if !order.AmountTotal.IsZero() {
		t.Fatalf("expected empty order to total zero, got %s", order.AmountTotal)
	}
}

func TestRecomputeCustomerBalanceSkipsShipped(t *testing.T) {
	shipped := time.Now()
	customer := &models.Customer{}
	RecomputeCustomerBalance(customer, []models.Order{
		{AmountTotal: dec("100")},
		{AmountTotal: dec("50"), DateShipped: &shipped},
		{AmountTotal: dec("25.5")},
	})
	if !customer.Balance.Equal(dec("125.5")) {
		t.Fatalf("expected 125.5, got %s", customer.Balance)
	}
}

func TestCopyUnitPrice(t *testing.T) {
	item := &models.LineItem{ID: uuid.New()}
	if CopyUnitPrice(item, nil) {
		t.Fatal("expected missing product to report false")
	}
	if item.UnitPrice.Valid {
		t.Fatal("expected unit price to stay unset")
	}
	if !CopyUnitPrice(item, &models.Product{UnitPrice: dec("3.10")}) {
		t.Fatal("expected copy to succeed")
	}
	if !item.UnitPrice.Decimal.Equal(dec("3.10")) {
		t.Fatalf("expected 3.10, got %v", item.UnitPrice)
	}
}

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderledger/pkg/db"
	"github.com/angelmondragon/orderledger/pkg/db/dbtest"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderledger/pkg/errors"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/outbox"
	"github.com/angelmondragon/orderledger/pkg/outbox/payloads"
)

type fixture struct {
	ctx    context.Context
	client *db.Client
	svc    Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	logg := logger.Nop()

	repo := NewRepository(client.DB(), outbox.NewService(outbox.NewRepository(client.DB()), logg))
	uow, err := NewGormUnitOfWork(client, repo)
	require.NoError(t, err)
	svc, err := NewService(uow, logg, nil)
	require.NoError(t, err)

	return fixture{ctx: context.Background(), client: client, svc: svc}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func limit(v string) decimal.NullDecimal {
	if v == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(dec(v))
}

func (f fixture) customer(t *testing.T, creditLimit string) *models.Customer {
	t.Helper()
	c, err := f.svc.CreateCustomer(f.ctx, CreateCustomerInput{Name: "Acme", CreditLimit: limit(creditLimit)})
	require.NoError(t, err)
	return c
}

func (f fixture) product(t *testing.T, price string) *models.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, CreateProductInput{Name: "widget-" + uuid.NewString(), UnitPrice: dec(price)})
	require.NoError(t, err)
	return p
}

func (f fixture) order(t *testing.T, customerID uuid.UUID) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(f.ctx, CreateOrderInput{CustomerID: customerID})
	require.NoError(t, err)
	return o
}

func (f fixture) item(t *testing.T, orderID, productID uuid.UUID, qty int) *models.LineItem {
	t.Helper()
	li, err := f.svc.CreateLineItem(f.ctx, CreateLineItemInput{OrderID: orderID, ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return li
}

func (f fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	c, err := f.svc.GetCustomer(f.ctx, id)
	require.NoError(t, err)
	return c.Balance
}

func (f fixture) total(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	o, err := f.svc.GetOrder(f.ctx, id)
	require.NoError(t, err)
	return o.AmountTotal
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, logger.Nop(), nil)
	require.Error(t, err)

	client := dbtest.OpenClient(t)
	uow, err := NewGormUnitOfWork(client, NewRepository(client.DB(), nil))
	require.NoError(t, err)
	_, err = NewService(uow, nil, nil)
	require.Error(t, err)
}

func TestCreateLineItemCascadesToCustomer(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000.00")
	p := f.product(t, "25.50")
	o := f.order(t, c.ID)

	li := f.item(t, o.ID, p.ID, 5)

	assertDecimal(t, "25.50", li.UnitPrice.Decimal)
	assertDecimal(t, "127.50", li.Amount.Decimal)
	assertDecimal(t, "127.50", f.total(t, o.ID))
	assertDecimal(t, "127.50", f.balance(t, c.ID))

	stored, err := f.svc.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assertDecimal(t, "127.50", stored.Amount.Decimal)
}

func TestMoneyKeepsFullPrecisionAfterReload(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "1234567890123.4567")
	o := f.order(t, c.ID)

	li := f.item(t, o.ID, p.ID, 3)
	assertDecimal(t, "3703703670370.3701", li.Amount.Decimal)

	stored, err := f.svc.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assertDecimal(t, "1234567890123.4567", stored.UnitPrice.Decimal)
	assertDecimal(t, "3703703670370.3701", stored.Amount.Decimal)
	assert.True(t, stored.Amount.Decimal.Equal(stored.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(stored.Quantity)))))

	assertDecimal(t, "3703703670370.3701", f.total(t, o.ID))
	assertDecimal(t, "3703703670370.3701", f.balance(t, c.ID))
}

func TestCreditLimitAbortLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "1000.00")
	p := f.product(t, "950.00")
	extra := f.product(t, "100.00")
	o := f.order(t, c.ID)
	f.item(t, o.ID, p.ID, 1)
	assertDecimal(t, "950.00", f.balance(t, c.ID))

	_, err := f.svc.CreateLineItem(f.ctx, CreateLineItemInput{OrderID: o.ID, ProductID: extra.ID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCreditLimitExceeded))

	assertDecimal(t, "950.00", f.balance(t, c.ID))
	assertDecimal(t, "950.00", f.total(t, o.ID))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.LineItem{}).Where("order_id = ?", o.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInvalidQuantityIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "10.00")
	o := f.order(t, c.ID)

	_, err := f.svc.CreateLineItem(f.ctx, CreateLineItemInput{OrderID: o.ID, ProductID: p.ID, Quantity: 0})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

	li := f.item(t, o.ID, p.ID, 2)
	neg := -1
	_, err = f.svc.UpdateLineItem(f.ctx, UpdateLineItemInput{LineItemID: li.ID, Quantity: &neg})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
	assertDecimal(t, "20.00", f.balance(t, c.ID))
}

func TestUpdateQuantityRecomputesChain(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "12.25")
	o := f.order(t, c.ID)
	li := f.item(t, o.ID, p.ID, 2)

	qty := 4
	updated, err := f.svc.UpdateLineItem(f.ctx, UpdateLineItemInput{LineItemID: li.ID, Quantity: &qty})
	require.NoError(t, err)

	assertDecimal(t, "49.00", updated.Amount.Decimal)
	assertDecimal(t, "49.00", f.total(t, o.ID))
	assertDecimal(t, "49.00", f.balance(t, c.ID))
}

func TestMoveOrderBetweenCustomers(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "")
	c2 := f.customer(t, "500.00")
	p := f.product(t, "100.00")
	o := f.order(t, c1.ID)
	f.item(t, o.ID, p.ID, 2)
	assertDecimal(t, "200.00", f.balance(t, c1.ID))

	moved, err := f.svc.UpdateOrder(f.ctx, UpdateOrderInput{OrderID: o.ID, CustomerID: &c2.ID})
	require.NoError(t, err)
	assert.Equal(t, c2.ID, moved.CustomerID)

	assertDecimal(t, "0", f.balance(t, c1.ID))
	assertDecimal(t, "200.00", f.balance(t, c2.ID))

	events, err := outbox.NewRepository(f.client.DB()).ListByAggregate(f.ctx, enums.AggregateOrder, o.ID)
	require.NoError(t, err)
	var types []enums.OutboxEventType
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.ElementsMatch(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderReparented}, types)
}

func TestMoveOrderIntoFullCustomerAborts(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "")
	c2 := f.customer(t, "150.00")
	p := f.product(t, "100.00")
	o := f.order(t, c1.ID)
	f.item(t, o.ID, p.ID, 2)

	_, err := f.svc.UpdateOrder(f.ctx, UpdateOrderInput{OrderID: o.ID, CustomerID: &c2.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCreditLimitExceeded))

	stored, err := f.svc.GetOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, stored.CustomerID)
	assertDecimal(t, "200.00", f.balance(t, c1.ID))
	assertDecimal(t, "0", f.balance(t, c2.ID))
}

func TestMoveLineItemBetweenOrders(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "30.00")
	a := f.order(t, c.ID)
	b := f.order(t, c.ID)
	li := f.item(t, a.ID, p.ID, 3)
	f.item(t, b.ID, p.ID, 1)

	_, err := f.svc.UpdateLineItem(f.ctx, UpdateLineItemInput{LineItemID: li.ID, OrderID: &b.ID})
	require.NoError(t, err)

	assertDecimal(t, "0", f.total(t, a.ID))
	assertDecimal(t, "120.00", f.total(t, b.ID))
	assertDecimal(t, "120.00", f.balance(t, c.ID))
}

func TestProductChangeCopiesNewPriceOnly(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	cheap := f.product(t, "5.00")
	pricey := f.product(t, "8.00")
	o := f.order(t, c.ID)
	li := f.item(t, o.ID, cheap.ID, 2)

	_, err := f.svc.UpdateProductPrice(f.ctx, UpdateProductPriceInput{ProductID: cheap.ID, UnitPrice: dec("50.00")})
	require.NoError(t, err)
	stored, err := f.svc.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assertDecimal(t, "5.00", stored.UnitPrice.Decimal)

	updated, err := f.svc.UpdateLineItem(f.ctx, UpdateLineItemInput{LineItemID: li.ID, ProductID: &pricey.ID})
	require.NoError(t, err)
	assertDecimal(t, "8.00", updated.UnitPrice.Decimal)
	assertDecimal(t, "16.00", f.balance(t, c.ID))
}

func TestShipAndUnshipOrder(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "40.00")
	o := f.order(t, c.ID)
	f.item(t, o.ID, p.ID, 1)

	shipped, err := f.svc.ShipOrder(f.ctx, o.ID, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, shipped.DateShipped)
	assertDecimal(t, "0", f.balance(t, c.ID))
	assertDecimal(t, "40.00", f.total(t, o.ID))

	_, err = f.svc.ShipOrder(f.ctx, o.ID, time.Time{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.UpdateOrder(f.ctx, UpdateOrderInput{OrderID: o.ID, ClearShipped: true})
	require.NoError(t, err)
	assertDecimal(t, "40.00", f.balance(t, c.ID))
}

func TestDeleteLineItemAndOrder(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "10.00")
	o1 := f.order(t, c.ID)
	o2 := f.order(t, c.ID)
	li := f.item(t, o1.ID, p.ID, 1)
	f.item(t, o2.ID, p.ID, 3)
	assertDecimal(t, "40.00", f.balance(t, c.ID))

	require.NoError(t, f.svc.DeleteLineItem(f.ctx, li.ID))
	assertDecimal(t, "0", f.total(t, o1.ID))
	assertDecimal(t, "30.00", f.balance(t, c.ID))

	require.NoError(t, f.svc.DeleteOrder(f.ctx, o2.ID))
	assertDecimal(t, "0", f.balance(t, c.ID))

	_, err := f.svc.GetOrder(f.ctx, o2.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	var count int64
	require.NoError(t, f.client.DB().Model(&models.LineItem{}).Where("order_id = ?", o2.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreditLimitUpdates(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "100.00")
	p := f.product(t, "60.00")
	o := f.order(t, c.ID)
	f.item(t, o.ID, p.ID, 1)

	_, err := f.svc.UpdateCreditLimit(f.ctx, UpdateCreditLimitInput{CustomerID: c.ID, CreditLimit: limit("50.00")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCreditLimitExceeded))

	updated, err := f.svc.UpdateCreditLimit(f.ctx, UpdateCreditLimitInput{CustomerID: c.ID, CreditLimit: limit("")})
	require.NoError(t, err)
	assert.False(t, updated.CreditLimit.Valid)

	stored, err := f.svc.GetCustomer(f.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, stored.CreditLimit.Valid)
}

func TestMissingReferencesReturnNotFound(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "1.00")
	o := f.order(t, c.ID)

	_, err := f.svc.CreateOrder(f.ctx, CreateOrderInput{CustomerID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.CreateLineItem(f.ctx, CreateLineItemInput{OrderID: uuid.New(), ProductID: p.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.CreateLineItem(f.ctx, CreateLineItemInput{OrderID: o.ID, ProductID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	assert.True(t, pkgerrors.IsCode(f.svc.DeleteLineItem(f.ctx, uuid.New()), pkgerrors.CodeNotFound))
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCustomer(f.ctx, CreateCustomerInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateCustomer(f.ctx, CreateCustomerInput{Name: "x", CreditLimit: limit("-1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateProduct(f.ctx, CreateProductInput{Name: "x", UnitPrice: dec("-0.01")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.True(t, pkgerrors.IsCode(f.svc.DeleteOrder(f.ctx, uuid.Nil), pkgerrors.CodeValidation))
}

func TestCascadeEventsAreRecorded(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "")
	p := f.product(t, "2.00")
	o := f.order(t, c.ID)
	li := f.item(t, o.ID, p.ID, 1)

	events, err := outbox.NewRepository(f.client.DB()).ListByAggregate(f.ctx, enums.AggregateLineItem, li.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventLineItemCreated, events[0].EventType)

	envelope, decoded, err := outbox.NewCascadeRegistry().DecodeRow(events[0])
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Version)
	payload, ok := decoded.(payloads.LineItemCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, li.ID, payload.LineItemID)
	assert.Equal(t, 1, payload.Quantity)
}

func TestDuplicateProductNameConflicts(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateProduct(f.ctx, CreateProductInput{Name: "gear", UnitPrice: dec("1.00")})
	require.NoError(t, err)

	_, err = f.svc.CreateProduct(f.ctx, CreateProductInput{Name: "gear", UnitPrice: dec("2.00")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

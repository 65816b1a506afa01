// Package audit recomputes every derived money field from scratch and
// compares or rewrites the stored values.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderledger/internal/cascade"
	"github.com/angelmondragon/orderledger/internal/orders"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
)

// Drift is one stored derived value that differs from its recomputation.
type Drift struct {
	Kind     enums.EntityKind    `json:"kind"`
	ID       uuid.UUID           `json:"id"`
	Field    string              `json:"field"`
	Stored   decimal.NullDecimal `json:"stored"`
	Expected decimal.NullDecimal `json:"expected"`
}

// Report summarizes one audit pass.
type Report struct {
	LineItems int     `json:"line_items"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
	Drifts    []Drift `json:"drifts"`
	// OverLimit lists customers whose recomputed balance exceeds their limit.
	OverLimit []uuid.UUID `json:"over_limit"`
	// Repaired is set when the drifts were written back.
	Repaired bool `json:"repaired"`
}

// Clean reports whether the pass found nothing to fix or flag.
func (r Report) Clean() bool {
	return len(r.Drifts) == 0 && len(r.OverLimit) == 0
}

// Verifier recomputes derived amounts from scratch and compares them with what is stored.
type Verifier struct {
	uow     orders.UnitOfWork
	logg    *logger.Logger
	metrics *metrics.CascadeMetrics
}

// NewVerifier builds a verifier. Metrics are optional.
func NewVerifier(uow orders.UnitOfWork, logg *logger.Logger, m *metrics.CascadeMetrics) (*Verifier, error) {
	if uow == nil {
		return nil, fmt.Errorf("unit of work required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Verifier{uow: uow, logg: logg, metrics: m}, nil
}

// Verify recomputes everything and reports drifts without writing.
func (v *Verifier) Verify(ctx context.Context) (Report, error) {
	var report Report
	err := v.uow.Run(ctx, func(repo orders.Repository) error {
		state, err := load(ctx, repo)
		if err != nil {
			return err
		}
		report = state.compare()
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("verify derived fields: %w", err)
	}
	v.record(ctx, report)
	return report, nil
}

// Rebuild writes the recomputed values for every drift in one unit of work.
func (v *Verifier) Rebuild(ctx context.Context) (Report, error) {
	var report Report
	err := v.uow.Run(ctx, func(repo orders.Repository) error {
		state, err := load(ctx, repo)
		if err != nil {
			return err
		}
		report = state.compare()
		return repair(ctx, repo, report.Drifts)
	})
	if err != nil {
		return Report{}, fmt.Errorf("rebuild derived fields: %w", err)
	}
	report.Repaired = true
	v.record(ctx, report)
	return report, nil
}

// RebuildOrder recomputes one order's line items and total and then its
// customer's balance, leaving every other order's stored total as is.
func (v *Verifier) RebuildOrder(ctx context.Context, orderID uuid.UUID) (Report, error) {
	var report Report
	err := v.uow.Run(ctx, func(repo orders.Repository) error {
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := repo.LineItemsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		customer, err := repo.FindCustomer(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		open, err := repo.UnshippedOrdersByCustomer(ctx, order.CustomerID)
		if err != nil {
			return err
		}

		state := &snapshot{
			items:     items,
			orders:    []models.Order{*order},
			customers: []models.Customer{*customer},
			open:      map[uuid.UUID][]models.Order{customer.ID: open},
		}
		report = state.compare()
		return repair(ctx, repo, report.Drifts)
	})
	if err != nil {
		return Report{}, fmt.Errorf("rebuild order %s: %w", orderID, err)
	}
	report.Repaired = true
	v.record(ctx, report)
	return report, nil
}

func (v *Verifier) record(ctx context.Context, report Report) {
	counts := map[enums.EntityKind]int{}
	for _, d := range report.Drifts {
		counts[d.Kind]++
	}
	for kind, n := range counts {
		v.metrics.AddDrift(string(kind), n)
	}

	logCtx := v.logg.WithFields(ctx, map[string]any{
		"line_items": report.LineItems,
		"orders":     report.Orders,
		"customers":  report.Customers,
		"drifts":     len(report.Drifts),
		"over_limit": len(report.OverLimit),
		"repaired":   report.Repaired,
	})
	if report.Clean() {
		v.logg.Info(logCtx, "derived fields consistent")
		return
	}
	for _, d := range report.Drifts {
		v.logg.Warn(v.logg.WithFields(logCtx, map[string]any{
			"entity_kind": d.Kind,
			"entity_id":   d.ID.String(),
			"field":       d.Field,
			"stored":      formatNull(d.Stored),
			"expected":    formatNull(d.Expected),
		}), "derived field drift")
	}
	for _, id := range report.OverLimit {
		v.logg.Warn(v.logg.WithCustomerID(logCtx, id.String()), "customer balance exceeds credit limit")
	}
}

// snapshot holds the stored rows an audit pass recomputes. open carries the
// stored unshipped orders per customer when only part of the data was loaded.
type snapshot struct {
	items     []models.LineItem
	orders    []models.Order
	customers []models.Customer
	open      map[uuid.UUID][]models.Order
}

func load(ctx context.Context, repo orders.Repository) (*snapshot, error) {
	items, err := repo.ListLineItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	all, err := repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return &snapshot{items: items, orders: all, customers: customers}, nil
}

// compare recomputes bottom-up: items, then orders, then customers.
func (s *snapshot) compare() Report {
	report := Report{
		LineItems: len(s.items),
		Orders:    len(s.orders),
		Customers: len(s.customers),
	}

	byOrder := map[uuid.UUID][]models.LineItem{}
	for _, stored := range s.items {
		expected := stored
		cascade.RecomputeLineItemAmount(&expected)
		if !nullEqual(stored.Amount, expected.Amount) {
			report.Drifts = append(report.Drifts, Drift{
				Kind:     enums.EntityLineItem,
				ID:       stored.ID,
				Field:    "amount",
				Stored:   stored.Amount,
				Expected: expected.Amount,
			})
		}
		byOrder[stored.OrderID] = append(byOrder[stored.OrderID], expected)
	}

	totals := map[uuid.UUID]decimal.Decimal{}
	byCustomer := map[uuid.UUID][]models.Order{}
	for _, stored := range s.orders {
		expected := stored.Clone()
		cascade.RecomputeOrderTotal(&expected, byOrder[stored.ID])
		if !stored.AmountTotal.Equal(expected.AmountTotal) {
			report.Drifts = append(report.Drifts, Drift{
				Kind:     enums.EntityOrder,
				ID:       stored.ID,
				Field:    "amount_total",
				Stored:   decimal.NewNullDecimal(stored.AmountTotal),
				Expected: decimal.NewNullDecimal(expected.AmountTotal),
			})
		}
		totals[stored.ID] = expected.AmountTotal
		byCustomer[stored.CustomerID] = append(byCustomer[stored.CustomerID], expected)
	}

	for _, stored := range s.customers {
		open := byCustomer[stored.ID]
		if s.open != nil {
			open = withTotals(s.open[stored.ID], totals)
		}
		expected := stored
		cascade.RecomputeCustomerBalance(&expected, open)
		if !stored.Balance.Equal(expected.Balance) {
			report.Drifts = append(report.Drifts, Drift{
				Kind:     enums.EntityCustomer,
				ID:       stored.ID,
				Field:    "balance",
				Stored:   decimal.NewNullDecimal(stored.Balance),
				Expected: decimal.NewNullDecimal(expected.Balance),
			})
		}
		if !expected.WithinCreditLimit() {
			report.OverLimit = append(report.OverLimit, stored.ID)
		}
	}
	return report
}

// withTotals swaps in recomputed totals for the orders that were recomputed.
func withTotals(open []models.Order, totals map[uuid.UUID]decimal.Decimal) []models.Order {
	out := make([]models.Order, 0, len(open))
	for _, o := range open {
		if total, ok := totals[o.ID]; ok {
			o.AmountTotal = total
		}
		out = append(out, o)
	}
	return out
}

func repair(ctx context.Context, repo orders.Repository, drifts []Drift) error {
	var errs error
	for _, d := range drifts {
		var err error
		switch d.Kind {
		case enums.EntityLineItem:
			err = repo.UpdateLineItemAmount(ctx, d.ID, d.Expected)
		case enums.EntityOrder:
			err = repo.UpdateOrderTotal(ctx, d.ID, d.Expected.Decimal)
		case enums.EntityCustomer:
			err = repo.UpdateCustomerBalance(ctx, d.ID, d.Expected.Decimal)
		default:
			err = fmt.Errorf("unsupported drift kind %q", d.Kind)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s %s: %w", d.Kind, d.ID, d.Field, err))
		}
	}
	return errs
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func formatNull(v decimal.NullDecimal) string {
	if !v.Valid {
		return "null"
	}
	return v.Decimal.String()
}

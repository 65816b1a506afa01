package cascade

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/outbox/payloads"
)

// Event is a notable change produced by a committed mutation.
type Event struct {
	Type     enums.OutboxEventType
	Kind     enums.EntityKind
	EntityID uuid.UUID
	// Field, OldRef and NewRef are set for reparenting events only.
	Field  string
	OldRef uuid.UUID
	NewRef uuid.UUID
	Data   any
}

func reparented(eventType enums.OutboxEventType, snap Snapshot, field string, oldRef, newRef uuid.UUID) Event {
	return Event{
		Type:     eventType,
		Kind:     snap.Kind,
		EntityID: snap.ID,
		Field:    field,
		OldRef:   oldRef,
		NewRef:   newRef,
		Data: payloads.ReparentedEvent{
			EntityID: snap.ID,
			Field:    field,
			OldRef:   oldRef,
			NewRef:   newRef,
		},
	}
}

func lineItemEvents(snap Snapshot, item *models.LineItem) []Event {
	var events []Event
	if snap.Op() == enums.MutationInsert && item != nil {
		events = append(events, Event{
			Type:     enums.EventLineItemCreated,
			Kind:     enums.EntityLineItem,
			EntityID: item.ID,
			Data: payloads.LineItemCreatedEvent{
				LineItemID: item.ID,
				OrderID:    item.OrderID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				Amount:     item.Amount,
			},
		})
	}
	if snap.OrderChanged() {
		events = append(events, reparented(enums.EventLineItemReparented, snap, "order_id", snap.Old.OrderID, snap.New.OrderID))
	}
	if snap.ProductChanged() {
		events = append(events, reparented(enums.EventLineItemReparented, snap, "product_id", snap.Old.ProductID, snap.New.ProductID))
	}
	return events
}

func orderEvents(snap Snapshot, order *models.Order) []Event {
	var events []Event
	if snap.Op() == enums.MutationInsert && order != nil {
		events = append(events, Event{
			Type:     enums.EventOrderCreated,
			Kind:     enums.EntityOrder,
			EntityID: order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
			},
		})
	}
	if snap.CustomerChanged() {
		events = append(events, reparented(enums.EventOrderReparented, snap, "customer_id", snap.Old.CustomerID, snap.New.CustomerID))
	}
	if snap.Shipped() && order != nil {
		events = append(events, shippedEvent(order))
	}
	return events
}

func shippedEvent(order *models.Order) Event {
	var shippedAt time.Time
	if order.DateShipped != nil {
		shippedAt = *order.DateShipped
	}
	return Event{
		Type:     enums.EventOrderShipped,
		Kind:     enums.EntityOrder,
		EntityID: order.ID,
		Data: payloads.OrderShippedEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			ShippedAt:   shippedAt,
			AmountTotal: order.AmountTotal,
		},
	}
}

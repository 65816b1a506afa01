package enums

import "fmt"

// OutboxAggregateType names the entity an outbox row is about.
type OutboxAggregateType string

const (
	AggregateCustomer OutboxAggregateType = "customer"
	AggregateOrder    OutboxAggregateType = "order"
	AggregateLineItem OutboxAggregateType = "line_item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCustomer,
	AggregateOrder,
	AggregateLineItem,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// AggregateForKind maps an entity kind onto its outbox aggregate type.
func AggregateForKind(kind EntityKind) (OutboxAggregateType, error) {
	switch kind {
	case EntityCustomer:
		return AggregateCustomer, nil
	case EntityOrder:
		return AggregateOrder, nil
	case EntityLineItem:
		return AggregateLineItem, nil
	default:
		return "", fmt.Errorf("no aggregate type for entity kind %q", kind)
	}
}

// OutboxEventType names a cascade event recorded alongside a committed mutation.
type OutboxEventType string

const (
	EventLineItemCreated    OutboxEventType = "line_item_created"
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderShipped       OutboxEventType = "order_shipped"
	EventLineItemReparented OutboxEventType = "line_item_reparented"
	EventOrderReparented    OutboxEventType = "order_reparented"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLineItemCreated,
	EventOrderCreated,
	EventOrderShipped,
	EventLineItemReparented,
	EventOrderReparented,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

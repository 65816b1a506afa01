package enums

import "fmt"

// EntityKind names the persisted entity types that take part in a cascade.
type EntityKind string

const (
	EntityCustomer EntityKind = "customer"
	EntityOrder    EntityKind = "order"
	EntityLineItem EntityKind = "line_item"
	EntityProduct  EntityKind = "product"
)

var validEntityKinds = []EntityKind{
	EntityCustomer,
	EntityOrder,
	EntityLineItem,
	EntityProduct,
}

// String implements fmt.Stringer.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known EntityKind.
func (k EntityKind) IsValid() bool {
	for _, candidate := range validEntityKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEntityKind converts raw input into an EntityKind.
func ParseEntityKind(value string) (EntityKind, error) {
	for _, candidate := range validEntityKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity kind %q", value)
}

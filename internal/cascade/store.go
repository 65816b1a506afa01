package cascade

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
)

// ErrEntityNotFound is returned by an EntityStore when a lookup by id finds nothing.
var ErrEntityNotFound = errors.New("entity not found")

// Entity is anything the cascade can address by kind and id.
type Entity interface {
	EntityKind() enums.EntityKind
	EntityID() uuid.UUID
}

// EntityStore is the read surface the cascade needs from persistence. Callers
// must serialize mutations touching overlapping chains.
type EntityStore interface {
	LineItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LineItem, error)
	UnshippedOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	EntityByID(ctx context.Context, kind enums.EntityKind, id uuid.UUID) (Entity, error)
}

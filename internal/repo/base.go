package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoRows is returned when a lookup or write by id matched nothing.
var ErrNoRows = errors.New("no rows matched")

// Base carries the GORM connection a domain repository is bound to.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Conn returns the raw connection, which is a transaction when the repository
// was bound to one.
func (b Base) Conn() *gorm.DB {
	return b.db
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// FirstByID loads the row with the given id into dest.
func (b Base) FirstByID(ctx context.Context, dest any, id uuid.UUID) error {
	err := b.DB(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoRows
	}
	return err
}

// UpdateByID applies updates to the row with the given id and stamps updated_at.
func (b Base) UpdateByID(ctx context.Context, model any, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := b.DB(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

// DeleteByID removes the row with the given id.
func (b Base) DeleteByID(ctx context.Context, model any, id uuid.UUID) error {
	res := b.DB(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

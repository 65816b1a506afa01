package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/pkg/enums"
)

// Customer owns orders; Balance is derived from its unshipped orders.
// A NULL CreditLimit means the customer has no limit.
type Customer struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	CreditLimit decimal.NullDecimal `gorm:"column:credit_limit;type:numeric(19,4)"`
	Balance     decimal.Decimal     `gorm:"column:balance;type:numeric(19,4);not null;default:0"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) EntityKind() enums.EntityKind { return enums.EntityCustomer }
func (c *Customer) EntityID() uuid.UUID          { return c.ID }

// WithinCreditLimit reports whether balance stays under the limit when one is set.
func (c *Customer) WithinCreditLimit() bool {
	if !c.CreditLimit.Valid {
		return true
	}
	return c.Balance.LessThanOrEqual(c.CreditLimit.Decimal)
}

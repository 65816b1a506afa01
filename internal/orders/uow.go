package orders

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormUnitOfWork struct {
	tx   txRunner
	repo TxBinder
}

// NewGormUnitOfWork runs each unit inside one database transaction.
func NewGormUnitOfWork(tx txRunner, repo TxBinder) (UnitOfWork, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &gormUnitOfWork{tx: tx, repo: repo}, nil
}

func (u *gormUnitOfWork) Run(ctx context.Context, fn func(repo Repository) error) error {
	return u.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(u.repo.WithTx(tx))
	})
}

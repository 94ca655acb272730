package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"civicfix/internal/ports"
)

type base struct {
	db *gorm.DB
}

func (b base) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return b.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn inside the transaction carried by ctx, opening one when
// ctx has none.
func (b base) inTx(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.InTx(ctx) {
		db, err := b.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, db)
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx), tx)
	})
}

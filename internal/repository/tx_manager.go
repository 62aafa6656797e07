package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// ErrLockNotAcquired is returned by RunInLockedTx when another transaction
// already holds one of the requested resource locks. Callers treat it as
// retryable contention.
var ErrLockNotAcquired = errors.New("advisory lock not acquired")

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
	// RunInLockedTx opens a transaction and takes a Postgres advisory
	// xact-lock for every key before running fn. Lock keys are sorted so two
	// batches touching the same resources never deadlock. If any lock is
	// held elsewhere the transaction rolls back with ErrLockNotAcquired.
	RunInLockedTx(ctx context.Context, lockKeys []string, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

func (t *transactionManager) RunInLockedTx(ctx context.Context, lockKeys []string, fn func(txCtx context.Context) error) error {
	keys := make([]string, len(lockKeys))
	copy(keys, lockKeys)
	sort.Strings(keys)

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			var acquired bool
			if err := tx.Raw("SELECT pg_try_advisory_xact_lock(hashtext(?))", key).Scan(&acquired).Error; err != nil {
				return err
			}
			if !acquired {
				return ErrLockNotAcquired
			}
		}
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

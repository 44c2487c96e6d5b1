package domain

import (
	"context"
	"time"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/lock"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/core/tx"
)

// Touchable records carry modification stamps.
type Touchable interface {
	Touch(now time.Time, actor string)
}

// LockingStore is the part of a repository a Mutator needs.
type LockingStore[T Touchable] interface {
	GetForUpdate(ctx context.Context, recordID id.ID) (T, error)
	Update(ctx context.Context, rec T) error
}

// MutateFunc changes a locked record inside the transaction.
type MutateFunc[T any] func(ctx context.Context, rec T, actor string, now time.Time) error

// Mutator runs read-validate-write sequences on one record: it holds the
// record's lock, reads the row for update inside a transaction, applies fn,
// stamps and saves the record, and retries version conflicts.
type Mutator[T Touchable] struct {
	Kind      string
	Store     LockingStore[T]
	TxManager tx.Manager
	Locker    lock.Locker
	Retries   int
	Clock     func() time.Time
}

// Run applies fn to the record and returns the saved state.
func (m Mutator[T]) Run(ctx context.Context, recordID id.ID, fn MutateFunc[T]) (T, error) {
	var out T

	locker := m.Locker
	if locker == nil {
		locker = lock.Noop{}
	}
	release, err := locker.Acquire(ctx, lock.RecordKey(m.Kind, recordID))
	if err != nil {
		return out, err
	}
	defer release()

	clock := m.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	actor := security.ActorFromContext(ctx).ID

	err = RetryOnConflict(ctx, m.Retries, func(ctx context.Context) error {
		return m.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
			rec, err := m.Store.GetForUpdate(ctx, recordID)
			if err != nil {
				return err
			}
			now := clock()
			if err := fn(ctx, rec, actor, now); err != nil {
				return err
			}
			rec.Touch(now, actor)
			if err := m.Store.Update(ctx, rec); err != nil {
				return err
			}
			out = rec
			return nil
		})
	})
	return out, err
}

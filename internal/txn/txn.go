// Package txn runs a unit of work inside one storage transaction.
package txn

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/retry"
)

const LevelReadCommitted = "READ COMMITTED"

// InvoiceSequenceLock serializes invoice numbering across the whole store.
const InvoiceSequenceLock = "invoice-sequence"

type Storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	InTransaction(ctx context.Context) bool
}

// Locker takes a named lock that is held until the transaction in ctx ends.
type Locker interface {
	AcquireLock(ctx context.Context, key string) error
}

// LockKey builds keys such as room:12 or account-code:4.1.01.
func LockKey(scope string, id any) string {
	return fmt.Sprintf("%s:%v", scope, id)
}

var tracer = otel.Tracer("github.com/avstrong/hotel/internal/txn")

// Do runs fn in a transaction and returns its result. When ctx already carries a
// transaction, fn joins it and the outer caller decides on commit. An outermost
// transaction that fails on a transient storage error is retried from scratch.
func Do[T any](
	ctx context.Context,
	l *logger.Logger,
	storage Storage,
	name string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	if storage.InTransaction(ctx) {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	var out T

	err := retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		var err error

		out, err = once(ctx, l, storage, name, fn)

		return err
	}, retry.WithOnRetry(func(attempt int, err error) {
		l.LogWarn("Retrying %s transaction, attempt %d: %v", name, attempt, err)
	}))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var zero T

		return zero, err
	}

	return out, nil
}

// Run is Do for work without a result.
func Run(ctx context.Context, l *logger.Logger, storage Storage, name string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, l, storage, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

func once[T any](
	ctx context.Context,
	l *logger.Logger,
	storage Storage,
	name string,
	fn func(ctx context.Context) (T, error),
) (_ T, err error) {
	ctx, err = storage.BeginTransaction(ctx, LevelReadCommitted)
	if err != nil {
		var zero T

		return zero, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after panic %v: %v", name, p, rbErr)
			}

			l.LogInfo("Transaction %s has been roll backed after panic", name)

			panic(p)
		}

		if err != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after error %v: %v", name, err.Error(), rbErr)
			}

			l.LogDebug("Transaction %s has been roll backed after error: %v", name, err)

			return
		}

		if err = storage.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit %s transaction, err %v", name, err.Error())

			err = fmt.Errorf("commit transaction: %w", err)

			return
		}

		l.LogDebug("Transaction %s has been committed", name)
	}()

	return fn(ctx)
}

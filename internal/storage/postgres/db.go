// Package postgres stores the hotel in PostgreSQL through a pgx pool. Queries are built with goqu.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var (
	ErrTransactionNotFoundInCtx = errors.New("no transaction found in ctx")
	ErrNilPool                  = errors.New("pool must not be nil")
)

var dialect = goqu.Dialect("postgres")

type Config struct {
	L        *logger.Logger
	URL      string
	MaxConns int32
}

type DB struct {
	l    *logger.Logger
	pool *pgxpool.Pool
}

// Connect opens a pool and checks that the server answers.
func Connect(ctx context.Context, conf Config) (*DB, error) {
	poolConf, err := pgxpool.ParseConfig(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if conf.MaxConns > 0 {
		poolConf.MaxConns = conf.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConf)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(conf.L, pool)
}

func New(l *logger.Logger, pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	return &DB{l: l, pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

type trxKey struct{}

func trxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(trxKey{}).(pgx.Tx)

	return tx, ok && tx != nil
}

// BeginTransaction takes level in SQL spelling, e.g. READ COMMITTED.
func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{ //nolint:exhaustruct
		IsoLevel: pgx.TxIsoLevel(strings.ToLower(level)),
	})
	if err != nil {
		return ctx, mapError("transaction", err)
	}

	return context.WithValue(ctx, trxKey{}, tx), nil
}

func (db *DB) InTransaction(ctx context.Context) bool {
	_, ok := trxFromContext(ctx)

	return ok
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, ok := trxFromContext(ctx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("transaction", err)
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, ok := trxFromContext(ctx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

// AcquireLock takes a transaction-scoped advisory lock; PostgreSQL releases it at commit or rollback.
func (db *DB) AcquireLock(ctx context.Context, key string) error {
	tx, ok := trxFromContext(ctx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if _, err := tx.Exec(ctx, lockQuery, key); err != nil {
		return mapError("lock "+key, err)
	}

	return nil
}

const lockQuery = "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"

// GetID draws from one sequence shared by every table.
func (db *DB) GetID(ctx context.Context) (int64, error) {
	var id int64

	if err := db.querier(ctx).QueryRow(ctx, "SELECT nextval('hotel_id_seq')").Scan(&id); err != nil {
		return 0, mapError("id", err)
	}

	return id, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier reads through the transaction in ctx when there is one.
func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := trxFromContext(ctx); ok {
		return tx
	}

	return db.pool
}

type scanner interface {
	Scan(dest ...any) error
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func from(table string) *goqu.SelectDataset {
	return dialect.From(table).Prepared(true)
}

// upsert writes record keyed by id, replacing every column on conflict.
func upsert(table string, record goqu.Record) *goqu.InsertDataset {
	update := goqu.Record{}

	for column := range record {
		if column != "id" {
			update[column] = goqu.I("excluded." + column)
		}
	}

	return dialect.Insert(table).Prepared(true).Rows(record).OnConflict(goqu.DoUpdate("id", update))
}

func insert(table string, record goqu.Record) *goqu.InsertDataset {
	return dialect.Insert(table).Prepared(true).Rows(record)
}

// exec runs a write. Writes outside a transaction are rejected.
func (db *DB) exec(ctx context.Context, entity string, b sqlBuilder) error {
	tx, ok := trxFromContext(ctx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build %s query: %w", entity, err)
	}

	if _, err = tx.Exec(ctx, query, args...); err != nil {
		return mapError(entity, err)
	}

	return nil
}

func get[T any](
	ctx context.Context,
	db *DB,
	entity string,
	key any,
	ds *goqu.SelectDataset,
	scan func(s scanner) (*T, error),
) (*T, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", entity, err)
	}

	row, err := scan(db.querier(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %v: %w", entity, key, domain.ErrRecordNotFound)
	}

	if err != nil {
		return nil, mapError(entity, err)
	}

	return row, nil
}

func list[T any](
	ctx context.Context,
	db *DB,
	entity string,
	ds *goqu.SelectDataset,
	scan func(s scanner) (*T, error),
) ([]*T, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", entity, err)
	}

	rows, err := db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(entity, err)
	}
	defer rows.Close()

	var out []*T

	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, mapError(entity, err)
		}

		out = append(out, row)
	}

	if err = rows.Err(); err != nil {
		return nil, mapError(entity, err)
	}

	return out, nil
}

// mapError turns unique violations into domain conflicts and marks serialization failures
// and deadlocks as transient so the transaction is retried.
func mapError(entity string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", entity, err)
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return domain.Conflictf(entity, "violates unique constraint %s", pgErr.ConstraintName)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%s: %w: %w", entity, domain.ErrTransient, err)
	}

	return fmt.Errorf("%s: %w", entity, err)
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
)

type Config struct {
	L *logger.Logger
}

type stagedTable interface {
	commit(trxID string)
	discard(trxID string)
}

type transaction struct {
	id              string
	idempotencyKeys map[string]int64
	locks           map[string]struct{}
	releaseActions  []func()
}

// DB is a process-local store. Transactions see committed rows plus their own writes, and
// become visible to others only on commit. Named locks serialize writers on the same key.
type DB struct {
	mu              sync.RWMutex
	l               *logger.Logger
	rooms           *table[int64, domain.Room]
	customers       *table[int64, domain.Customer]
	reservations    *table[int64, domain.Reservation]
	invoices        *table[int64, domain.Invoice]
	payments        *table[int64, domain.Payment]
	accounts        *table[int64, domain.Account]
	entries         *table[int64, domain.JournalEntry]
	promos          *table[string, domain.Promo]
	tables          []stagedTable
	idempotencyKeys map[string]int64
	transactions    map[string]*transaction
	nextTrxID       int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	db := &DB{
		l:               conf.L,
		rooms:           newTable[int64, domain.Room](),
		customers:       newTable[int64, domain.Customer](),
		reservations:    newTable[int64, domain.Reservation](),
		invoices:        newTable[int64, domain.Invoice](),
		payments:        newTable[int64, domain.Payment](),
		accounts:        newTable[int64, domain.Account](),
		entries:         newTable[int64, domain.JournalEntry](),
		promos:          newTable[string, domain.Promo](),
		idempotencyKeys: make(map[string]int64),
		transactions:    make(map[string]*transaction),
		locks:           make(map[string]chan struct{}),
	}

	db.accounts.deepen = func(a *domain.Account) {
		if a.ParentID != nil {
			parentID := *a.ParentID
			a.ParentID = &parentID
		}
	}

	db.tables = []stagedTable{
		db.rooms, db.customers, db.reservations, db.invoices,
		db.payments, db.accounts, db.entries, db.promos,
	}

	return db
}

// BeginTransaction ignores level; every transaction reads committed data.
func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextTrxID++
	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)

	db.transactions[trxID] = &transaction{
		id:              trxID,
		idempotencyKeys: make(map[string]int64),
		locks:           make(map[string]struct{}),
		releaseActions:  []func(){},
	}

	return withTransactionID(ctx, trxID), nil
}

func (db *DB) InTransaction(ctx context.Context) bool {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok {
		return false
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	_, exists := db.transactions[trxID]

	return exists
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	trx, err := db.end(ctx, func(trx *transaction) {
		for _, t := range db.tables {
			t.commit(trx.id)
		}

		for key, id := range trx.idempotencyKeys {
			db.idempotencyKeys[key] = id
		}
	})
	if err != nil {
		return err
	}

	trx.release()
	db.l.LogDebug("Memory transaction %s has been committed", trx.id)

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	trx, err := db.end(ctx, func(trx *transaction) {
		for _, t := range db.tables {
			t.discard(trx.id)
		}
	})
	if err != nil {
		return err
	}

	trx.release()

	return nil
}

// end applies finish to the transaction and forgets it. Locks are released by the caller
// once the data is in place.
func (db *DB) end(ctx context.Context, finish func(trx *transaction)) (*transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return nil, err
	}

	finish(trx)
	delete(db.transactions, trx.id)

	return trx, nil
}

func (trx *transaction) release() {
	for _, action := range trx.releaseActions {
		action()
	}
}

// AcquireLock blocks until key is free or ctx is done. A key already held by the
// transaction is granted again without blocking.
func (db *DB) AcquireLock(ctx context.Context, key string) error {
	db.mu.RLock()
	trx, err := db.transaction(ctx)
	held := false

	if err == nil {
		_, held = trx.locks[key]
	}
	db.mu.RUnlock()

	if err != nil {
		return err
	}

	if held {
		return nil
	}

	db.locksMu.Lock()
	ch, ok := db.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		db.locks[key] = ch
	}
	db.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	db.mu.Lock()
	trx.locks[key] = struct{}{}
	trx.releaseActions = append(trx.releaseActions, func() { <-ch })
	db.mu.Unlock()

	return nil
}

// transaction must be called with db.mu held.
func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

// readID is the transaction to read through, or "" for committed data only.
func readID(ctx context.Context) string {
	trxID, _ := transactionIDFromContext(ctx)

	return trxID
}

// write runs fn with the id of the transaction carried by ctx. Writes outside a transaction
// are rejected.
func (db *DB) write(ctx context.Context, fn func(trxID string)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	fn(trx.id)

	return nil
}

func read[K any, T any](ctx context.Context, db *DB, entity string, key K, fn func(trxID string) (T, bool)) (T, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row, ok := fn(readID(ctx))
	if !ok {
		return row, fmt.Errorf("%s %v: %w", entity, key, domain.ErrRecordNotFound)
	}

	return row, nil
}

func (db *DB) SaveIdempotencyKey(ctx context.Context, key string, reservationID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	trx.idempotencyKeys[key] = reservationID

	return nil
}

func (db *DB) GetReservationIDByIdempotencyKey(ctx context.Context, key string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if trx, err := db.transaction(ctx); err == nil {
		if id, ok := trx.idempotencyKeys[key]; ok {
			return id, nil
		}
	}

	id, ok := db.idempotencyKeys[key]
	if !ok {
		return 0, fmt.Errorf("idempotency key %s: %w", key, domain.ErrRecordNotFound)
	}

	return id, nil
}

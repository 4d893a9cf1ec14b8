package memory

import (
	"context"

	"github.com/avstrong/hotel/internal/domain"
)

func (db *DB) SaveInvoice(ctx context.Context, invoice *domain.Invoice) error {
	return db.write(ctx, func(trxID string) { db.invoices.put(trxID, invoice.ID, invoice) })
}

func (db *DB) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return read(ctx, db, "invoice", id, func(trxID string) (*domain.Invoice, bool) {
		return db.invoices.get(trxID, id)
	})
}

func (db *DB) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return read(ctx, db, "invoice", number, func(trxID string) (*domain.Invoice, bool) {
		return db.invoices.first(trxID, func(i *domain.Invoice) bool { return i.Number == number })
	})
}

func (db *DB) GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	return read(ctx, db, "invoice for reservation", reservationID, func(trxID string) (*domain.Invoice, bool) {
		return db.invoices.first(trxID, func(i *domain.Invoice) bool { return i.ReservationID == reservationID })
	})
}

// LastInvoiceNumber returns the highest number issued so far, or "" when there is none.
// Numbers share a prefix, so a longer one is always higher.
func (db *DB) LastInvoiceNumber(ctx context.Context) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var last string

	for _, invoice := range db.invoices.find(readID(ctx), func(*domain.Invoice) bool { return true }) {
		n := invoice.Number
		if len(n) > len(last) || (len(n) == len(last) && n > last) {
			last = n
		}
	}

	return last, nil
}

func (db *DB) SavePayment(ctx context.Context, payment *domain.Payment) error {
	return db.write(ctx, func(trxID string) { db.payments.put(trxID, payment.ID, payment) })
}

func (db *DB) ListPayments(ctx context.Context, invoiceID int64) ([]*domain.Payment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.payments.find(readID(ctx), func(p *domain.Payment) bool { return p.InvoiceID == invoiceID }), nil
}

func (db *DB) SaveAccount(ctx context.Context, account *domain.Account) error {
	return db.write(ctx, func(trxID string) { db.accounts.put(trxID, account.ID, account) })
}

func (db *DB) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return read(ctx, db, "account", id, func(trxID string) (*domain.Account, bool) {
		return db.accounts.get(trxID, id)
	})
}

func (db *DB) GetAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	return read(ctx, db, "account", code, func(trxID string) (*domain.Account, bool) {
		return db.accounts.first(trxID, func(a *domain.Account) bool { return a.Code == code })
	})
}

func (db *DB) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.accounts.find(readID(ctx), filter.Matches), nil
}

// SaveEntry appends; entries are never rewritten.
func (db *DB) SaveEntry(ctx context.Context, entry *domain.JournalEntry) error {
	return db.write(ctx, func(trxID string) { db.entries.put(trxID, entry.ID, entry) })
}

func (db *DB) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.JournalEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.entries.find(readID(ctx), filter.Matches), nil
}

func (db *DB) SavePromo(ctx context.Context, promo *domain.Promo) error {
	return db.write(ctx, func(trxID string) { db.promos.put(trxID, promo.Code, promo) })
}

func (db *DB) GetPromo(ctx context.Context, code string) (*domain.Promo, error) {
	return read(ctx, db, "promo", code, func(trxID string) (*domain.Promo, bool) {
		return db.promos.get(trxID, code)
	})
}

package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/avstrong/hotel/internal/domain"
)

const (
	tableInvoices = "invoices"
	tablePayments = "payments"
	tableAccounts = "accounts"
	tableEntries  = "journal_entries"
	tablePromos   = "promos"
)

var invoiceColumns = []any{"id", "number", "reservation_id", "subtotal", "tax", "discount", "total", "issued_at"}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var i domain.Invoice

	if err := s.Scan(&i.ID, &i.Number, &i.ReservationID, &i.Subtotal, &i.Tax, &i.Discount, &i.Total, &i.IssuedAt); err != nil {
		return nil, err
	}

	return &i, nil
}

func (db *DB) SaveInvoice(ctx context.Context, invoice *domain.Invoice) error {
	return db.exec(ctx, "invoice", upsert(tableInvoices, goqu.Record{
		"id":             invoice.ID,
		"number":         invoice.Number,
		"reservation_id": invoice.ReservationID,
		"subtotal":       invoice.Subtotal,
		"tax":            invoice.Tax,
		"discount":       invoice.Discount,
		"total":          invoice.Total,
		"issued_at":      invoice.IssuedAt,
	}))
}

func (db *DB) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	ds := from(tableInvoices).Select(invoiceColumns...).Where(goqu.C("id").Eq(id))

	return get(ctx, db, "invoice", id, ds, scanInvoice)
}

func (db *DB) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	ds := from(tableInvoices).Select(invoiceColumns...).Where(goqu.C("number").Eq(number))

	return get(ctx, db, "invoice", number, ds, scanInvoice)
}

func (db *DB) GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	ds := from(tableInvoices).Select(invoiceColumns...).Where(goqu.C("reservation_id").Eq(reservationID))

	return get(ctx, db, "invoice for reservation", reservationID, ds, scanInvoice)
}

func lastInvoiceNumberQuery() *goqu.SelectDataset {
	return from(tableInvoices).Select("number").
		Order(goqu.L("length(?)", goqu.C("number")).Desc(), goqu.C("number").Desc()).
		Limit(1)
}

// LastInvoiceNumber returns the highest number issued so far, or "" when there is none.
func (db *DB) LastInvoiceNumber(ctx context.Context) (string, error) {
	number, err := get(ctx, db, "invoice", "last", lastInvoiceNumberQuery(), func(s scanner) (*string, error) {
		var n string
		if err := s.Scan(&n); err != nil {
			return nil, err
		}

		return &n, nil
	})
	if errors.Is(err, domain.ErrRecordNotFound) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	return *number, nil
}

var paymentColumns = []any{"id", "invoice_id", "amount", "method", "reference", "paid_at"}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment

	if err := s.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt); err != nil {
		return nil, err
	}

	return &p, nil
}

func (db *DB) SavePayment(ctx context.Context, payment *domain.Payment) error {
	return db.exec(ctx, "payment", insert(tablePayments, goqu.Record{
		"id":         payment.ID,
		"invoice_id": payment.InvoiceID,
		"amount":     payment.Amount,
		"method":     string(payment.Method),
		"reference":  payment.Reference,
		"paid_at":    payment.PaidAt,
	}))
}

func (db *DB) ListPayments(ctx context.Context, invoiceID int64) ([]*domain.Payment, error) {
	ds := from(tablePayments).Select(paymentColumns...).
		Where(goqu.C("invoice_id").Eq(invoiceID)).
		Order(goqu.C("paid_at").Asc(), goqu.C("id").Asc())

	return list(ctx, db, "payment", ds, scanPayment)
}

var accountColumns = []any{"id", "code", "name", "description", "type", "parent_id", "active", "created_at", "updated_at"}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account

	err := s.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Type, &a.ParentID, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (db *DB) SaveAccount(ctx context.Context, account *domain.Account) error {
	return db.exec(ctx, "account", upsert(tableAccounts, goqu.Record{
		"id":          account.ID,
		"code":        account.Code,
		"name":        account.Name,
		"description": account.Description,
		"type":        string(account.Type),
		"parent_id":   account.ParentID,
		"active":      account.Active,
		"created_at":  account.CreatedAt,
		"updated_at":  account.UpdatedAt,
	}))
}

func (db *DB) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	ds := from(tableAccounts).Select(accountColumns...).Where(goqu.C("id").Eq(id))

	return get(ctx, db, "account", id, ds, scanAccount)
}

func (db *DB) GetAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	ds := from(tableAccounts).Select(accountColumns...).Where(goqu.C("code").Eq(code))

	return get(ctx, db, "account", code, ds, scanAccount)
}

func accountsQuery(filter domain.AccountFilter) *goqu.SelectDataset {
	ds := from(tableAccounts).Select(accountColumns...).Order(goqu.C("code").Asc())

	if filter.Type != "" {
		ds = ds.Where(goqu.C("type").Eq(string(filter.Type)))
	}

	if filter.ParentID != nil {
		ds = ds.Where(goqu.C("parent_id").Eq(*filter.ParentID))
	}

	return ds
}

func (db *DB) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	return list(ctx, db, "account", accountsQuery(filter), scanAccount)
}

var entryColumns = []any{"id", "account_id", "type", "concept", "description", "amount", "date", "reference", "created_at"}

func scanEntry(s scanner) (*domain.JournalEntry, error) {
	var e domain.JournalEntry

	err := s.Scan(&e.ID, &e.AccountID, &e.Type, &e.Concept, &e.Description, &e.Amount, &e.Date, &e.Reference, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.Date = domain.Date(e.Date)

	return &e, nil
}

// SaveEntry appends; the journal has no update path.
func (db *DB) SaveEntry(ctx context.Context, entry *domain.JournalEntry) error {
	return db.exec(ctx, "journal entry", insert(tableEntries, goqu.Record{
		"id":          entry.ID,
		"account_id":  entry.AccountID,
		"type":        string(entry.Type),
		"concept":     entry.Concept,
		"description": entry.Description,
		"amount":      entry.Amount,
		"date":        entry.Date,
		"reference":   entry.Reference,
		"created_at":  entry.CreatedAt,
	}))
}

func entriesQuery(filter domain.EntryFilter) *goqu.SelectDataset {
	ds := from(tableEntries).Select(entryColumns...).Order(goqu.C("date").Asc(), goqu.C("id").Asc())

	if filter.AccountID != 0 {
		ds = ds.Where(goqu.C("account_id").Eq(filter.AccountID))
	}

	if !filter.From.IsZero() {
		ds = ds.Where(goqu.C("date").Gte(filter.From))
	}

	if !filter.To.IsZero() {
		ds = ds.Where(goqu.C("date").Lte(filter.To))
	}

	return ds
}

func (db *DB) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.JournalEntry, error) {
	return list(ctx, db, "journal entry", entriesQuery(filter), scanEntry)
}

func (db *DB) SavePromo(ctx context.Context, promo *domain.Promo) error {
	ds := dialect.Insert(tablePromos).Prepared(true).Rows(goqu.Record{
		"code":          promo.Code,
		"percentage":    promo.Percentage,
		"valid_through": promo.ValidThrough,
	}).OnConflict(goqu.DoUpdate("code", goqu.Record{
		"percentage":    goqu.I("excluded.percentage"),
		"valid_through": goqu.I("excluded.valid_through"),
	}))

	return db.exec(ctx, "promo", ds)
}

func (db *DB) GetPromo(ctx context.Context, code string) (*domain.Promo, error) {
	ds := from(tablePromos).Select("code", "percentage", "valid_through").Where(goqu.C("code").Eq(code))

	return get(ctx, db, "promo", code, ds, func(s scanner) (*domain.Promo, error) {
		var p domain.Promo
		if err := s.Scan(&p.Code, &p.Percentage, &p.ValidThrough); err != nil {
			return nil, err
		}

		return &p, nil
	})
}

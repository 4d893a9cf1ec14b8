package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/txn"
)

// DefaultTaxRate is the VAT applied to every invoice subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.15") //nolint:gochecknoglobals

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storageReader interface {
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	LastInvoiceNumber(ctx context.Context) (string, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]*domain.Payment, error)
}

type storageWriter interface {
	txn.Storage
	txn.Locker
	SaveInvoice(ctx context.Context, invoice *domain.Invoice) error
	SavePayment(ctx context.Context, payment *domain.Payment) error
}

type storage interface {
	storageReader
	storageWriter
}

type revenuePoster interface {
	PostRevenue(ctx context.Context, input *ledger.RevenueInput) (*domain.JournalEntry, error)
}

// DiscountStrategy contributes an amount to an invoice discount.
type DiscountStrategy interface {
	Discount(subtotal decimal.Decimal, at time.Time) (decimal.Decimal, error)
}

type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
	ledger      revenuePoster
	now         func() time.Time
	taxRate     decimal.Decimal
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTaxRate(rate decimal.Decimal) Option {
	return func(m *Manager) { m.taxRate = rate }
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator, ledger revenuePoster, opts ...Option) *Manager {
	m := &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
		ledger:      ledger,
		now:         time.Now,
		taxRate:     DefaultTaxRate,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type InvoiceInput struct {
	ReservationID int64
	Discount      decimal.Decimal
	Strategies    []DiscountStrategy
}

func (in *InvoiceInput) validate() error {
	inputErr := domain.NewInputError()

	if in.ReservationID <= 0 {
		inputErr.AddError("reservation_id", "provide reservation_id")
	}

	if in.Discount.IsNegative() {
		inputErr.AddError("discount", "discount must not be negative")
	}

	if !domain.WholeCents(in.Discount) {
		inputErr.AddError("discount", "discount must not have more than two decimals")
	}

	return inputErr.OrNil()
}

// GenerateInvoice issues the one invoice a reservation may have. Numbers are handed out under
// a store wide lock, so they are gap free and never repeat.
func (m *Manager) GenerateInvoice(ctx context.Context, input *InvoiceInput) (*domain.Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "billing.GenerateInvoice", func(ctx context.Context) (*domain.Invoice, error) {
		return m.generate(ctx, input)
	})
}

// EnsureInvoice returns the reservation's invoice, issuing one without discount if needed.
func (m *Manager) EnsureInvoice(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	return txn.Do(ctx, m.l, m.storage, "billing.EnsureInvoice", func(ctx context.Context) (*domain.Invoice, error) {
		if err := m.storage.AcquireLock(ctx, txn.InvoiceSequenceLock); err != nil {
			return nil, fmt.Errorf("lock invoice sequence: %w", err)
		}

		invoice, err := m.storage.GetInvoiceByReservation(ctx, reservationID)
		if err == nil {
			return invoice, nil
		}

		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("get invoice by reservation: %w", err)
		}

		return m.generate(ctx, &InvoiceInput{ReservationID: reservationID, Discount: decimal.Zero, Strategies: nil})
	})
}

// generate reads the reservation under the sequence lock, which Cancel also takes, so a
// reservation cannot be cancelled while it is being invoiced.
func (m *Manager) generate(ctx context.Context, input *InvoiceInput) (*domain.Invoice, error) {
	if err := m.storage.AcquireLock(ctx, txn.InvoiceSequenceLock); err != nil {
		return nil, fmt.Errorf("lock invoice sequence: %w", err)
	}

	r, err := m.storage.GetReservation(ctx, input.ReservationID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("reservation", input.ReservationID)
	}

	if err != nil {
		return nil, fmt.Errorf("get reservation from storage: %w", err)
	}

	if r.State == domain.ReservationCancelled {
		return nil, domain.InvalidStatef("reservation", "%v is cancelled", r.ID)
	}

	_, err = m.storage.GetInvoiceByReservation(ctx, r.ID)
	if err == nil {
		return nil, domain.Conflictf("invoice", "reservation %v is already invoiced", r.ID)
	}

	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("get invoice by reservation: %w", err)
	}

	now := m.now().UTC()
	subtotal := r.TotalPrice
	tax := Tax(subtotal, m.taxRate)

	discount, err := m.discount(subtotal, tax, now, input)
	if err != nil {
		return nil, err
	}

	last, err := m.storage.LastInvoiceNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get last invoice number: %w", err)
	}

	number, err := NextNumber(last)
	if err != nil {
		return nil, err
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
	}

	invoice := &domain.Invoice{
		ID:            id,
		Number:        number,
		ReservationID: r.ID,
		Subtotal:      subtotal,
		Tax:           tax,
		Discount:      discount,
		Total:         domain.InvoiceTotal(subtotal, tax, discount),
		IssuedAt:      now,
	}

	if err = m.storage.SaveInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("save invoice to storage: %w", err)
	}

	m.l.LogInfo("Invoice %s issued for reservation %v, total %s", invoice.Number, r.ID, invoice.Total.StringFixed(2))

	return invoice, nil
}

func (m *Manager) discount(subtotal, tax decimal.Decimal, at time.Time, input *InvoiceInput) (decimal.Decimal, error) {
	discount := input.Discount

	for _, strategy := range input.Strategies {
		d, err := strategy.Discount(subtotal, at)
		if err != nil {
			return decimal.Zero, fmt.Errorf("apply discount strategy: %w", err)
		}

		discount = discount.Add(d)
	}

	if discount.IsNegative() {
		return decimal.Zero, domain.InvalidInputf("invoice", "discount must not be negative")
	}

	if discount.GreaterThan(subtotal.Add(tax)) {
		return decimal.Zero, domain.InvalidInputf("invoice", "discount %s exceeds subtotal plus tax %s",
			discount.StringFixed(2), subtotal.Add(tax).StringFixed(2))
	}

	return discount, nil
}

// Tax is subtotal * rate rounded half away from zero to cents.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

func (m *Manager) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := m.storage.GetInvoice(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("invoice", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get invoice from storage: %w", err)
	}

	return invoice, nil
}

func (m *Manager) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	invoice, err := m.storage.GetInvoiceByNumber(ctx, number)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("invoice", number)
	}

	if err != nil {
		return nil, fmt.Errorf("get invoice by number from storage: %w", err)
	}

	return invoice, nil
}

func (m *Manager) GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error) {
	invoice, err := m.storage.GetInvoiceByReservation(ctx, reservationID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("invoice for reservation", reservationID)
	}

	if err != nil {
		return nil, fmt.Errorf("get invoice by reservation from storage: %w", err)
	}

	return invoice, nil
}

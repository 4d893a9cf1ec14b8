package billing_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/boost"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/storage/memory"
)

var today = time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)

type fixture struct {
	db      *memory.DB
	billing *billing.Manager
	ledger  *ledger.Manager
	idGen   *simple.Generator
}

func newFixture() *fixture {
	l := logger.NewNop()
	db := memory.New(memory.Config{L: l})
	idGen := simple.New()
	clock := func() time.Time { return today }
	ledgerManager := ledger.New(l, db, idGen, ledger.WithClock(clock))

	return &fixture{
		db:      db,
		billing: billing.New(l, db, idGen, ledgerManager, billing.WithClock(clock)),
		ledger:  ledgerManager,
		idGen:   idGen,
	}
}

func (f *fixture) reservation(t *testing.T, total string) *domain.Reservation {
	t.Helper()

	ctx := context.Background()

	id, err := f.idGen.GetID(ctx)
	require.NoError(t, err)

	//nolint:exhaustruct
	r := &domain.Reservation{
		ID:         id,
		RoomID:     1,
		CustomerID: 1,
		CheckIn:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		TotalPrice: decimal.RequireFromString(total),
		State:      domain.ReservationCompleted,
	}

	trxCtx, err := f.db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, f.db.SaveReservation(trxCtx, r))
	require.NoError(t, f.db.CommitTransaction(trxCtx))

	return r
}

func (f *fixture) invoice(t *testing.T, total string) *domain.Invoice {
	t.Helper()

	r := f.reservation(t, total)

	//nolint:exhaustruct
	invoice, err := f.billing.GenerateInvoice(context.Background(), &billing.InvoiceInput{ReservationID: r.ID})
	require.NoError(t, err)

	return invoice
}

func Test_NextNumber(t *testing.T) {
	tests := []struct{ last, want string }{
		{"", "FAC-000001"},
		{"FAC-000001", "FAC-000002"},
		{"FAC-000999", "FAC-001000"},
		{"FAC-999999", "FAC-1000000"},
	}

	for _, tt := range tests {
		got, err := billing.NextNumber(tt.last)

		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := billing.NextNumber("INV-000001")
	assert.Error(t, err)
}

func Test_Manager_GenerateInvoice_Arithmetic(t *testing.T) {
	// arrange
	f := newFixture()
	r := f.reservation(t, "200.00")

	// act
	invoice, err := f.billing.GenerateInvoice(context.Background(), &billing.InvoiceInput{
		ReservationID: r.ID,
		Discount:      decimal.RequireFromString("10"),
		Strategies:    nil,
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "200.00", invoice.Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", invoice.Tax.StringFixed(2))
	assert.Equal(t, "10.00", invoice.Discount.StringFixed(2))
	assert.Equal(t, "220.00", invoice.Total.StringFixed(2))
	assert.Equal(t, "FAC-000001", invoice.Number)
	assert.Equal(t, today, invoice.IssuedAt)
}

func Test_Manager_GenerateInvoice_TaxRoundsToCents(t *testing.T) {
	f := newFixture()
	r := f.reservation(t, "33.33")

	//nolint:exhaustruct
	invoice, err := f.billing.GenerateInvoice(context.Background(), &billing.InvoiceInput{ReservationID: r.ID})

	require.NoError(t, err)
	assert.Equal(t, "5.00", invoice.Tax.StringFixed(2))
	assert.Equal(t, "38.33", invoice.Total.StringFixed(2))
}

func Test_Manager_GenerateInvoice_NumbersAreSequential(t *testing.T) {
	f := newFixture()

	for i := 1; i <= 5; i++ {
		invoice := f.invoice(t, "100")

		assert.Equal(t, fmt.Sprintf("FAC-%06d", i), invoice.Number)
	}
}

func Test_Manager_GenerateInvoice_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.reservation(t, "100.00")

	//nolint:exhaustruct
	_, err := f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID + 1000})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	//nolint:exhaustruct
	_, err = f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID, Discount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	//nolint:exhaustruct
	_, err = f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID, Discount: decimal.RequireFromString("1.005")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	//nolint:exhaustruct
	_, err = f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID, Discount: decimal.RequireFromString("115.01")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	//nolint:exhaustruct
	invoice, err := f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID, Discount: decimal.RequireFromString("115.00")})
	require.NoError(t, err)
	assert.True(t, invoice.Total.IsZero())

	//nolint:exhaustruct
	_, err = f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func Test_Manager_GenerateInvoice_AppliesStrategies(t *testing.T) {
	f := newFixture()
	r := f.reservation(t, "150.00")

	invoice, err := f.billing.GenerateInvoice(context.Background(), &billing.InvoiceInput{
		ReservationID: r.ID,
		Discount:      decimal.RequireFromString("5"),
		Strategies: []billing.DiscountStrategy{
			&boost.PromoCode{Code: "SPRING", Percentage: decimal.NewFromInt(10), ValidThrough: today.AddDate(0, 0, 1)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "20.00", invoice.Discount.StringFixed(2))
	assert.Equal(t, "152.50", invoice.Total.StringFixed(2))
}

func Test_Manager_EnsureInvoice_IsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.reservation(t, "150.00")

	first, err := f.billing.EnsureInvoice(ctx, r.ID)
	require.NoError(t, err)

	second, err := f.billing.EnsureInvoice(ctx, r.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func Test_Manager_GenerateInvoice_ConcurrentNumbersNeverRepeat(t *testing.T) {
	f := newFixture()

	const n = 20

	reservations := make([]*domain.Reservation, n)
	for i := range reservations {
		reservations[i] = f.reservation(t, "10")
	}

	var (
		mu      sync.Mutex
		numbers = make(map[string]struct{}, n)
		wg      sync.WaitGroup
	)

	for _, r := range reservations {
		wg.Add(1)

		go func() {
			defer wg.Done()

			//nolint:exhaustruct
			invoice, err := f.billing.GenerateInvoice(context.Background(), &billing.InvoiceInput{ReservationID: r.ID})
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			numbers[invoice.Number] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, numbers, n)

	for i := 1; i <= n; i++ {
		assert.Contains(t, numbers, fmt.Sprintf("FAC-%06d", i))
	}
}

func Test_Manager_RecordPayment_Ceiling(t *testing.T) {
	// arrange
	f := newFixture()
	ctx := context.Background()

	r := f.reservation(t, "100.00")

	//nolint:exhaustruct
	invoice, err := f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID, Discount: decimal.RequireFromString("15")})
	require.NoError(t, err)
	require.Equal(t, "100.00", invoice.Total.StringFixed(2))

	pay := func(amount string) error {
		_, err := f.billing.RecordPayment(ctx, &billing.PaymentInput{
			InvoiceID: invoice.ID,
			Amount:    decimal.RequireFromString(amount),
			Method:    domain.PaymentCard,
			Reference: "",
		})

		return err
	}

	// act + assert
	require.NoError(t, pay("60"))
	assert.ErrorIs(t, pay("50"), domain.ErrConflict)
	require.NoError(t, pay("40"))

	balance, err := f.billing.OutstandingBalance(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.StringFixed(2))

	assert.ErrorIs(t, pay("0.01"), domain.ErrConflict)

	payments, err := f.billing.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func Test_Manager_RecordPayment_PostsRevenue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	invoice := f.invoice(t, "150.00")

	//nolint:exhaustruct
	_, err := f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID, Amount: decimal.RequireFromString("72.50"), Method: domain.PaymentCash})
	require.NoError(t, err)

	a, err := f.ledger.GetAccountByCode(ctx, ledger.DefaultRevenueAccountCode)
	require.NoError(t, err)

	entries, err := f.ledger.ListEntries(ctx, domain.EntryFilter{AccountID: a.ID}) //nolint:exhaustruct
	require.NoError(t, err)

	if assert.Len(t, entries, 1) {
		assert.Equal(t, domain.EntryCredit, entries[0].Type)
		assert.Equal(t, "72.50", entries[0].Amount.StringFixed(2))
		assert.Equal(t, invoice.Number, entries[0].Reference)
		assert.Contains(t, entries[0].Concept, fmt.Sprintf("Reservation #%d", invoice.ReservationID))
	}
}

func Test_Manager_RecordPayment_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	invoice := f.invoice(t, "10")

	//nolint:exhaustruct
	_, err := f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID, Amount: decimal.Zero, Method: "cheque"})

	inputErr := domain.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Equal(t, 2, inputErr.FieldsCount())

	//nolint:exhaustruct
	_, err = f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID, Amount: decimal.RequireFromString("0.001"), Method: domain.PaymentCash})
	if assert.ErrorIs(t, err, domain.ErrInvalidInput) {
		assert.Contains(t, domain.IsInputError(err).Fields(), "amount")
	}

	payments, err := f.billing.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	//nolint:exhaustruct
	_, err = f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID + 99, Amount: decimal.NewFromInt(1), Method: domain.PaymentCash})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_Manager_RecordPayment_RefusesCancelledReservation(t *testing.T) {
	// arrange
	f := newFixture()
	ctx := context.Background()
	invoice := f.invoice(t, "150.00")

	r, err := f.db.GetReservation(ctx, invoice.ReservationID)
	require.NoError(t, err)

	r.State = domain.ReservationCancelled

	trxCtx, err := f.db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, f.db.SaveReservation(trxCtx, r))
	require.NoError(t, f.db.CommitTransaction(trxCtx))

	// act
	//nolint:exhaustruct
	_, err = f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(10), Method: domain.PaymentCash})

	// assert
	require.ErrorIs(t, err, domain.ErrInvalidState)

	entries, err := f.ledger.ListEntries(ctx, domain.EntryFilter{}) //nolint:exhaustruct
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_Manager_RecordPayment_ConcurrentNeverOvershoots(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	invoice := f.invoice(t, "100.00")

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			//nolint:exhaustruct
			_, _ = f.billing.RecordPayment(ctx, &billing.PaymentInput{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(25), Method: domain.PaymentTransfer})
		}()
	}

	wg.Wait()

	balance, err := f.billing.OutstandingBalance(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", balance.StringFixed(2))

	payments, err := f.billing.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 4)
}

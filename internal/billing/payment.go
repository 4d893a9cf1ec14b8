package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/txn"
)

type PaymentInput struct {
	InvoiceID int64                `json:"invoice_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    domain.PaymentMethod `json:"method"`
	Reference string               `json:"reference"`
}

func (in *PaymentInput) validate() error {
	inputErr := domain.NewInputError()

	if !in.Amount.IsPositive() {
		inputErr.AddError("amount", "amount must be positive")
	}

	if !domain.WholeCents(in.Amount) {
		inputErr.AddError("amount", "amount must not have more than two decimals")
	}

	if !in.Method.Valid() {
		inputErr.AddError("method", "method must be one of cash, card, transfer")
	}

	return inputErr.OrNil()
}

// RecordPayment applies a payment against the invoice balance and recognizes it as revenue
// in the same transaction. Payments above the outstanding balance are rejected.
func (m *Manager) RecordPayment(ctx context.Context, input *PaymentInput) (*domain.Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "billing.RecordPayment", func(ctx context.Context) (*domain.Payment, error) {
		if err := m.storage.AcquireLock(ctx, txn.LockKey("invoice", input.InvoiceID)); err != nil {
			return nil, fmt.Errorf("lock invoice: %w", err)
		}

		invoice, err := m.GetInvoice(ctx, input.InvoiceID)
		if err != nil {
			return nil, err
		}

		r, err := m.storage.GetReservation(ctx, invoice.ReservationID)
		if err != nil {
			return nil, fmt.Errorf("get reservation of invoice %s: %w", invoice.Number, err)
		}

		if r.State == domain.ReservationCancelled {
			return nil, domain.InvalidStatef("invoice", "%s belongs to cancelled reservation %v", invoice.Number, r.ID)
		}

		outstanding, err := m.outstanding(ctx, invoice)
		if err != nil {
			return nil, err
		}

		if input.Amount.GreaterThan(outstanding) {
			return nil, domain.Conflictf("invoice", "payment %s exceeds outstanding balance %s of %s",
				input.Amount.StringFixed(2), outstanding.StringFixed(2), invoice.Number)
		}

		id, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
		}

		payment := &domain.Payment{
			ID:        id,
			InvoiceID: invoice.ID,
			Amount:    input.Amount,
			Method:    input.Method,
			Reference: input.Reference,
			PaidAt:    m.now().UTC(),
		}

		if err = m.storage.SavePayment(ctx, payment); err != nil {
			return nil, fmt.Errorf("save payment to storage: %w", err)
		}

		_, err = m.ledger.PostRevenue(ctx, &ledger.RevenueInput{
			Amount:    payment.Amount,
			Concept:   fmt.Sprintf("Payment %s - Reservation #%d", invoice.Number, invoice.ReservationID),
			Reference: invoice.Number,
			Date:      payment.PaidAt,
		})
		if err != nil {
			return nil, fmt.Errorf("post revenue: %w", err)
		}

		m.l.LogInfo("Payment of %s recorded on invoice %s", payment.Amount.StringFixed(2), invoice.Number)

		return payment, nil
	})
}

// OutstandingBalance is the invoice total minus every payment recorded against it.
func (m *Manager) OutstandingBalance(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	invoice, err := m.GetInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}

	return m.outstanding(ctx, invoice)
}

func (m *Manager) outstanding(ctx context.Context, invoice *domain.Invoice) (decimal.Decimal, error) {
	payments, err := m.storage.ListPayments(ctx, invoice.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list payments from storage: %w", err)
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	return invoice.Total.Sub(paid), nil
}

func (m *Manager) ListPayments(ctx context.Context, invoiceID int64) ([]*domain.Payment, error) {
	if _, err := m.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}

	payments, err := m.storage.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments from storage: %w", err)
	}

	return payments, nil
}

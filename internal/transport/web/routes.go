package web

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/booking"
	"github.com/avstrong/hotel/internal/customer"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/room"
)

const idempotencyKeyHeader = "Idempotency-Key"

func (s *Server) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	var input room.CreateInput

	if err := decode(r, &input); err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.Create(r.Context(), &input)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, rm)
}

func (s *Server) availableRoomsHandler(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	to, err := queryDay(r, "to")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rooms, err := s.m.Booking.AvailableRooms(r.Context(), &booking.AvailabilityQuery{
		CheckIn:  from,
		CheckOut: to,
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var input customer.CreateInput

	if err := decode(r, &input); err != nil {
		s.writeError(w, r, err)

		return
	}

	c, err := s.m.Customers.Create(r.Context(), &input)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, c)
}

type reservationRequest struct {
	CustomerID int64  `json:"customer_id"`
	RoomID     int64  `json:"room_id"`
	CheckIn    day    `json:"check_in"`
	CheckOut   day    `json:"check_out"`
	Notes      string `json:"notes"`
}

// createReservationHandler replays the first result when the Idempotency-Key header repeats.
func (s *Server) createReservationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reservationRequest

	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		ctx = domain.NewContextWithIdempotencyKey(ctx, key)
	}

	reservation, err := s.m.Booking.Create(ctx, &booking.CreateInput{
		CustomerID: req.CustomerID,
		RoomID:     req.RoomID,
		CheckIn:    req.CheckIn.Time,
		CheckOut:   req.CheckOut.Time,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) getReservationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	reservation, err := s.m.Booking.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) checkInHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	reservation, err := s.m.Booking.CheckIn(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) checkOutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	out, err := s.m.Booking.CheckOut(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var req cancelRequest

	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	reservation, err := s.m.Booking.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reservation)
}

type invoiceRequest struct {
	ReservationID int64           `json:"reservation_id"`
	Discount      decimal.Decimal `json:"discount"`
	PromoCode     string          `json:"promo_code"`
}

func (s *Server) createInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req invoiceRequest

	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	strategies, err := s.m.Boost.Strategies(ctx, req.PromoCode)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	invoice, err := s.m.Billing.GenerateInvoice(ctx, &billing.InvoiceInput{
		ReservationID: req.ReservationID,
		Discount:      req.Discount,
		Strategies:    strategies,
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, invoice)
}

func (s *Server) getInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	invoice, err := s.m.Billing.GetInvoice(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, invoice)
}

type paymentRequest struct {
	Amount    decimal.Decimal      `json:"amount"`
	Method    domain.PaymentMethod `json:"method"`
	Reference string               `json:"reference"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var req paymentRequest

	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	payment, err := s.m.Billing.RecordPayment(r.Context(), &billing.PaymentInput{
		InvoiceID: id,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, payment)
}

type balanceResponse struct {
	InvoiceID   int64           `json:"invoice_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (s *Server) invoiceBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	outstanding, err := s.m.Billing.OutstandingBalance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, balanceResponse{InvoiceID: id, Outstanding: outstanding})
}

func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var input ledger.AccountInput

	if err := decode(r, &input); err != nil {
		s.writeError(w, r, err)

		return
	}

	account, err := s.m.Ledger.CreateAccount(r.Context(), &input)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) subaccountsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	accounts, err := s.m.Ledger.Subaccounts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, accounts)
}

type entryRequest struct {
	AccountID   int64            `json:"account_id"`
	Type        domain.EntryType `json:"type"`
	Concept     string           `json:"concept"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Date        day              `json:"date"`
	Reference   string           `json:"reference"`
}

func (s *Server) postEntryHandler(w http.ResponseWriter, r *http.Request) {
	var req entryRequest

	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	entry, err := s.m.Ledger.PostTransaction(r.Context(), &ledger.PostInput{
		AccountID:   req.AccountID,
		Type:        req.Type,
		Concept:     req.Concept,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        req.Date.Time,
		Reference:   req.Reference,
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) ledgerBalanceHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	balance, err := s.m.Ledger.Balance(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.applyMiddlewares(h,
		s.recoverMiddleware(),
		s.loggerMiddleware(),
		s.tracingMiddleware(pattern),
		s.requestIDMiddleware(),
	))
}

func (s *Server) addRoutes(mux *http.ServeMux) {
	s.handle(mux, "POST /api/rooms/v1", s.createRoomHandler)
	s.handle(mux, "GET /api/rooms/v1", s.listRoomsHandler)
	s.handle(mux, "GET /api/rooms/v1/available", s.availableRoomsHandler)
	s.handle(mux, "GET /api/rooms/v1/lookup", s.lookupRoomHandler)
	s.handle(mux, "GET /api/rooms/v1/{id}", s.getRoomHandler)
	s.handle(mux, "PUT /api/rooms/v1/{id}", s.updateRoomHandler)
	s.handle(mux, "POST /api/rooms/v1/{id}/maintenance", s.startMaintenanceHandler)
	s.handle(mux, "DELETE /api/rooms/v1/{id}/maintenance", s.endMaintenanceHandler)

	s.handle(mux, "POST /api/customers/v1", s.createCustomerHandler)
	s.handle(mux, "GET /api/customers/v1", s.listCustomersHandler)
	s.handle(mux, "GET /api/customers/v1/lookup", s.lookupCustomerHandler)
	s.handle(mux, "GET /api/customers/v1/{id}", s.getCustomerHandler)
	s.handle(mux, "PUT /api/customers/v1/{id}", s.updateCustomerHandler)

	s.handle(mux, "POST /api/reservations/v1", s.createReservationHandler)
	s.handle(mux, "GET /api/reservations/v1", s.listReservationsHandler)
	s.handle(mux, "GET /api/reservations/v1/{id}", s.getReservationHandler)
	s.handle(mux, "PUT /api/reservations/v1/{id}", s.updateReservationHandler)
	s.handle(mux, "POST /api/reservations/v1/{id}/check-in", s.checkInHandler)
	s.handle(mux, "POST /api/reservations/v1/{id}/check-out", s.checkOutHandler)
	s.handle(mux, "POST /api/reservations/v1/{id}/cancel", s.cancelHandler)

	s.handle(mux, "POST /api/invoices/v1", s.createInvoiceHandler)
	s.handle(mux, "GET /api/invoices/v1/lookup", s.lookupInvoiceHandler)
	s.handle(mux, "GET /api/invoices/v1/{id}", s.getInvoiceHandler)
	s.handle(mux, "POST /api/invoices/v1/{id}/payments", s.recordPaymentHandler)
	s.handle(mux, "GET /api/invoices/v1/{id}/payments", s.listPaymentsHandler)
	s.handle(mux, "GET /api/invoices/v1/{id}/balance", s.invoiceBalanceHandler)

	s.handle(mux, "POST /api/accounts/v1", s.createAccountHandler)
	s.handle(mux, "GET /api/accounts/v1", s.listAccountsHandler)
	s.handle(mux, "GET /api/accounts/v1/lookup", s.lookupAccountHandler)
	s.handle(mux, "GET /api/accounts/v1/{id}", s.getAccountHandler)
	s.handle(mux, "PUT /api/accounts/v1/{id}", s.updateAccountHandler)
	s.handle(mux, "GET /api/accounts/v1/{id}/subaccounts", s.subaccountsHandler)
	s.handle(mux, "GET /api/accounts/v1/{id}/balance", s.accountBalanceHandler)

	s.handle(mux, "POST /api/ledger/v1/entries", s.postEntryHandler)
	s.handle(mux, "GET /api/ledger/v1/entries", s.listEntriesHandler)
	s.handle(mux, "GET /api/ledger/v1/balance", s.ledgerBalanceHandler)

	s.handle(mux, fmt.Sprintf("GET %s", s.conf.LivenessEndpoint), s.livenessHandler)
}

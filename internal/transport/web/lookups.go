package web

import (
	"net/http"
	"time"

	"github.com/avstrong/hotel/internal/booking"
	"github.com/avstrong/hotel/internal/customer"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/room"
)

func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	onlyActive, err := queryBool(r, "active")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rooms, err := s.m.Rooms.List(r.Context(), domain.RoomFilter{
		Category:   r.URL.Query().Get("category"),
		OnlyActive: onlyActive,
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) lookupRoomHandler(w http.ResponseWriter, r *http.Request) {
	code, err := queryRequired(r, "code")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.GetByCode(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) updateRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var update room.Update

	if err = decode(r, &update); err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.Update(r.Context(), id, &update)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) startMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.StartMaintenance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) endMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	rm, err := s.m.Rooms.EndMaintenance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	customers, err := s.m.Customers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, customers)
}

func (s *Server) lookupCustomerHandler(w http.ResponseWriter, r *http.Request) {
	identification, err := queryRequired(r, "identification")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	c, err := s.m.Customers.GetByIdentification(r.Context(), identification)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) getCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	c, err := s.m.Customers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var update customer.Update

	if err = decode(r, &update); err != nil {
		s.writeError(w, r, err)

		return
	}

	c, err := s.m.Customers.Update(r.Context(), id, &update)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, c)
}

// listReservationsHandler needs exactly one of customer_id or room_id.
func (s *Server) listReservationsHandler(w http.ResponseWriter, r *http.Request) {
	customerID, err := queryID(r, "customer_id")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	roomID, err := queryID(r, "room_id")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var reservations []*domain.Reservation

	switch {
	case customerID != 0 && roomID == 0:
		reservations, err = s.m.Booking.ListByCustomer(r.Context(), customerID)
	case roomID != 0 && customerID == 0:
		reservations, err = s.m.Booking.ListByRoom(r.Context(), roomID)
	default:
		err = domain.InvalidInputf("", "provide either customer_id or room_id")
	}

	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reservations)
}

type reservationUpdateRequest struct {
	CheckIn  *day    `json:"check_in"`
	CheckOut *day    `json:"check_out"`
	Notes    *string `json:"notes"`
}

func (req *reservationUpdateRequest) update() *booking.Update {
	//nolint:exhaustruct
	u := &booking.Update{Notes: req.Notes}

	if req.CheckIn != nil {
		t := req.CheckIn.Time
		u.CheckIn = &t
	}

	if req.CheckOut != nil {
		t := req.CheckOut.Time
		u.CheckOut = &t
	}

	return u
}

func (s *Server) updateReservationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var req reservationUpdateRequest

	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	reservation, err := s.m.Booking.Update(r.Context(), id, req.update())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, reservation)
}

// lookupInvoiceHandler finds an invoice by number or by reservation_id.
func (s *Server) lookupInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	reservationID, err := queryID(r, "reservation_id")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	number := r.URL.Query().Get("number")

	var invoice *domain.Invoice

	switch {
	case number != "" && reservationID == 0:
		invoice, err = s.m.Billing.GetInvoiceByNumber(r.Context(), number)
	case reservationID != 0 && number == "":
		invoice, err = s.m.Billing.GetInvoiceByReservation(r.Context(), reservationID)
	default:
		err = domain.InvalidInputf("", "provide either number or reservation_id")
	}

	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, invoice)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	payments, err := s.m.Billing.ListPayments(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, payments)
}

func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	parentID, err := queryID(r, "parent_id")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	filter := domain.AccountFilter{Type: domain.AccountType(r.URL.Query().Get("type")), ParentID: nil}
	if parentID != 0 {
		filter.ParentID = &parentID
	}

	accounts, err := s.m.Ledger.ListAccounts(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) lookupAccountHandler(w http.ResponseWriter, r *http.Request) {
	code, err := queryRequired(r, "code")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	account, err := s.m.Ledger.GetAccountByCode(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) getAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	account, err := s.m.Ledger.GetAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) updateAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var update ledger.AccountUpdate

	if err = decode(r, &update); err != nil {
		s.writeError(w, r, err)

		return
	}

	account, err := s.m.Ledger.UpdateAccount(r.Context(), id, &update)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) accountBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	from, to, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	balance, err := s.m.Ledger.AccountBalance(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) listEntriesHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryID(r, "account_id")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	from, to, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	entries, err := s.m.Ledger.ListEntries(r.Context(), domain.EntryFilter{AccountID: accountID, From: from, To: to})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, entries)
}

func queryPeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDay(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to, err := queryDay(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return from, to, nil
}

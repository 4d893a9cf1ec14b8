package booking_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/booking"
	"github.com/avstrong/hotel/internal/customer"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/room"
	"github.com/avstrong/hotel/internal/storage/memory"
)

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = t
}

type fixture struct {
	db        *memory.DB
	clock     *clock
	rooms     *room.Manager
	customers *customer.Manager
	booking   *booking.Manager
	billing   *billing.Manager
}

func newFixture(now time.Time) *fixture {
	l := logger.NewNop()
	db := memory.New(memory.Config{L: l})
	idGen := simple.New()
	c := &clock{t: now} //nolint:exhaustruct

	ledgerManager := ledger.New(l, db, idGen, ledger.WithClock(c.Now))
	billingManager := billing.New(l, db, idGen, ledgerManager, billing.WithClock(c.Now))

	return &fixture{
		db:        db,
		clock:     c,
		rooms:     room.New(l, db, idGen, room.WithClock(c.Now)),
		customers: customer.New(l, db, idGen),
		booking:   booking.New(l, db, idGen, billingManager, booking.WithClock(c.Now)),
		billing:   billingManager,
	}
}

func (f *fixture) room(t *testing.T, code, rate string) *domain.Room {
	t.Helper()

	r, err := f.rooms.Create(context.Background(), &room.CreateInput{
		Code:        code,
		Category:    "double",
		NightlyRate: decimal.RequireFromString(rate),
		Capacity:    2,
		Features:    "",
	})
	require.NoError(t, err)

	return r
}

func (f *fixture) customer(t *testing.T, identification string) *domain.Customer {
	t.Helper()

	c, err := f.customers.Create(context.Background(), &customer.CreateInput{
		FirstName:      "Ana",
		LastName:       "Lopez",
		Identification: identification,
		Email:          identification + "@example.com",
		Phone:          "",
		Address:        "",
	})
	require.NoError(t, err)

	return c
}

func (f *fixture) roomState(t *testing.T, id int64) domain.RoomState {
	t.Helper()

	r, err := f.rooms.Get(context.Background(), id)
	require.NoError(t, err)

	return r.State
}

// seed stores a reservation in the given state directly, bypassing the manager.
func (f *fixture) seed(t *testing.T, id int64, state domain.ReservationState, in *booking.CreateInput) *domain.Reservation {
	t.Helper()

	ctx := context.Background()

	//nolint:exhaustruct
	r := &domain.Reservation{
		ID:         id,
		RoomID:     in.RoomID,
		CustomerID: in.CustomerID,
		CheckIn:    in.CheckIn,
		CheckOut:   in.CheckOut,
		TotalPrice: decimal.NewFromInt(100),
		State:      state,
	}

	trxCtx, err := f.db.BeginTransaction(ctx, "")
	require.NoError(t, err)
	require.NoError(t, f.db.SaveReservation(trxCtx, r))
	require.NoError(t, f.db.CommitTransaction(trxCtx))

	return r
}

func stay(customerID, roomID int64, checkIn, checkOut time.Time) *booking.CreateInput {
	return &booking.CreateInput{CustomerID: customerID, RoomID: roomID, CheckIn: checkIn, CheckOut: checkOut, Notes: ""}
}

func Test_Manager_EndToEnd(t *testing.T) {
	// arrange
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50.00")
	guest := f.customer(t, "1712345678")

	// act: book
	r, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))

	require.NoError(t, err)
	assert.Equal(t, "150.00", r.TotalPrice.StringFixed(2))
	assert.Equal(t, domain.ReservationConfirmed, r.State)
	assert.Equal(t, domain.RoomReserved, f.roomState(t, rm.ID))

	// act: check in on the arrival day
	f.clock.Set(date(2024, 3, 1).Add(14 * time.Hour))

	r, err = f.booking.CheckIn(ctx, r.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationInProgress, r.State)
	assert.Equal(t, domain.RoomOccupied, f.roomState(t, rm.ID))

	// act: check out
	f.clock.Set(date(2024, 3, 4).Add(10 * time.Hour))

	out, err := f.booking.CheckOut(ctx, r.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCompleted, out.Reservation.State)
	assert.Equal(t, domain.RoomAvailable, f.roomState(t, rm.ID))

	invoice := out.Invoice
	assert.Equal(t, "FAC-000001", invoice.Number)
	assert.Equal(t, "150.00", invoice.Subtotal.StringFixed(2))
	assert.Equal(t, "22.50", invoice.Tax.StringFixed(2))
	assert.Equal(t, "0.00", invoice.Discount.StringFixed(2))
	assert.Equal(t, "172.50", invoice.Total.StringFixed(2))

	stored, err := f.billing.GetInvoiceByReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, stored.ID)
}

func Test_Manager_Create_AdjacentStaysDoNotConflict(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	_, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 4), date(2024, 3, 6)))
	assert.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 2, 27), date(2024, 3, 1)))
	assert.NoError(t, err)
}

func Test_Manager_Create_OverlapConflicts(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	first, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 3), date(2024, 3, 5)))

	assert.ErrorIs(t, err, domain.ErrConflict)

	availabilityErr := domain.IsAvailabilityError(err)
	require.NotNil(t, availabilityErr)
	assert.Equal(t, []int64{first.ID}, availabilityErr.Conflicts)
}

func Test_Manager_Create_CancelledStayFreesDates(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	first, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.Cancel(ctx, first.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomAvailable, f.roomState(t, rm.ID))

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	assert.NoError(t, err)
}

func Test_Manager_Create_Validation(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	tests := []struct {
		name  string
		input *booking.CreateInput
		kind  error
	}{
		{"check out before check in", stay(guest.ID, rm.ID, date(2024, 3, 4), date(2024, 3, 1)), domain.ErrInvalidInput},
		{"same day", stay(guest.ID, rm.ID, date(2024, 3, 4), date(2024, 3, 4)), domain.ErrInvalidInput},
		{"in the past", stay(guest.ID, rm.ID, date(2024, 2, 19), date(2024, 2, 22)), domain.ErrInvalidInput},
		{"unknown customer", stay(guest.ID+100, rm.ID, date(2024, 3, 1), date(2024, 3, 2)), domain.ErrNotFound},
		{"unknown room", stay(guest.ID, rm.ID+100, date(2024, 3, 1), date(2024, 3, 2)), domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.booking.Create(ctx, tt.input)

			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func Test_Manager_Create_InactiveRoomIsInvalidState(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	inactive := false
	_, err := f.rooms.Update(ctx, rm.ID, &room.Update{Active: &inactive}) //nolint:exhaustruct
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 2)))

	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func Test_Manager_Create_Idempotent(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := domain.NewContextWithIdempotencyKey(context.Background(), "req-1")
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	first, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	again, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)

	all, err := f.booking.ListByRoom(context.Background(), rm.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func Test_Manager_Create_ConcurrentSingleWinner(t *testing.T) {
	// arrange
	f := newFixture(date(2024, 2, 20))
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	var (
		wins      atomic.Int32
		conflicts atomic.Int32
		wg        sync.WaitGroup
	)

	// act
	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.booking.Create(context.Background(), stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))

			switch domain.KindOf(err) {
			case nil:
				wins.Add(1)
			case domain.ErrConflict:
				conflicts.Add(1)
			}
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), conflicts.Load())
}

func Test_Manager_CheckIn_Rules(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	r, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.CheckIn(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrPrematureAction)

	_, err = f.booking.CheckOut(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	f.clock.Set(date(2024, 3, 2))

	_, err = f.booking.CheckIn(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.booking.CheckIn(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.booking.Cancel(ctx, r.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.booking.CheckIn(ctx, r.ID+1000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_Manager_Cancel_KeepsRoomReservedForOtherHolder(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	first, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 10), date(2024, 3, 12)))
	require.NoError(t, err)

	cancelled, err := f.booking.Cancel(ctx, first.ID, "flight cancelled")
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationCancelled, cancelled.State)
	assert.Equal(t, "flight cancelled", cancelled.CancelReason)
	assert.Equal(t, domain.RoomReserved, f.roomState(t, rm.ID))

	_, err = f.booking.Cancel(ctx, first.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func Test_Manager_CheckOut_LeavesRoomReservedForNextGuest(t *testing.T) {
	f := newFixture(date(2024, 3, 1))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	current, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 4), date(2024, 3, 6)))
	require.NoError(t, err)

	_, err = f.booking.CheckIn(ctx, current.ID)
	require.NoError(t, err)

	f.clock.Set(date(2024, 3, 4))

	_, err = f.booking.CheckOut(ctx, current.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RoomReserved, f.roomState(t, rm.ID))
}

func Test_Manager_Create_RoomInMaintenanceConflicts(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	_, err := f.rooms.StartMaintenance(ctx, rm.ID)
	require.NoError(t, err)

	_, err = f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 2)))
	assert.ErrorIs(t, err, domain.ErrConflict)

	reservations, err := f.booking.ListByCustomer(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, reservations)
}

func Test_Manager_Update_RechecksAvailabilityAndReprices(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	r, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	other, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 6), date(2024, 3, 8)))
	require.NoError(t, err)

	longer := date(2024, 3, 5)
	updated, err := f.booking.Update(ctx, r.ID, &booking.Update{CheckOut: &longer}) //nolint:exhaustruct
	require.NoError(t, err)
	assert.Equal(t, "200.00", updated.TotalPrice.StringFixed(2))

	clash := date(2024, 3, 7)
	_, err = f.booking.Update(ctx, r.ID, &booking.Update{CheckOut: &clash}) //nolint:exhaustruct

	availabilityErr := domain.IsAvailabilityError(err)
	require.NotNil(t, availabilityErr)
	assert.Equal(t, []int64{other.ID}, availabilityErr.Conflicts)

	stored, err := f.booking.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 5), stored.CheckOut)
}

func Test_Manager_AvailableRooms(t *testing.T) {
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	booked := f.room(t, "101", "50")
	free := f.room(t, "102", "50")
	repair := f.room(t, "103", "50")
	guest := f.customer(t, "1")

	_, err := f.booking.Create(ctx, stay(guest.ID, booked.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	_, err = f.rooms.StartMaintenance(ctx, repair.ID)
	require.NoError(t, err)

	//nolint:exhaustruct
	rooms, err := f.booking.AvailableRooms(ctx, &booking.AvailabilityQuery{CheckIn: date(2024, 3, 2), CheckOut: date(2024, 3, 3)})
	require.NoError(t, err)

	if assert.Len(t, rooms, 1) {
		assert.Equal(t, free.ID, rooms[0].ID)
	}

	//nolint:exhaustruct
	rooms, err = f.booking.AvailableRooms(ctx, &booking.AvailabilityQuery{CheckIn: date(2024, 3, 4), CheckOut: date(2024, 3, 5)})
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func Test_Manager_StateRules(t *testing.T) {
	actions := map[string]func(m *booking.Manager, id int64) error{
		"check-in": func(m *booking.Manager, id int64) error {
			_, err := m.CheckIn(context.Background(), id)

			return err
		},
		"check-out": func(m *booking.Manager, id int64) error {
			_, err := m.CheckOut(context.Background(), id)

			return err
		},
		"cancel": func(m *booking.Manager, id int64) error {
			_, err := m.Cancel(context.Background(), id, "")

			return err
		},
	}

	tests := []struct {
		name      string
		state     domain.ReservationState
		action    string
		wantErr   error
		wantState domain.ReservationState
	}{
		{"pending check-in", domain.ReservationPending, "check-in", domain.ErrInvalidState, domain.ReservationPending},
		{"pending check-out", domain.ReservationPending, "check-out", domain.ErrInvalidState, domain.ReservationPending},
		{"pending cancel", domain.ReservationPending, "cancel", nil, domain.ReservationCancelled},
		{"completed check-in", domain.ReservationCompleted, "check-in", domain.ErrInvalidState, domain.ReservationCompleted},
		{"completed check-out", domain.ReservationCompleted, "check-out", domain.ErrInvalidState, domain.ReservationCompleted},
		{"completed cancel", domain.ReservationCompleted, "cancel", domain.ErrInvalidState, domain.ReservationCompleted},
		{"cancelled check-in", domain.ReservationCancelled, "check-in", domain.ErrInvalidState, domain.ReservationCancelled},
		{"cancelled cancel", domain.ReservationCancelled, "cancel", domain.ErrInvalidState, domain.ReservationCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			f := newFixture(date(2024, 3, 2))
			rm := f.room(t, "101", "50")
			guest := f.customer(t, "1")
			r := f.seed(t, 900, tt.state, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))

			// act
			err := actions[tt.action](f.booking, r.ID)

			// assert
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}

			stored, err := f.booking.Get(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, stored.State)
			assert.Equal(t, domain.RoomAvailable, f.roomState(t, rm.ID))
		})
	}
}

func Test_Manager_Create_PendingStayBlocksDates(t *testing.T) {
	// arrange
	f := newFixture(date(2024, 2, 20))
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")
	pending := f.seed(t, 900, domain.ReservationPending, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))

	// act
	_, err := f.booking.Create(context.Background(), stay(guest.ID, rm.ID, date(2024, 3, 3), date(2024, 3, 5)))

	// assert
	availabilityErr := domain.IsAvailabilityError(err)
	require.NotNil(t, availabilityErr)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []int64{pending.ID}, availabilityErr.Conflicts)
}

func Test_Manager_Cancel_RefusedOnceInvoiced(t *testing.T) {
	// arrange
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	r, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	//nolint:exhaustruct
	_, err = f.billing.GenerateInvoice(ctx, &billing.InvoiceInput{ReservationID: r.ID})
	require.NoError(t, err)

	// act
	_, err = f.booking.Cancel(ctx, r.ID, "changed plans")

	// assert
	require.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := f.booking.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, stored.State)
	assert.Equal(t, domain.RoomReserved, f.roomState(t, rm.ID))
}

func Test_Manager_Update_ExtendsStayAfterArrivalDate(t *testing.T) {
	// arrange
	f := newFixture(date(2024, 2, 20))
	ctx := context.Background()
	rm := f.room(t, "101", "50")
	guest := f.customer(t, "1")

	r, err := f.booking.Create(ctx, stay(guest.ID, rm.ID, date(2024, 3, 1), date(2024, 3, 4)))
	require.NoError(t, err)

	f.clock.Set(date(2024, 3, 2))

	// act
	longer := date(2024, 3, 5)
	updated, err := f.booking.Update(ctx, r.ID, &booking.Update{CheckOut: &longer}) //nolint:exhaustruct

	// assert
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), updated.CheckIn)
	assert.Equal(t, "200.00", updated.TotalPrice.StringFixed(2))

	earlier := date(2024, 2, 28)
	_, err = f.booking.Update(ctx, r.ID, &booking.Update{CheckIn: &earlier}) //nolint:exhaustruct

	inputErr := domain.IsInputError(err)
	require.NotNil(t, inputErr)
	assert.Contains(t, inputErr.Fields(), "check_in")
}

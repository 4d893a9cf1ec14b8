package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/availability"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/room"
	"github.com/avstrong/hotel/internal/txn"
)

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storageReader interface {
	GetRoom(ctx context.Context, id int64) (*domain.Room, error)
	ListRooms(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, error)
	GetReservationIDByIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
}

type storageWriter interface {
	txn.Storage
	txn.Locker
	SaveRoom(ctx context.Context, room *domain.Room) error
	SaveReservation(ctx context.Context, reservation *domain.Reservation) error
	SaveIdempotencyKey(ctx context.Context, key string, reservationID int64) error
}

type storage interface {
	storageReader
	storageWriter
}

type invoicer interface {
	EnsureInvoice(ctx context.Context, reservationID int64) (*domain.Invoice, error)
}

// Manager owns the reservation lifecycle and the room state changes it drives.
type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
	invoicer    invoicer
	now         func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator, invoicer invoicer, opts ...Option) *Manager {
	m := &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
		invoicer:    invoicer,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) today() time.Time {
	return domain.Date(m.now())
}

// validateStay checks the date pair. The past check_in rule applies only when pastCheck is set.
func (m *Manager) validateStay(inputErr *domain.InputError, checkIn, checkOut time.Time, pastCheck bool) {
	if checkIn.IsZero() {
		inputErr.AddError("check_in", "provide check_in")
	}

	if checkOut.IsZero() {
		inputErr.AddError("check_out", "provide check_out")
	}

	if !checkOut.After(checkIn) {
		inputErr.AddError("check_out", "check_out must be after check_in")
	}

	if pastCheck && checkIn.Before(m.today()) {
		inputErr.AddError("check_in", "check_in must not be in the past")
	}
}

func (m *Manager) validate(in *CreateInput) error {
	inputErr := domain.NewInputError()

	in.CheckIn, in.CheckOut = domain.Date(in.CheckIn), domain.Date(in.CheckOut)

	if in.CustomerID <= 0 {
		inputErr.AddError("customer_id", "provide customer_id")
	}

	if in.RoomID <= 0 {
		inputErr.AddError("room_id", "provide room_id")
	}

	m.validateStay(inputErr, in.CheckIn, in.CheckOut, true)

	return inputErr.OrNil()
}

// Create books a room for [CheckIn, CheckOut). With an idempotency key in ctx a repeated
// request returns the reservation created by the first one.
//
//nolint:funlen,cyclop // linear
func (m *Manager) Create(ctx context.Context, input *CreateInput) (*domain.Reservation, error) {
	if err := m.validate(input); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "booking.Create", func(ctx context.Context) (*domain.Reservation, error) {
		key, hasKey := domain.IdempotencyKeyFromContext(ctx)
		if hasKey {
			r, err := m.byIdempotencyKey(ctx, key)
			if err != nil || r != nil {
				return r, err
			}
		}

		if _, err := m.customer(ctx, input.CustomerID); err != nil {
			return nil, err
		}

		rm, err := m.lockRoom(ctx, input.RoomID)
		if err != nil {
			return nil, err
		}

		if !rm.Active {
			return nil, domain.InvalidStatef("room", "%s is not active", rm.Code)
		}

		if err = m.ensureFree(ctx, rm.ID, input.CheckIn, input.CheckOut, 0); err != nil {
			return nil, err
		}

		id, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
		}

		now := m.now().UTC()

		r := &domain.Reservation{
			ID:           id,
			RoomID:       rm.ID,
			CustomerID:   input.CustomerID,
			CheckIn:      input.CheckIn,
			CheckOut:     input.CheckOut,
			TotalPrice:   price(rm, input.CheckIn, input.CheckOut),
			State:        domain.ReservationConfirmed,
			Notes:        input.Notes,
			CancelReason: "",
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err = m.storage.SaveReservation(ctx, r); err != nil {
			return nil, fmt.Errorf("save reservation to storage: %w", err)
		}

		if err = m.moveRoom(ctx, rm, room.EventReserve, false); err != nil {
			return nil, err
		}

		if hasKey {
			if err = m.storage.SaveIdempotencyKey(ctx, key, r.ID); err != nil {
				return nil, fmt.Errorf("save idempotency key: %w", err)
			}
		}

		m.l.LogInfo("Reservation %v confirmed for room %s from %s to %s",
			r.ID, rm.Code, r.CheckIn.Format(time.DateOnly), r.CheckOut.Format(time.DateOnly))

		return r, nil
	})
}

// byIdempotencyKey returns nil, nil when the key has not been used yet.
func (m *Manager) byIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	if err := m.storage.AcquireLock(ctx, txn.LockKey("idempotency", key)); err != nil {
		return nil, fmt.Errorf("lock idempotency key: %w", err)
	}

	id, err := m.storage.GetReservationIDByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("get reservation by idempotency key: %w", err)
	}

	return m.Get(ctx, id)
}

// CheckIn starts a confirmed stay. It is refused before the check-in date.
func (m *Manager) CheckIn(ctx context.Context, id int64) (*domain.Reservation, error) {
	return m.transition(ctx, "booking.CheckIn", id, func(ctx context.Context, r *domain.Reservation, rm *domain.Room) error {
		if r.State != domain.ReservationConfirmed {
			return domain.InvalidStatef("reservation", "%v is %s, only confirmed reservations check in", r.ID, r.State)
		}

		if m.today().Before(r.CheckIn) {
			return domain.Prematuref("reservation", "%v cannot check in before %s", r.ID, r.CheckIn.Format(time.DateOnly))
		}

		r.State = domain.ReservationInProgress

		return m.moveRoom(ctx, rm, room.EventCheckIn, false)
	})
}

// CheckOut completes a stay and invoices it in the same transaction.
func (m *Manager) CheckOut(ctx context.Context, id int64) (*Checkout, error) {
	return txn.Do(ctx, m.l, m.storage, "booking.CheckOut", func(ctx context.Context) (*Checkout, error) {
		r, err := m.transition(ctx, "booking.CheckOut", id, func(ctx context.Context, r *domain.Reservation, rm *domain.Room) error {
			if r.State != domain.ReservationInProgress {
				return domain.InvalidStatef("reservation", "%v is %s, only stays in progress check out", r.ID, r.State)
			}

			r.State = domain.ReservationCompleted

			otherHolds, err := m.otherHolds(ctx, rm.ID, r.ID)
			if err != nil {
				return err
			}

			return m.moveRoom(ctx, rm, room.EventCheckOut, otherHolds)
		})
		if err != nil {
			return nil, err
		}

		invoice, err := m.invoicer.EnsureInvoice(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("invoice reservation %v: %w", r.ID, err)
		}

		return &Checkout{Reservation: r, Invoice: invoice}, nil
	})
}

// Cancel ends a reservation that has not started and has not been invoiced. Only a confirmed
// reservation holds its room, so only then is the room released.
func (m *Manager) Cancel(ctx context.Context, id int64, reason string) (*domain.Reservation, error) {
	return m.transition(ctx, "booking.Cancel", id, func(ctx context.Context, r *domain.Reservation, rm *domain.Room) error {
		prior := r.State

		if prior != domain.ReservationPending && prior != domain.ReservationConfirmed {
			return domain.InvalidStatef("reservation", "%v is %s and cannot be cancelled", r.ID, prior)
		}

		if err := m.ensureNotInvoiced(ctx, r.ID); err != nil {
			return err
		}

		r.State = domain.ReservationCancelled
		r.CancelReason = reason

		if prior != domain.ReservationConfirmed {
			return nil
		}

		otherHolds, err := m.otherHolds(ctx, rm.ID, r.ID)
		if err != nil {
			return err
		}

		return m.moveRoom(ctx, rm, room.EventCancel, otherHolds)
	})
}

// ensureNotInvoiced holds the invoice sequence lock until the transaction ends, so no invoice
// can be issued for the reservation meanwhile.
func (m *Manager) ensureNotInvoiced(ctx context.Context, id int64) error {
	if err := m.storage.AcquireLock(ctx, txn.InvoiceSequenceLock); err != nil {
		return fmt.Errorf("lock invoice sequence: %w", err)
	}

	invoice, err := m.storage.GetInvoiceByReservation(ctx, id)
	if err == nil {
		return domain.InvalidStatef("reservation", "%v is already invoiced as %s", id, invoice.Number)
	}

	if !errors.Is(err, domain.ErrRecordNotFound) {
		return fmt.Errorf("get invoice by reservation: %w", err)
	}

	return nil
}

// Update moves the dates or edits the notes of a reservation that has not started.
// New dates are checked against every other reservation of the room and repriced.
func (m *Manager) Update(ctx context.Context, id int64, update *Update) (*domain.Reservation, error) {
	return m.transition(ctx, "booking.Update", id, func(ctx context.Context, r *domain.Reservation, rm *domain.Room) error {
		if r.State != domain.ReservationPending && r.State != domain.ReservationConfirmed {
			return domain.InvalidStatef("reservation", "%v is %s and cannot be changed", r.ID, r.State)
		}

		checkIn := r.CheckIn

		update.apply(r)

		if update.CheckIn == nil && update.CheckOut == nil {
			return nil
		}

		inputErr := domain.NewInputError()
		m.validateStay(inputErr, r.CheckIn, r.CheckOut, !r.CheckIn.Equal(checkIn))

		if err := inputErr.OrNil(); err != nil {
			return err
		}

		if err := m.ensureFree(ctx, rm.ID, r.CheckIn, r.CheckOut, r.ID); err != nil {
			return err
		}

		r.TotalPrice = price(rm, r.CheckIn, r.CheckOut)

		return nil
	})
}

// transition loads the reservation and its room under the room lock, lets change edit them
// and saves the reservation.
func (m *Manager) transition(
	ctx context.Context,
	name string,
	id int64,
	change func(ctx context.Context, r *domain.Reservation, rm *domain.Room) error,
) (*domain.Reservation, error) {
	return txn.Do(ctx, m.l, m.storage, name, func(ctx context.Context) (*domain.Reservation, error) {
		r, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		rm, err := m.lockRoom(ctx, r.RoomID)
		if err != nil {
			return nil, err
		}

		// Reload: the reservation may have moved on while the lock was contended.
		if r, err = m.Get(ctx, id); err != nil {
			return nil, err
		}

		before := r.State

		if err = change(ctx, r, rm); err != nil {
			return nil, err
		}

		r.UpdatedAt = m.now().UTC()

		if err = m.storage.SaveReservation(ctx, r); err != nil {
			return nil, fmt.Errorf("save reservation to storage: %w", err)
		}

		if before != r.State {
			m.l.LogInfo("Reservation %v moved from %s to %s", r.ID, before, r.State)
		}

		return r, nil
	})
}

func (m *Manager) lockRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	if err := m.storage.AcquireLock(ctx, txn.LockKey("room", roomID)); err != nil {
		return nil, fmt.Errorf("lock room: %w", err)
	}

	rm, err := m.storage.GetRoom(ctx, roomID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("room", roomID)
	}

	if err != nil {
		return nil, fmt.Errorf("get room from storage: %w", err)
	}

	return rm, nil
}

func (m *Manager) moveRoom(ctx context.Context, rm *domain.Room, event room.Event, otherHolds bool) error {
	before := rm.State

	if err := room.Apply(rm, event, otherHolds); err != nil {
		return err
	}

	if before == rm.State {
		return nil
	}

	rm.UpdatedAt = m.now().UTC()

	if err := m.storage.SaveRoom(ctx, rm); err != nil {
		return fmt.Errorf("save room to storage: %w", err)
	}

	m.l.LogInfo("Room %s moved from %s to %s on %s", rm.Code, before, rm.State, event)

	return nil
}

func (m *Manager) ensureFree(ctx context.Context, roomID int64, checkIn, checkOut time.Time, excludeID int64) error {
	existing, err := m.activeReservations(ctx, roomID)
	if err != nil {
		return err
	}

	conflicts := availability.Conflicts(roomID, checkIn, checkOut, existing, excludeID)
	if len(conflicts) == 0 {
		return nil
	}

	availabilityErr := domain.NewAvailabilityError(roomID)
	for _, c := range conflicts {
		availabilityErr.AddConflict(c.ID)
	}

	return availabilityErr
}

// otherHolds reports whether a reservation other than exceptID still holds the room.
func (m *Manager) otherHolds(ctx context.Context, roomID, exceptID int64) (bool, error) {
	existing, err := m.activeReservations(ctx, roomID)
	if err != nil {
		return false, err
	}

	for _, r := range existing {
		if r.ID != exceptID && r.State != domain.ReservationPending {
			return true, nil
		}
	}

	return false, nil
}

func (m *Manager) activeReservations(ctx context.Context, roomID int64) ([]*domain.Reservation, error) {
	existing, err := m.storage.ListReservations(ctx, domain.ReservationFilter{
		RoomID:     roomID,
		CustomerID: 0,
		States:     domain.ActiveReservationStates(),
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations of room %v: %w", roomID, err)
	}

	return existing, nil
}

func (m *Manager) customer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := m.storage.GetCustomer(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("customer", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get customer from storage: %w", err)
	}

	return c, nil
}

func price(rm *domain.Room, checkIn, checkOut time.Time) decimal.Decimal {
	return rm.NightlyRate.Mul(decimal.NewFromInt(int64(availability.Nights(checkIn, checkOut))))
}

func (m *Manager) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	r, err := m.storage.GetReservation(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("reservation", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get reservation from storage: %w", err)
	}

	return r, nil
}

func (m *Manager) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Reservation, error) {
	if _, err := m.customer(ctx, customerID); err != nil {
		return nil, err
	}

	return m.list(ctx, domain.ReservationFilter{RoomID: 0, CustomerID: customerID, States: nil})
}

func (m *Manager) ListByRoom(ctx context.Context, roomID int64) ([]*domain.Reservation, error) {
	return m.list(ctx, domain.ReservationFilter{RoomID: roomID, CustomerID: 0, States: nil})
}

func (m *Manager) list(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, error) {
	reservations, err := m.storage.ListReservations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reservations from storage: %w", err)
	}

	return reservations, nil
}

// AvailableRooms lists active rooms outside maintenance that are free for the whole stay.
func (m *Manager) AvailableRooms(ctx context.Context, query *AvailabilityQuery) ([]*domain.Room, error) {
	checkIn, checkOut := domain.Date(query.CheckIn), domain.Date(query.CheckOut)

	inputErr := domain.NewInputError()
	m.validateStay(inputErr, checkIn, checkOut, true)

	if err := inputErr.OrNil(); err != nil {
		return nil, err
	}

	rooms, err := m.storage.ListRooms(ctx, domain.RoomFilter{Category: query.Category, OnlyActive: true})
	if err != nil {
		return nil, fmt.Errorf("list rooms from storage: %w", err)
	}

	existing, err := m.storage.ListReservations(ctx, domain.ReservationFilter{
		RoomID:     0,
		CustomerID: 0,
		States:     domain.ActiveReservationStates(),
	})
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	free := make([]*domain.Room, 0, len(rooms))

	for _, rm := range rooms {
		if rm.State == domain.RoomMaintenance {
			continue
		}

		if availability.IsFree(rm.ID, checkIn, checkOut, existing, 0) {
			free = append(free, rm)
		}
	}

	return free, nil
}

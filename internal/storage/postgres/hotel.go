package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/avstrong/hotel/internal/domain"
)

const (
	tableRooms           = "rooms"
	tableCustomers       = "customers"
	tableReservations    = "reservations"
	tableIdempotencyKeys = "idempotency_keys"
)

var roomColumns = []any{
	"id", "code", "category", "nightly_rate", "capacity", "features", "state", "active", "created_at", "updated_at",
}

func scanRoom(s scanner) (*domain.Room, error) {
	var r domain.Room

	err := s.Scan(&r.ID, &r.Code, &r.Category, &r.NightlyRate, &r.Capacity, &r.Features,
		&r.State, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (db *DB) SaveRoom(ctx context.Context, room *domain.Room) error {
	return db.exec(ctx, "room", upsert(tableRooms, goqu.Record{
		"id":           room.ID,
		"code":         room.Code,
		"category":     room.Category,
		"nightly_rate": room.NightlyRate,
		"capacity":     room.Capacity,
		"features":     room.Features,
		"state":        string(room.State),
		"active":       room.Active,
		"created_at":   room.CreatedAt,
		"updated_at":   room.UpdatedAt,
	}))
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*domain.Room, error) {
	return get(ctx, db, "room", id, from(tableRooms).Select(roomColumns...).Where(goqu.C("id").Eq(id)), scanRoom)
}

func (db *DB) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	return get(ctx, db, "room", code, from(tableRooms).Select(roomColumns...).Where(goqu.C("code").Eq(code)), scanRoom)
}

func roomsQuery(filter domain.RoomFilter) *goqu.SelectDataset {
	ds := from(tableRooms).Select(roomColumns...).Order(goqu.C("id").Asc())

	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(filter.Category))
	}

	if filter.OnlyActive {
		ds = ds.Where(goqu.C("active").IsTrue())
	}

	return ds
}

func (db *DB) ListRooms(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	return list(ctx, db, "room", roomsQuery(filter), scanRoom)
}

var customerColumns = []any{
	"id", "first_name", "last_name", "identification", "email", "phone", "address", "created_at", "updated_at",
}

func scanCustomer(s scanner) (*domain.Customer, error) {
	var c domain.Customer

	err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Identification, &c.Email, &c.Phone,
		&c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (db *DB) SaveCustomer(ctx context.Context, customer *domain.Customer) error {
	return db.exec(ctx, "customer", upsert(tableCustomers, goqu.Record{
		"id":             customer.ID,
		"first_name":     customer.FirstName,
		"last_name":      customer.LastName,
		"identification": customer.Identification,
		"email":          customer.Email,
		"phone":          customer.Phone,
		"address":        customer.Address,
		"created_at":     customer.CreatedAt,
		"updated_at":     customer.UpdatedAt,
	}))
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	ds := from(tableCustomers).Select(customerColumns...).Where(goqu.C("id").Eq(id))

	return get(ctx, db, "customer", id, ds, scanCustomer)
}

func (db *DB) GetCustomerByIdentification(ctx context.Context, identification string) (*domain.Customer, error) {
	ds := from(tableCustomers).Select(customerColumns...).Where(goqu.C("identification").Eq(identification))

	return get(ctx, db, "customer", identification, ds, scanCustomer)
}

// GetCustomerByEmail matches case-insensitively.
func (db *DB) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ds := from(tableCustomers).Select(customerColumns...).
		Where(goqu.Func("lower", goqu.C("email")).Eq(goqu.Func("lower", email)))

	return get(ctx, db, "customer", email, ds, scanCustomer)
}

func (db *DB) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	return list(ctx, db, "customer", from(tableCustomers).Select(customerColumns...).Order(goqu.C("id").Asc()), scanCustomer)
}

var reservationColumns = []any{
	"id", "room_id", "customer_id", "check_in", "check_out", "total_price", "state",
	"notes", "cancel_reason", "created_at", "updated_at",
}

func scanReservation(s scanner) (*domain.Reservation, error) {
	var r domain.Reservation

	err := s.Scan(&r.ID, &r.RoomID, &r.CustomerID, &r.CheckIn, &r.CheckOut, &r.TotalPrice, &r.State,
		&r.Notes, &r.CancelReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.CheckIn, r.CheckOut = domain.Date(r.CheckIn), domain.Date(r.CheckOut)

	return &r, nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *domain.Reservation) error {
	return db.exec(ctx, "reservation", upsert(tableReservations, goqu.Record{
		"id":            reservation.ID,
		"room_id":       reservation.RoomID,
		"customer_id":   reservation.CustomerID,
		"check_in":      reservation.CheckIn,
		"check_out":     reservation.CheckOut,
		"total_price":   reservation.TotalPrice,
		"state":         string(reservation.State),
		"notes":         reservation.Notes,
		"cancel_reason": reservation.CancelReason,
		"created_at":    reservation.CreatedAt,
		"updated_at":    reservation.UpdatedAt,
	}))
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	ds := from(tableReservations).Select(reservationColumns...).Where(goqu.C("id").Eq(id))

	return get(ctx, db, "reservation", id, ds, scanReservation)
}

func reservationsQuery(filter domain.ReservationFilter) *goqu.SelectDataset {
	ds := from(tableReservations).Select(reservationColumns...).Order(goqu.C("check_in").Asc(), goqu.C("id").Asc())

	if filter.RoomID != 0 {
		ds = ds.Where(goqu.C("room_id").Eq(filter.RoomID))
	}

	if filter.CustomerID != 0 {
		ds = ds.Where(goqu.C("customer_id").Eq(filter.CustomerID))
	}

	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}

		ds = ds.Where(goqu.C("state").In(states))
	}

	return ds
}

func (db *DB) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, error) {
	return list(ctx, db, "reservation", reservationsQuery(filter), scanReservation)
}

func (db *DB) SaveIdempotencyKey(ctx context.Context, key string, reservationID int64) error {
	return db.exec(ctx, "idempotency key", insert(tableIdempotencyKeys, goqu.Record{
		"key":            key,
		"reservation_id": reservationID,
	}))
}

func (db *DB) GetReservationIDByIdempotencyKey(ctx context.Context, key string) (int64, error) {
	ds := from(tableIdempotencyKeys).Select("reservation_id").Where(goqu.C("key").Eq(key))

	id, err := get(ctx, db, "idempotency key", key, ds, func(s scanner) (*int64, error) {
		var id int64
		if err := s.Scan(&id); err != nil {
			return nil, err
		}

		return &id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("get reservation by idempotency key: %w", err)
	}

	return *id, nil
}

package memory

import (
	"context"
	"strings"

	"github.com/avstrong/hotel/internal/domain"
)

func (db *DB) SaveRoom(ctx context.Context, room *domain.Room) error {
	return db.write(ctx, func(trxID string) { db.rooms.put(trxID, room.ID, room) })
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*domain.Room, error) {
	return read(ctx, db, "room", id, func(trxID string) (*domain.Room, bool) {
		return db.rooms.get(trxID, id)
	})
}

func (db *DB) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	return read(ctx, db, "room", code, func(trxID string) (*domain.Room, bool) {
		return db.rooms.first(trxID, func(r *domain.Room) bool { return r.Code == code })
	})
}

func (db *DB) ListRooms(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.rooms.find(readID(ctx), filter.Matches), nil
}

func (db *DB) SaveCustomer(ctx context.Context, customer *domain.Customer) error {
	return db.write(ctx, func(trxID string) { db.customers.put(trxID, customer.ID, customer) })
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return read(ctx, db, "customer", id, func(trxID string) (*domain.Customer, bool) {
		return db.customers.get(trxID, id)
	})
}

func (db *DB) GetCustomerByIdentification(ctx context.Context, identification string) (*domain.Customer, error) {
	return read(ctx, db, "customer", identification, func(trxID string) (*domain.Customer, bool) {
		return db.customers.first(trxID, func(c *domain.Customer) bool { return c.Identification == identification })
	})
}

// GetCustomerByEmail matches case-insensitively.
func (db *DB) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return read(ctx, db, "customer", email, func(trxID string) (*domain.Customer, bool) {
		return db.customers.first(trxID, func(c *domain.Customer) bool { return strings.EqualFold(c.Email, email) })
	})
}

func (db *DB) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.customers.find(readID(ctx), func(*domain.Customer) bool { return true }), nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *domain.Reservation) error {
	return db.write(ctx, func(trxID string) { db.reservations.put(trxID, reservation.ID, reservation) })
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	return read(ctx, db, "reservation", id, func(trxID string) (*domain.Reservation, bool) {
		return db.reservations.get(trxID, id)
	})
}

func (db *DB) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.reservations.find(readID(ctx), filter.Matches), nil
}

package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/txn"
)

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storageReader interface {
	GetRoom(ctx context.Context, id int64) (*domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	ListRooms(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error)
}

type storageWriter interface {
	txn.Storage
	txn.Locker
	SaveRoom(ctx context.Context, room *domain.Room) error
}

type storage interface {
	storageReader
	storageWriter
}

// Manager administers the room inventory. Reservation driven state changes belong to
// the booking engine; here a room only enters and leaves maintenance.
type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
	now         func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator, opts ...Option) *Manager {
	m := &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type CreateInput struct {
	Code        string          `json:"code"`
	Category    string          `json:"category"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	Capacity    int             `json:"capacity"`
	Features    string          `json:"features"`
}

func (in *CreateInput) validate() error {
	inputErr := domain.NewInputError()

	in.Code = strings.TrimSpace(in.Code)
	in.Category = strings.TrimSpace(in.Category)

	if in.Code == "" {
		inputErr.AddError("code", "provide code")
	}

	if in.Category == "" {
		inputErr.AddError("category", "provide category")
	}

	validateRate(inputErr, in.NightlyRate)
	validateCapacity(inputErr, in.Capacity)

	return inputErr.OrNil()
}

func validateRate(inputErr *domain.InputError, rate decimal.Decimal) {
	if !rate.IsPositive() {
		inputErr.AddError("nightly_rate", "nightly_rate must be positive")
	}

	if !domain.WholeCents(rate) {
		inputErr.AddError("nightly_rate", "nightly_rate must not have more than two decimals")
	}
}

func validateCapacity(inputErr *domain.InputError, capacity int) {
	if capacity < 1 {
		inputErr.AddError("capacity", "capacity must be at least 1")
	}
}

// Update carries the fields to change; nil fields are left alone. State is not updatable.
type Update struct {
	Category    *string          `json:"category"`
	NightlyRate *decimal.Decimal `json:"nightly_rate"`
	Capacity    *int             `json:"capacity"`
	Features    *string          `json:"features"`
	Active      *bool            `json:"active"`
}

func (u *Update) validate() error {
	inputErr := domain.NewInputError()

	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		inputErr.AddError("category", "category must not be empty")
	}

	if u.NightlyRate != nil {
		validateRate(inputErr, *u.NightlyRate)
	}

	if u.Capacity != nil {
		validateCapacity(inputErr, *u.Capacity)
	}

	return inputErr.OrNil()
}

func (u *Update) apply(r *domain.Room) {
	if u.Category != nil {
		r.Category = strings.TrimSpace(*u.Category)
	}

	if u.NightlyRate != nil {
		r.NightlyRate = *u.NightlyRate
	}

	if u.Capacity != nil {
		r.Capacity = *u.Capacity
	}

	if u.Features != nil {
		r.Features = *u.Features
	}

	if u.Active != nil {
		r.Active = *u.Active
	}
}

func (m *Manager) Create(ctx context.Context, input *CreateInput) (*domain.Room, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "room.Create", func(ctx context.Context) (*domain.Room, error) {
		if err := m.storage.AcquireLock(ctx, txn.LockKey("room-code", input.Code)); err != nil {
			return nil, fmt.Errorf("lock room code: %w", err)
		}

		_, err := m.storage.GetRoomByCode(ctx, input.Code)
		if err == nil {
			return nil, domain.Conflictf("room", "code %s is already taken", input.Code)
		}

		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("get room by code: %w", err)
		}

		id, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
		}

		now := m.now().UTC()

		r := &domain.Room{
			ID:          id,
			Code:        input.Code,
			Category:    input.Category,
			NightlyRate: input.NightlyRate,
			Capacity:    input.Capacity,
			Features:    input.Features,
			State:       domain.RoomAvailable,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err = m.storage.SaveRoom(ctx, r); err != nil {
			return nil, fmt.Errorf("save room to storage: %w", err)
		}

		m.l.LogInfo("Room %v (%s) has been created", r.ID, r.Code)

		return r, nil
	})
}

func (m *Manager) Get(ctx context.Context, id int64) (*domain.Room, error) {
	r, err := m.storage.GetRoom(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("room", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get room from storage: %w", err)
	}

	return r, nil
}

func (m *Manager) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	r, err := m.storage.GetRoomByCode(ctx, code)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("room", code)
	}

	if err != nil {
		return nil, fmt.Errorf("get room by code from storage: %w", err)
	}

	return r, nil
}

func (m *Manager) List(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	rooms, err := m.storage.ListRooms(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rooms from storage: %w", err)
	}

	return rooms, nil
}

func (m *Manager) Update(ctx context.Context, id int64, update *Update) (*domain.Room, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	return m.change(ctx, "room.Update", id, func(r *domain.Room) error {
		update.apply(r)

		return nil
	})
}

func (m *Manager) StartMaintenance(ctx context.Context, id int64) (*domain.Room, error) {
	return m.change(ctx, "room.StartMaintenance", id, func(r *domain.Room) error {
		return Apply(r, EventMaintenanceStart, false)
	})
}

func (m *Manager) EndMaintenance(ctx context.Context, id int64) (*domain.Room, error) {
	return m.change(ctx, "room.EndMaintenance", id, func(r *domain.Room) error {
		return Apply(r, EventMaintenanceEnd, false)
	})
}

// change loads the room under its lock, lets mutate edit it and saves the result.
func (m *Manager) change(ctx context.Context, name string, id int64, mutate func(r *domain.Room) error) (*domain.Room, error) {
	return txn.Do(ctx, m.l, m.storage, name, func(ctx context.Context) (*domain.Room, error) {
		if err := m.storage.AcquireLock(ctx, txn.LockKey("room", id)); err != nil {
			return nil, fmt.Errorf("lock room: %w", err)
		}

		r, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		before := r.State

		if err = mutate(r); err != nil {
			return nil, err
		}

		r.UpdatedAt = m.now().UTC()

		if err = m.storage.SaveRoom(ctx, r); err != nil {
			return nil, fmt.Errorf("save room to storage: %w", err)
		}

		if before != r.State {
			m.l.LogInfo("Room %v moved from %s to %s", r.ID, before, r.State)
		}

		return r, nil
	})
}

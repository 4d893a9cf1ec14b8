package customer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/txn"
)

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storage interface {
	txn.Storage
	txn.Locker
	SaveCustomer(ctx context.Context, customer *domain.Customer) error
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetCustomerByIdentification(ctx context.Context, identification string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
}

type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator) *Manager {
	return &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
	}
}

type CreateInput struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Identification string `json:"identification"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
}

func (in *CreateInput) validate() error {
	inputErr := domain.NewInputError()

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Identification = strings.TrimSpace(in.Identification)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.FirstName == "" {
		inputErr.AddError("first_name", "provide first_name")
	}

	if in.LastName == "" {
		inputErr.AddError("last_name", "provide last_name")
	}

	if in.Identification == "" {
		inputErr.AddError("identification", "provide identification")
	}

	if _, err := mail.ParseAddress(in.Email); err != nil {
		inputErr.AddError("email", "provide valid email")
	}

	return inputErr.OrNil()
}

type Update struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

func (u *Update) validate() error {
	inputErr := domain.NewInputError()

	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) == "" {
		inputErr.AddError("first_name", "first_name must not be empty")
	}

	if u.LastName != nil && strings.TrimSpace(*u.LastName) == "" {
		inputErr.AddError("last_name", "last_name must not be empty")
	}

	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &email

		if _, err := mail.ParseAddress(email); err != nil {
			inputErr.AddError("email", "provide valid email")
		}
	}

	return inputErr.OrNil()
}

func (u *Update) apply(c *domain.Customer) {
	if u.FirstName != nil {
		c.FirstName = strings.TrimSpace(*u.FirstName)
	}

	if u.LastName != nil {
		c.LastName = strings.TrimSpace(*u.LastName)
	}

	if u.Email != nil {
		c.Email = *u.Email
	}

	if u.Phone != nil {
		c.Phone = *u.Phone
	}

	if u.Address != nil {
		c.Address = *u.Address
	}
}

func (m *Manager) Create(ctx context.Context, input *CreateInput) (*domain.Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "customer.Create", func(ctx context.Context) (*domain.Customer, error) {
		if err := m.lockIdentity(ctx, input.Identification, input.Email); err != nil {
			return nil, err
		}

		_, err := m.storage.GetCustomerByIdentification(ctx, input.Identification)
		if err == nil {
			return nil, domain.Conflictf("customer", "identification %s is already registered", input.Identification)
		}

		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("get customer by identification: %w", err)
		}

		if err = m.ensureEmailFree(ctx, input.Email, 0); err != nil {
			return nil, err
		}

		id, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
		}

		now := time.Now().UTC()

		c := &domain.Customer{
			ID:             id,
			FirstName:      input.FirstName,
			LastName:       input.LastName,
			Identification: input.Identification,
			Email:          input.Email,
			Phone:          input.Phone,
			Address:        input.Address,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err = m.storage.SaveCustomer(ctx, c); err != nil {
			return nil, fmt.Errorf("save customer to storage: %w", err)
		}

		return c, nil
	})
}

func (m *Manager) lockIdentity(ctx context.Context, identification, email string) error {
	if identification != "" {
		if err := m.storage.AcquireLock(ctx, txn.LockKey("customer-identification", identification)); err != nil {
			return fmt.Errorf("lock customer identification: %w", err)
		}
	}

	if err := m.storage.AcquireLock(ctx, txn.LockKey("customer-email", email)); err != nil {
		return fmt.Errorf("lock customer email: %w", err)
	}

	return nil
}

// ensureEmailFree fails when email belongs to a customer other than ownerID.
func (m *Manager) ensureEmailFree(ctx context.Context, email string, ownerID int64) error {
	other, err := m.storage.GetCustomerByEmail(ctx, email)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("get customer by email: %w", err)
	}

	if other.ID != ownerID {
		return domain.Conflictf("customer", "email %s is already registered", email)
	}

	return nil
}

func (m *Manager) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := m.storage.GetCustomer(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("customer", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get customer from storage: %w", err)
	}

	return c, nil
}

func (m *Manager) GetByIdentification(ctx context.Context, identification string) (*domain.Customer, error) {
	c, err := m.storage.GetCustomerByIdentification(ctx, identification)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("customer", identification)
	}

	if err != nil {
		return nil, fmt.Errorf("get customer by identification from storage: %w", err)
	}

	return c, nil
}

func (m *Manager) List(ctx context.Context) ([]*domain.Customer, error) {
	customers, err := m.storage.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers from storage: %w", err)
	}

	return customers, nil
}

func (m *Manager) Update(ctx context.Context, id int64, update *Update) (*domain.Customer, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "customer.Update", func(ctx context.Context) (*domain.Customer, error) {
		if update.Email != nil {
			if err := m.lockIdentity(ctx, "", *update.Email); err != nil {
				return nil, err
			}

			if err := m.ensureEmailFree(ctx, *update.Email, id); err != nil {
				return nil, err
			}
		}

		c, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		update.apply(c)
		c.UpdatedAt = time.Now().UTC()

		if err = m.storage.SaveCustomer(ctx, c); err != nil {
			return nil, fmt.Errorf("save customer to storage: %w", err)
		}

		return c, nil
	})
}

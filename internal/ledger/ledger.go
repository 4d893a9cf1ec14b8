// Package ledger keeps the chart of accounts and a single-sided, cash-basis journal.
//
// Credit records an inflow and Debit an outflow. The Balance of a period is the sum of its
// credits minus the sum of its debits.
package ledger

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

const (
	DefaultRevenueAccountCode = "4.1.01"
	DefaultRevenueAccountName = "Ingresos por Hospedaje"
)

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storageReader interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error)
	ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.JournalEntry, error)
}

type storageWriter interface {
	txn.Storage
	txn.Locker
	SaveAccount(ctx context.Context, account *domain.Account) error
	SaveEntry(ctx context.Context, entry *domain.JournalEntry) error
}

type storage interface {
	storageReader
	storageWriter
}

type Manager struct {
	l                  *logger.Logger
	storage            storage
	idGenerator        idGenerator
	now                func() time.Time
	revenueAccountCode string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRevenueAccountCode sets the account that receives recognized lodging revenue.
func WithRevenueAccountCode(code string) Option {
	return func(m *Manager) { m.revenueAccountCode = code }
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator, opts ...Option) *Manager {
	m := &Manager{
		l:                  l,
		storage:            storage,
		idGenerator:        idGenerator,
		now:                time.Now,
		revenueAccountCode: DefaultRevenueAccountCode,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type AccountInput struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        domain.AccountType `json:"type"`
	ParentID    *int64             `json:"parent_id"`
}

func (in *AccountInput) validate() error {
	inputErr := domain.NewInputError()

	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)

	if in.Code == "" {
		inputErr.AddError("code", "provide code")
	}

	if in.Name == "" {
		inputErr.AddError("name", "provide name")
	}

	if !in.Type.Valid() {
		inputErr.AddError("type", "type must be one of asset, liability, income, expense")
	}

	return inputErr.OrNil()
}

// AccountUpdate carries the fields to change. ClearParent detaches the account from its parent.
type AccountUpdate struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	Type        *domain.AccountType `json:"type"`
	ParentID    *int64              `json:"parent_id"`
	ClearParent bool                `json:"clear_parent"`
	Active      *bool               `json:"active"`
}

func (u *AccountUpdate) validate() error {
	inputErr := domain.NewInputError()

	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		inputErr.AddError("name", "name must not be empty")
	}

	if u.Type != nil && !u.Type.Valid() {
		inputErr.AddError("type", "type must be one of asset, liability, income, expense")
	}

	if u.ParentID != nil && u.ClearParent {
		inputErr.AddError("parent_id", "parent_id and clear_parent are exclusive")
	}

	return inputErr.OrNil()
}

func (u *AccountUpdate) apply(a *domain.Account) {
	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}

	if u.Description != nil {
		a.Description = *u.Description
	}

	if u.Type != nil {
		a.Type = *u.Type
	}

	if u.ParentID != nil {
		parentID := *u.ParentID
		a.ParentID = &parentID
	}

	if u.ClearParent {
		a.ParentID = nil
	}

	if u.Active != nil {
		a.Active = *u.Active
	}
}

func (m *Manager) CreateAccount(ctx context.Context, input *AccountInput) (*domain.Account, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "ledger.CreateAccount", func(ctx context.Context) (*domain.Account, error) {
		return m.createAccount(ctx, input)
	})
}

func (m *Manager) createAccount(ctx context.Context, input *AccountInput) (*domain.Account, error) {
	if err := m.storage.AcquireLock(ctx, txn.LockKey("account-code", input.Code)); err != nil {
		return nil, fmt.Errorf("lock account code: %w", err)
	}

	_, err := m.storage.GetAccountByCode(ctx, input.Code)
	if err == nil {
		return nil, domain.Conflictf("account", "code %s is already taken", input.Code)
	}

	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("get account by code: %w", err)
	}

	var parentID *int64

	if input.ParentID != nil {
		if _, err = m.GetAccount(ctx, *input.ParentID); err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}

		id := *input.ParentID
		parentID = &id
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
	}

	now := m.now().UTC()

	a := &domain.Account{
		ID:          id,
		Code:        input.Code,
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		ParentID:    parentID,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = m.storage.SaveAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("save account to storage: %w", err)
	}

	m.l.LogInfo("Account %s %s has been created", a.Code, a.Name)

	return a, nil
}

func (m *Manager) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := m.storage.GetAccount(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("account", id)
	}

	if err != nil {
		return nil, fmt.Errorf("get account from storage: %w", err)
	}

	return a, nil
}

func (m *Manager) GetAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	a, err := m.storage.GetAccountByCode(ctx, code)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("account", code)
	}

	if err != nil {
		return nil, fmt.Errorf("get account by code from storage: %w", err)
	}

	return a, nil
}

func (m *Manager) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	accounts, err := m.storage.ListAccounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list accounts from storage: %w", err)
	}

	return accounts, nil
}

// Subaccounts returns the direct children of parentID.
func (m *Manager) Subaccounts(ctx context.Context, parentID int64) ([]*domain.Account, error) {
	if _, err := m.GetAccount(ctx, parentID); err != nil {
		return nil, err
	}

	return m.ListAccounts(ctx, domain.AccountFilter{Type: "", ParentID: &parentID})
}

func (m *Manager) UpdateAccount(ctx context.Context, id int64, update *AccountUpdate) (*domain.Account, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "ledger.UpdateAccount", func(ctx context.Context) (*domain.Account, error) {
		a, err := m.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}

		if update.ParentID != nil {
			if err = m.checkParent(ctx, id, *update.ParentID); err != nil {
				return nil, err
			}
		}

		update.apply(a)
		a.UpdatedAt = m.now().UTC()

		if err = m.storage.SaveAccount(ctx, a); err != nil {
			return nil, fmt.Errorf("save account to storage: %w", err)
		}

		return a, nil
	})
}

// checkParent rejects a parent that is the account itself or one of its descendants.
func (m *Manager) checkParent(ctx context.Context, id, parentID int64) error {
	for current := parentID; ; {
		if current == id {
			return domain.InvalidInputf("account", "parent %v would create a cycle", parentID)
		}

		a, err := m.GetAccount(ctx, current)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}

		if a.ParentID == nil {
			return nil
		}

		current = *a.ParentID
	}
}

type PostInput struct {
	AccountID   int64            `json:"account_id"`
	Type        domain.EntryType `json:"type"`
	Concept     string           `json:"concept"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Date        time.Time        `json:"date"`
	Reference   string           `json:"reference"`
}

func (in *PostInput) validate() error {
	inputErr := domain.NewInputError()

	in.Concept = strings.TrimSpace(in.Concept)

	if in.Amount.IsZero() {
		inputErr.AddError("amount", "amount must not be zero")
	}

	if !domain.WholeCents(in.Amount) {
		inputErr.AddError("amount", "amount must not have more than two decimals")
	}

	if !in.Type.Valid() {
		inputErr.AddError("type", "type must be debit or credit")
	}

	if in.Concept == "" {
		inputErr.AddError("concept", "provide concept")
	}

	return inputErr.OrNil()
}

// PostTransaction appends an immutable entry to the journal. A zero Date means today.
func (m *Manager) PostTransaction(ctx context.Context, input *PostInput) (*domain.JournalEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "ledger.PostTransaction", func(ctx context.Context) (*domain.JournalEntry, error) {
		a, err := m.GetAccount(ctx, input.AccountID)
		if err != nil {
			return nil, err
		}

		return m.post(ctx, a, input)
	})
}

func (m *Manager) post(ctx context.Context, a *domain.Account, input *PostInput) (*domain.JournalEntry, error) {
	if !a.Active {
		return nil, domain.InvalidStatef("account", "%s is inactive", a.Code)
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNextID, err)
	}

	now := m.now().UTC()

	date := input.Date
	if date.IsZero() {
		date = now
	}

	entry := &domain.JournalEntry{
		ID:          id,
		AccountID:   a.ID,
		Type:        input.Type,
		Concept:     input.Concept,
		Description: input.Description,
		Amount:      input.Amount,
		Date:        domain.Date(date),
		Reference:   input.Reference,
		CreatedAt:   now,
	}

	if err = m.storage.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("save journal entry to storage: %w", err)
	}

	m.l.LogInfo("Posted %s %s to account %s: %s", entry.Type, entry.Amount, a.Code, entry.Concept)

	return entry, nil
}

type RevenueInput struct {
	Amount    decimal.Decimal
	Concept   string
	Reference string
	Date      time.Time
}

// PostRevenue credits the lodging revenue account, creating it on first use.
func (m *Manager) PostRevenue(ctx context.Context, input *RevenueInput) (*domain.JournalEntry, error) {
	post := &PostInput{
		AccountID:   0,
		Type:        domain.EntryCredit,
		Concept:     input.Concept,
		Description: "",
		Amount:      input.Amount,
		Date:        input.Date,
		Reference:   input.Reference,
	}

	if err := post.validate(); err != nil {
		return nil, err
	}

	return txn.Do(ctx, m.l, m.storage, "ledger.PostRevenue", func(ctx context.Context) (*domain.JournalEntry, error) {
		a, err := m.revenueAccount(ctx)
		if err != nil {
			return nil, err
		}

		post.AccountID = a.ID

		return m.post(ctx, a, post)
	})
}

func (m *Manager) revenueAccount(ctx context.Context) (*domain.Account, error) {
	a, err := m.storage.GetAccountByCode(ctx, m.revenueAccountCode)
	if err == nil {
		return a, nil
	}

	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("get revenue account: %w", err)
	}

	a, err = m.createAccount(ctx, &AccountInput{
		Code:        m.revenueAccountCode,
		Name:        DefaultRevenueAccountName,
		Description: "",
		Type:        domain.AccountIncome,
		ParentID:    nil,
	})
	if domain.KindOf(err) == domain.ErrConflict {
		return m.GetAccountByCode(ctx, m.revenueAccountCode)
	}

	return a, err
}

func (m *Manager) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.JournalEntry, error) {
	filter.From, filter.To = bound(filter.From), bound(filter.To)

	entries, err := m.storage.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list journal entries from storage: %w", err)
	}

	return entries, nil
}

type Balance struct {
	Credits decimal.Decimal `json:"credits"`
	Debits  decimal.Decimal `json:"debits"`
	Net     decimal.Decimal `json:"net"`
}

// Balance sums every entry dated inside [from, to]. A zero bound leaves that side open.
func (m *Manager) Balance(ctx context.Context, from, to time.Time) (*Balance, error) {
	return m.balance(ctx, domain.EntryFilter{AccountID: 0, From: from, To: to})
}

func (m *Manager) AccountBalance(ctx context.Context, accountID int64, from, to time.Time) (*Balance, error) {
	if _, err := m.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	return m.balance(ctx, domain.EntryFilter{AccountID: accountID, From: from, To: to})
}

func (m *Manager) balance(ctx context.Context, filter domain.EntryFilter) (*Balance, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.InvalidInputf("balance", "to must not be before from")
	}

	entries, err := m.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	b := &Balance{Credits: decimal.Zero, Debits: decimal.Zero, Net: decimal.Zero}

	for _, e := range entries {
		switch e.Type {
		case domain.EntryCredit:
			b.Credits = b.Credits.Add(e.Amount)
		case domain.EntryDebit:
			b.Debits = b.Debits.Add(e.Amount)
		}
	}

	b.Net = b.Credits.Sub(b.Debits)

	return b, nil
}

func bound(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}

	return domain.Date(t)
}

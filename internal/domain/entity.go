package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomState string

const (
	RoomAvailable   RoomState = "available"
	RoomReserved    RoomState = "reserved"
	RoomOccupied    RoomState = "occupied"
	RoomMaintenance RoomState = "maintenance"
)

type ReservationState string

const (
	ReservationPending    ReservationState = "pending"
	ReservationConfirmed  ReservationState = "confirmed"
	ReservationInProgress ReservationState = "in_progress"
	ReservationCompleted  ReservationState = "completed"
	ReservationCancelled  ReservationState = "cancelled"
)

// Active reports whether the reservation still holds its room for its dates.
func (s ReservationState) Active() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationInProgress:
		return true
	case ReservationCompleted, ReservationCancelled:
		return false
	}

	return false
}

// ActiveReservationStates lists the states that take part in overlap checks.
func ActiveReservationStates() []ReservationState {
	return []ReservationState{ReservationPending, ReservationConfirmed, ReservationInProgress}
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}

	return false
}

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountIncome    AccountType = "income"
	AccountExpense   AccountType = "expense"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountIncome, AccountExpense:
		return true
	}

	return false
}

// EntryType is the direction of a journal entry. Credit is an inflow and Debit an outflow
// in this journal, which is the reverse of double-entry convention.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

func (t EntryType) Valid() bool {
	return t == EntryDebit || t == EntryCredit
}

type Room struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Category    string          `json:"category"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	Capacity    int             `json:"capacity"`
	Features    string          `json:"features,omitempty"`
	State       RoomState       `json:"state"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Customer struct {
	ID             int64     `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Identification string    `json:"identification"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Reservation struct {
	ID           int64            `json:"id"`
	RoomID       int64            `json:"room_id"`
	CustomerID   int64            `json:"customer_id"`
	CheckIn      time.Time        `json:"check_in"`
	CheckOut     time.Time        `json:"check_out"`
	TotalPrice   decimal.Decimal  `json:"total_price"`
	State        ReservationState `json:"state"`
	Notes        string           `json:"notes,omitempty"`
	CancelReason string           `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Invoice struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	ReservationID int64           `json:"reservation_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// InvoiceTotal is the only way an invoice total is computed.
func InvoiceTotal(subtotal, tax, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Sub(discount)
}

// WholeCents reports whether amount has no more than two decimal places.
func WholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

type Payment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

type Account struct {
	ID          int64       `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        AccountType `json:"type"`
	ParentID    *int64      `json:"parent_id,omitempty"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// JournalEntry is a single-sided ledger transaction. It is never updated or deleted.
type JournalEntry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Type        EntryType       `json:"type"`
	Concept     string          `json:"concept"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Promo is a percentage discount redeemable by code until ValidThrough.
type Promo struct {
	Code         string          `json:"code"`
	Percentage   decimal.Decimal `json:"percentage"`
	ValidThrough time.Time       `json:"valid_through"`
}

type RoomFilter struct {
	Category string
	// OnlyActive skips deactivated rooms.
	OnlyActive bool
}

type ReservationFilter struct {
	RoomID     int64
	CustomerID int64
	States     []ReservationState
}

type AccountFilter struct {
	Type     AccountType
	ParentID *int64
}

type EntryFilter struct {
	AccountID int64
	From      time.Time
	To        time.Time
}

// Matches reports whether e is posted to AccountID inside [From, To]; a zero bound is open.
func (f EntryFilter) Matches(e *JournalEntry) bool {
	if f.AccountID != 0 && e.AccountID != f.AccountID {
		return false
	}

	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}

	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}

	return true
}

// Matches reports whether r passes the filter.
func (f ReservationFilter) Matches(r *Reservation) bool {
	if f.RoomID != 0 && r.RoomID != f.RoomID {
		return false
	}

	if f.CustomerID != 0 && r.CustomerID != f.CustomerID {
		return false
	}

	if len(f.States) == 0 {
		return true
	}

	for _, s := range f.States {
		if r.State == s {
			return true
		}
	}

	return false
}

func (f RoomFilter) Matches(r *Room) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}

	return !f.OnlyActive || r.Active
}

func (f AccountFilter) Matches(a *Account) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}

	if f.ParentID == nil {
		return true
	}

	return a.ParentID != nil && *a.ParentID == *f.ParentID
}

// Date truncates t to midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package booking

import (
	"time"

	"github.com/avstrong/hotel/internal/domain"
)

type CreateInput struct {
	CustomerID int64     `json:"customer_id"`
	RoomID     int64     `json:"room_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Notes      string    `json:"notes"`
}

// Update changes the stay of a reservation that has not started yet. Nil fields are kept.
type Update struct {
	CheckIn  *time.Time `json:"check_in"`
	CheckOut *time.Time `json:"check_out"`
	Notes    *string    `json:"notes"`
}

func (u *Update) apply(r *domain.Reservation) {
	if u.CheckIn != nil {
		r.CheckIn = domain.Date(*u.CheckIn)
	}

	if u.CheckOut != nil {
		r.CheckOut = domain.Date(*u.CheckOut)
	}

	if u.Notes != nil {
		r.Notes = *u.Notes
	}
}

type AvailabilityQuery struct {
	CheckIn  time.Time
	CheckOut time.Time
	Category string
}

// Checkout is a completed stay together with the invoice it produced.
type Checkout struct {
	Reservation *domain.Reservation `json:"reservation"`
	Invoice     *domain.Invoice     `json:"invoice"`
}

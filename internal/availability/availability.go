// Package availability answers whether a room is free over a half-open date interval.
//
// Two stays [a1, b1) and [a2, b2) overlap iff a1 < b2 and a2 < b1. A departure on day D and
// an arrival on day D never overlap.
package availability

import (
	"time"

	"github.com/avstrong/hotel/internal/domain"
)

const day = 24 * time.Hour

func Overlaps(a1, b1, a2, b2 time.Time) bool {
	return a1.Before(b2) && a2.Before(b1)
}

// Conflicts returns the reservations of roomID that are active and overlap [checkIn, checkOut).
// A non-zero excludeID is skipped, which lets a reservation be re-checked against the others.
func Conflicts(
	roomID int64,
	checkIn, checkOut time.Time,
	existing []*domain.Reservation,
	excludeID int64,
) []*domain.Reservation {
	var conflicts []*domain.Reservation

	for _, r := range existing {
		if r.RoomID != roomID || !r.State.Active() {
			continue
		}

		if excludeID != 0 && r.ID == excludeID {
			continue
		}

		if Overlaps(checkIn, checkOut, r.CheckIn, r.CheckOut) {
			conflicts = append(conflicts, r)
		}
	}

	return conflicts
}

func IsFree(roomID int64, checkIn, checkOut time.Time, existing []*domain.Reservation, excludeID int64) bool {
	return len(Conflicts(roomID, checkIn, checkOut, existing, excludeID)) == 0
}

// Nights is the number of whole days between the two dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(domain.Date(checkOut).Sub(domain.Date(checkIn)) / day)
}

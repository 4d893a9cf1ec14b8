package room

import (
	"fmt"

	"github.com/avstrong/hotel/internal/domain"
)

type Event string

const (
	EventReserve          Event = "reserve"
	EventCheckIn          Event = "check_in"
	EventCheckOut         Event = "check_out"
	EventCancel           Event = "cancel"
	EventMaintenanceStart Event = "maintenance_start"
	EventMaintenanceEnd   Event = "maintenance_end"
)

// released is where a room goes when the reservation holding it ends.
// otherHolds reports whether another active reservation still holds it.
func released(otherHolds bool) domain.RoomState {
	if otherHolds {
		return domain.RoomReserved
	}

	return domain.RoomAvailable
}

// Next returns the room state that follows current on event. Combinations missing from the
// table are rejected with domain.ErrConflict.
//
//nolint:cyclop // flat transition table
func Next(current domain.RoomState, event Event, otherHolds bool) (domain.RoomState, error) {
	switch event {
	case EventReserve:
		switch current {
		case domain.RoomAvailable, domain.RoomReserved:
			return domain.RoomReserved, nil
		case domain.RoomOccupied:
			return domain.RoomOccupied, nil
		case domain.RoomMaintenance:
		}
	case EventCheckIn:
		if current == domain.RoomReserved {
			return domain.RoomOccupied, nil
		}
	case EventCheckOut:
		if current == domain.RoomOccupied {
			return released(otherHolds), nil
		}
	case EventCancel:
		switch current {
		case domain.RoomReserved:
			return released(otherHolds), nil
		case domain.RoomOccupied:
			return domain.RoomOccupied, nil
		case domain.RoomAvailable, domain.RoomMaintenance:
		}
	case EventMaintenanceStart:
		if current == domain.RoomAvailable {
			return domain.RoomMaintenance, nil
		}
	case EventMaintenanceEnd:
		if current == domain.RoomMaintenance {
			return domain.RoomAvailable, nil
		}
	}

	return current, domain.Conflictf("room", "%s is not allowed while %s", event, current)
}

// Apply moves r to the state that follows event.
func Apply(r *domain.Room, event Event, otherHolds bool) error {
	next, err := Next(r.State, event, otherHolds)
	if err != nil {
		return fmt.Errorf("room %v: %w", r.ID, err)
	}

	r.State = next

	return nil
}

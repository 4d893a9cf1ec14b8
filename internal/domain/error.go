package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error returned by a core operation matches exactly one of the first five
// through errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPrematureAction = errors.New("premature action")

	ErrRecordNotFound = errors.New("record not found")
	ErrTransient      = errors.New("transient storage failure")
	ErrNextID         = errors.New("get next id from generator")
)

type Error struct {
	Kind   error
	Entity string
	Msg    string
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}

	return fmt.Sprintf("%s: %v: %s", e.Entity, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(entity string, key any) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, Msg: fmt.Sprintf("%v does not exist", key)}
}

func Conflictf(entity, format string, v ...any) *Error {
	return &Error{Kind: ErrConflict, Entity: entity, Msg: fmt.Sprintf(format, v...)}
}

func InvalidStatef(entity, format string, v ...any) *Error {
	return &Error{Kind: ErrInvalidState, Entity: entity, Msg: fmt.Sprintf(format, v...)}
}

func InvalidInputf(entity, format string, v ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Entity: entity, Msg: fmt.Sprintf(format, v...)}
}

func Prematuref(entity, format string, v ...any) *Error {
	return &Error{Kind: ErrPrematureAction, Entity: entity, Msg: fmt.Sprintf(format, v...)}
}

// KindOf returns the taxonomy kind of err, or nil for errors outside of it.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidInput, ErrPrematureAction} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// AvailabilityError is a Conflict that lists the reservations overlapping a requested stay.
type AvailabilityError struct {
	RoomID    int64
	Conflicts []int64
}

func NewAvailabilityError(roomID int64) *AvailabilityError {
	//nolint:exhaustruct
	return &AvailabilityError{RoomID: roomID}
}

func IsAvailabilityError(err error) *AvailabilityError {
	if err == nil {
		return nil
	}

	var availabilityError *AvailabilityError

	if errors.As(err, &availabilityError) {
		return availabilityError
	}

	return nil
}

func (e *AvailabilityError) AddConflict(reservationID int64) {
	e.Conflicts = append(e.Conflicts, reservationID)
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("room '%v' is unavailable, overlapping reservations %v", e.RoomID, e.Conflicts)
}

func (e *AvailabilityError) Unwrap() error {
	return ErrConflict
}

func (e *AvailabilityError) ConflictsCount() int {
	return len(e.Conflicts)
}

// InputError collects value-level violations per field.
type InputError struct {
	fields map[string][]string
}

func NewInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) FieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) AddError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

// OrNil returns ie when at least one field failed.
func (ie *InputError) OrNil() error {
	if ie.FieldsCount() == 0 {
		return nil
	}

	return ie
}

func (ie *InputError) Error() string {
	keys := make([]string, 0, len(ie.fields))
	for k := range ie.fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(ie.fields[k], ", ")))
	}

	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (ie *InputError) Unwrap() error {
	return ErrInvalidInput
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}

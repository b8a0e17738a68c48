package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/booking_api/internal/repository"
)

// Классы ошибок планировщика
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrSchedulingViolation   = errors.New("scheduling violation")
	ErrCapacityExceeded      = fmt.Errorf("%w: capacity exceeded", ErrSchedulingViolation)
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNoTechnicianAvailable = errors.New("no technician available")
	ErrPersistence           = errors.New("persistence failure")
)

// Error ошибка с понятной пользователю причиной. errors.Is сравнивает по Kind.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// storeError приводит ошибку хранилища к классу ErrPersistence.
// Ошибки планировщика, вернувшиеся из транзакции, остаются как есть.
func storeError(op string, err error) error {
	var se *Error
	if errors.As(err, &se) || errors.Is(err, ErrPersistence) {
		return err
	}
	if errors.Is(err, repository.ErrTechnicianOverlap) {
		return newError(ErrSchedulingViolation, "technician is already booked for this time")
	}
	if errors.Is(err, repository.ErrMissingReference) {
		return newError(ErrNotFound, "referenced record not found")
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

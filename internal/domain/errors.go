package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrOutOfStock      = errors.New("movie out of stock")
	ErrConflict        = errors.New("concurrent modification, retry the request")
	ErrDuplicate       = errors.New("duplicate record")
	ErrInvalidInput    = errors.New("invalid input data")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// ErrRentalAlreadyReturned is a conflict: the unit was already put back in stock.
	ErrRentalAlreadyReturned = fmt.Errorf("rental already returned: %w", ErrConflict)
)

// NotFoundError names the entity that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for every NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidInputError carries a user-facing validation message.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return e.Message
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func NewInvalidInputError(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

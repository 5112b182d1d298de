package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

// Postgres SQLSTATE codes the store translates into domain errors.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeInvalidText          = "22P02"
)

func mapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(entity, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrConflict)
		case codeUniqueViolation:
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrDuplicate)
		case codeCheckViolation:
			return domain.NewInvalidInputError("%s violates constraint %s", entity, pgErr.ConstraintName)
		case codeInvalidText:
			return domain.NewNotFoundError(entity, id)
		}
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

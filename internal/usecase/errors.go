package usecase

import (
	"errors"
	"fmt"

	"vehicle-rental/pkg/database"
)

// Error classes surfaced to callers. Handlers map them to HTTP status codes
// with errors.Is; the wrapped message is returned verbatim.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrGateway    = errors.New("payment gateway error")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func gatewayErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}

// txErr turns a serialization failure into a retryable conflict.
func txErr(err error) error {
	if database.IsSerializationFailure(err) {
		return conflictf("concurrent update, please retry")
	}
	if database.IsUniqueViolation(err) {
		return conflictf("resource already exists")
	}
	return err
}

package app

import (
	"errors"
	"fmt"

	"orionos/pkg/store"
)

var (
	// ErrUnauthenticated is returned when a request carries no identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrProfileNotInitialized means the identity has not run provisioning yet.
	ErrProfileNotInitialized = errors.New("profile not initialized")

	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrWindowMaximized = errors.New("window is maximized")
	ErrStorageDisabled = errors.New("object storage not configured")
)

// storeErr maps store sentinels onto app errors; anything else is internal.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrQuotaExceeded):
		return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

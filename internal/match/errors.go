package match

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a caller contract violation: a query item missing
	// its description or category, or an invalid configuration.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRepository marks an unavailable candidate pool.
	ErrRepository = errors.New("candidate repository unavailable")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// RepositoryError wraps err so that errors.Is(err, ErrRepository) holds.
func RepositoryError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

package artifact

import "errors"

var (
	// ErrNotFound is returned when no artifact exists under the given name.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for names that are empty or escape the store root.
	ErrInvalidName = errors.New("invalid artifact name")
)

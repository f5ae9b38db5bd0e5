package thing

import (
	"errors"
	"fmt"
)

// Domain errors for the thing package.
var (
	// ErrPropertyNotFound is returned when a property name does not exist.
	ErrPropertyNotFound = errors.New("thing: property not found")

	// ErrDuplicateProperty is returned when adding a property whose name is taken.
	ErrDuplicateProperty = errors.New("thing: duplicate property")

	// ErrReadOnly is returned when writing a property whose metadata marks it read-only.
	ErrReadOnly = errors.New("thing: property is read-only")

	// ErrNoSuchAction is returned for every action request the thing cannot generate.
	ErrNoSuchAction = errors.New("thing: no such action")
)

// PropertyError reports a rejected property write.
type PropertyError struct {
	Property string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %q: %v", e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

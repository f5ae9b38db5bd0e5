package servo

import "errors"

// Domain errors for the servo package.
var (
	// ErrHardwareFault is returned when the register write for a value fails.
	// The message is fixed; the underlying bus error is logged, not returned.
	ErrHardwareFault = errors.New("unknown i2c error")

	// ErrOutOfRange is returned when a value maps outside the 16-bit register range.
	ErrOutOfRange = errors.New("servo: value out of range")

	// ErrInvalidForwarder is returned when a Forwarder is built without a bus
	// or with a register that has no ON register below it.
	ErrInvalidForwarder = errors.New("servo: invalid forwarder")
)

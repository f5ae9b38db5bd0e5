package bus

import "errors"

// Domain errors for the bus package.
var (
	// ErrTransport is returned when a bus transaction fails.
	ErrTransport = errors.New("bus: transport fault")

	// ErrClosed is returned when writing through a closed handle.
	ErrClosed = errors.New("bus: handle closed")

	// ErrUnknownDriver is returned when Open is given an unsupported driver name.
	ErrUnknownDriver = errors.New("bus: unknown driver")

	// ErrInitFailed is returned when the controller startup sequence fails.
	ErrInitFailed = errors.New("bus: controller initialisation failed")
)

package relay

import "errors"

var (
	// ErrInvalidCommand is returned for command payloads that are not {"value": ...}.
	ErrInvalidCommand = errors.New("relay: invalid command payload")

	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("relay: missing dependency")
)

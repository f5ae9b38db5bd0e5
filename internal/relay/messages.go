package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/servomount/internal/bus"
)

// StateMessage is published retained after each accepted write.
type StateMessage struct {
	Value     any       `json:"value"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandMessage requests a property write. ID is optional and echoed in the ack.
type CommandMessage struct {
	ID    string `json:"id,omitempty"`
	Value any    `json:"value"`
}

// AckStatus is the outcome of a command.
type AckStatus string

// Ack statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// Ack error codes. They match the thing server's error codes.
const (
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeNotFound       = "not_found"
	ErrCodeReadOnly       = "read_only"
	ErrCodeOutOfRange     = "out_of_range"
	ErrCodeHardwareFault  = "hardware_fault"
	ErrCodeInternal       = "internal_error"
)

// AckMessage reports a command's outcome.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Thing     string    `json:"thing"`
	Property  string    `json:"property"`
	OK        bool      `json:"ok"`
	Status    AckStatus `json:"status"`
	Value     any       `json:"value,omitempty"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError details a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthMessage is published periodically with the bus state.
type HealthMessage struct {
	Thing         string    `json:"thing"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Version       string    `json:"version,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Bus           bus.Stats `json:"bus"`
}

// parseCommand decodes a command payload. The value key is required; a
// present but null value is allowed and passed on as nil.
func parseCommand(payload []byte) (CommandMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if _, ok := raw["value"]; !ok {
		return CommandMessage{}, fmt.Errorf("%w: missing value", ErrInvalidCommand)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cmd, nil
}

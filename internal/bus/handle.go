package bus

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the bus package.
// This allows the handle to log without depending on a specific logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Conn is a raw write channel to one device on the bus.
//
// Tx sends w as a single bus transaction. Implementations do not need to be
// safe for concurrent use; the Handle serialises all calls.
type Conn interface {
	Tx(w []byte) error
	Close() error
}

// Stats holds bus statistics.
type Stats struct {
	Address      uint16    `json:"address"`
	Transactions uint64    `json:"transactions"`
	Failures     uint64    `json:"failures"`
	LastActivity time.Time `json:"last_activity"`
	LastError    string    `json:"last_error,omitempty"`
}

// Handle is the shared, mutually-exclusive bus connection to the controller.
//
// Thread Safety:
//   - Writes take the write lock for the duration of one transaction.
//   - Stats take the read lock.
type Handle struct {
	mu     sync.RWMutex
	conn   Conn
	addr   uint16
	closed bool

	transactions uint64
	failures     uint64
	lastActivity time.Time
	lastErr      error
	lastFailed   bool

	logger Logger
}

// NewHandle wraps an open connection to the device at addr.
func NewHandle(conn Conn, addr uint16) *Handle {
	return &Handle{
		conn:   conn,
		addr:   addr,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the handle.
func (h *Handle) SetLogger(logger Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// Address returns the 7-bit device address.
func (h *Handle) Address() uint16 {
	return h.addr
}

// WriteRegister writes a 16-bit value to reg as an SMBus word write
// (register byte, then value low byte first).
func (h *Handle) WriteRegister(reg uint8, value uint16) error {
	return h.tx([]byte{reg, byte(value), byte(value >> 8)})
}

// WriteRegisterByte writes an 8-bit value to reg as an SMBus byte write.
func (h *Handle) WriteRegisterByte(reg uint8, value uint8) error {
	return h.tx([]byte{reg, value})
}

// tx performs one transaction under the write lock.
func (h *Handle) tx(w []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	h.transactions++
	h.lastActivity = time.Now()

	if err := h.conn.Tx(w); err != nil {
		h.failures++
		h.lastErr = err
		h.lastFailed = true
		h.logger.Debug("bus transaction failed",
			"address", fmt.Sprintf("0x%02x", h.addr),
			"register", fmt.Sprintf("0x%02x", w[0]),
			"error", err,
		)
		return fmt.Errorf("%w: register 0x%02x: %v", ErrTransport, w[0], err)
	}
	h.lastFailed = false
	return nil
}

// Stats returns a snapshot of the handle's statistics.
func (h *Handle) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Address:      h.addr,
		Transactions: h.transactions,
		Failures:     h.failures,
		LastActivity: h.lastActivity,
	}
	if h.lastErr != nil {
		s.LastError = h.lastErr.Error()
	}
	return s
}

// HealthCheck reports whether the handle is open and its last transaction succeeded.
func (h *Handle) HealthCheck() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	if h.lastFailed {
		return fmt.Errorf("%w: %v", ErrTransport, h.lastErr)
	}
	return nil
}

// Close releases the underlying connection. Further writes return ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.conn.Close()
}

package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSimulatedFault is the default error injected by a Simulated bus.
var ErrSimulatedFault = errors.New("bus: simulated fault")

// Transaction is one recorded write on a Simulated bus.
type Transaction struct {
	Register uint8
	Data     []byte
	At       time.Time
}

// Word returns the transaction payload as a little-endian 16-bit value.
// ok is false when the payload is not exactly two bytes.
func (t Transaction) Word() (value uint16, ok bool) {
	if len(t.Data) != 2 {
		return 0, false
	}
	return uint16(t.Data[0]) | uint16(t.Data[1])<<8, true
}

// Simulated is an in-memory Conn emulating the controller's register file.
//
// It records every transaction in order, can be told to fail, and counts
// transactions that overlap in time. The Handle's lock should make that
// count zero; a non-zero value means two writes were on the wire at once.
type Simulated struct {
	mu        sync.Mutex
	registers [256]byte
	log       []Transaction
	latency   time.Duration
	failNext  int
	fault     error
	closed    bool

	inFlight atomic.Int32
	overlaps atomic.Int64
}

// NewSimulated creates an empty simulated controller.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// OpenSimulated returns a Handle over a new simulated controller at addr,
// along with the controller for inspection.
func OpenSimulated(addr uint16) (*Handle, *Simulated) {
	sim := NewSimulated()
	return NewHandle(sim, addr), sim
}

// Tx applies w to the register file. The first byte selects the register
// and the remaining bytes are written to consecutive registers.
func (s *Simulated) Tx(w []byte) error {
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inFlight.Add(-1)

	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(w) == 0 {
		return errors.New("empty transaction")
	}

	tx := Transaction{
		Register: w[0],
		Data:     append([]byte(nil), w[1:]...),
		At:       time.Now(),
	}
	s.log = append(s.log, tx)

	if s.closed {
		return errors.New("simulated bus closed")
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrSimulatedFault
	}
	if s.fault != nil {
		return s.fault
	}

	reg := w[0]
	for _, b := range w[1:] {
		s.registers[reg] = b
		reg++
	}
	return nil
}

// Close marks the simulated controller closed.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailNext makes the next n transactions fail with ErrSimulatedFault.
func (s *Simulated) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetFault makes every transaction fail with err until cleared with nil.
func (s *Simulated) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// SetLatency delays every transaction by d, widening the window in which
// unserialised writes would overlap.
func (s *Simulated) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Transactions returns a copy of every attempted transaction, in order.
// Failed attempts are included.
func (s *Simulated) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.log))
	copy(out, s.log)
	return out
}

// Register returns the current content of one 8-bit register.
func (s *Simulated) Register(reg uint8) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registers[reg]
}

// Word returns the little-endian 16-bit value stored at reg and reg+1.
func (s *Simulated) Word(reg uint8) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint16(s.registers[reg]) | uint16(s.registers[reg+1])<<8
}

// Overlaps returns how many transactions started while another was in flight.
func (s *Simulated) Overlaps() int64 {
	return s.overlaps.Load()
}

// Reset clears the transaction log. Register contents are kept.
func (s *Simulated) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

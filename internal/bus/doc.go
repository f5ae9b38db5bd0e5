// Package bus owns the connection to the PWM controller on the I2C bus.
//
// A single Handle is created per process and shared by every servo channel.
// All register writes serialise through the Handle's lock, so concurrent
// callers never interleave transactions on the wire. There is no queueing,
// batching, or retry: each write is one transaction, and a failed write is
// reported to the caller wrapped in ErrTransport.
//
// Two drivers are available:
//
//   - "i2c": Linux I2C through periph.io (production)
//   - "simulated": an in-memory register file that records every
//     transaction and supports fault injection (development and tests)
//
// Writes use SMBus framing. A word write sends the register followed by the
// value low byte first:
//
//	WriteRegister(0x08, 1250) // tx: 0x08 0xe2 0x04
//
// Startup runs Initialise once, before any property is served, to put the
// controller into a known state.
package bus

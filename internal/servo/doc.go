// Package servo converts logical servo positions into controller register
// writes.
//
// A Forwarder is bound to one channel's OFF register and a shared bus
// handle. Applying a numeric value maps the logical percentage to a
// pulse-width tick count and writes it in one bus transaction:
//
//	physical = round(logical/100 * 828 + 836)
//
// so 0 maps to 836, 50 to 1250 and 100 to 1664. Non-numeric values are
// accepted unchanged without touching the bus.
//
// A failed write is reported as ErrHardwareFault. There is no retry and no
// rollback; the caller keeps its previous value.
package servo

package bus

import (
	"context"
	"fmt"
	"time"
)

// Controller registers and startup values.
const (
	// RegMode1 is the mode register.
	RegMode1 uint8 = 0x00

	// RegPrescale sets the PWM output frequency.
	RegPrescale uint8 = 0xfe

	// Mode1AutoIncrement enables register auto-increment with the oscillator awake.
	Mode1AutoIncrement uint8 = 0x20

	// PrescaleDefault gives roughly 197 Hz from the 25 MHz internal oscillator.
	PrescaleDefault uint8 = 0x1e

	// ChannelOnDefault is the tick at which every channel's pulse starts.
	ChannelOnDefault uint16 = 0

	// ChannelOffDefault is the tick at which the pulse ends at startup (centre position).
	ChannelOffDefault uint16 = 1250

	// onRegisterOffset is the distance from a channel's OFF register down to its ON register.
	onRegisterOffset = 2
)

// DefaultSettleDelay is how long the controller is given after initialisation.
const DefaultSettleDelay = 100 * time.Millisecond

// Initialise puts the controller into its startup state.
//
// The sequence is, in order:
//  1. MODE1 = 0x20
//  2. PRE_SCALE = 0x1e
//  3. for each channel OFF register r: word 0 to r-2, then word 1250 to r
//
// then a wait of settle. Any write failure aborts the sequence and is
// returned wrapped in ErrInitFailed; startup must not continue.
func Initialise(ctx context.Context, h *Handle, channels []uint8, settle time.Duration) error {
	if err := h.WriteRegisterByte(RegMode1, Mode1AutoIncrement); err != nil {
		return fmt.Errorf("%w: writing mode register: %w", ErrInitFailed, err)
	}
	if err := h.WriteRegisterByte(RegPrescale, PrescaleDefault); err != nil {
		return fmt.Errorf("%w: writing prescale register: %w", ErrInitFailed, err)
	}

	for _, off := range channels {
		if off < onRegisterOffset {
			return fmt.Errorf("%w: channel register 0x%02x has no ON register", ErrInitFailed, off)
		}
		if err := h.WriteRegister(off-onRegisterOffset, ChannelOnDefault); err != nil {
			return fmt.Errorf("%w: writing channel 0x%02x on time: %w", ErrInitFailed, off, err)
		}
		if err := h.WriteRegister(off, ChannelOffDefault); err != nil {
			return fmt.Errorf("%w: writing channel 0x%02x off time: %w", ErrInitFailed, off, err)
		}
	}

	if settle <= 0 {
		return nil
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

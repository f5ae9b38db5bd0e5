package bus

import (
	"fmt"

	"github.com/nerrad567/servomount/internal/infrastructure/config"
)

// Open creates the bus handle selected by cfg.Driver.
func Open(cfg config.BusConfig) (*Handle, error) {
	switch cfg.Driver {
	case "i2c":
		return OpenI2C(cfg.Device, cfg.Address)
	case "simulated":
		h, _ := OpenSimulated(cfg.Address)
		return h, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

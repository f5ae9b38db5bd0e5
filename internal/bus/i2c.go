package bus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// i2cConn is a Conn backed by a periph.io I2C device.
type i2cConn struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (c *i2cConn) Tx(w []byte) error {
	return c.dev.Tx(w, nil)
}

func (c *i2cConn) Close() error {
	return c.bus.Close()
}

// OpenI2C opens the named Linux I2C bus and addresses the device at addr.
//
// device may be a bus name ("/dev/i2c-1", "I2C1") or a bus number ("1").
// An empty name opens the first available bus.
func OpenI2C(device string, addr uint16) (*Handle, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialising host drivers: %w", err)
	}

	b, err := i2creg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", device, err)
	}

	return NewHandle(&i2cConn{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, addr), nil
}

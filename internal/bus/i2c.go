package bus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var hostInit sync.Once

// I2C reads sensor frames from an I2C device via periph.io.
type I2C struct {
	bus i2c.BusCloser
	dev i2c.Dev
}

// NewI2C opens the named I2C bus (e.g. "/dev/i2c-1" or "1") and
// addresses the device at addr.
func NewI2C(busName string, addr uint16) (*I2C, error) {
	var initErr error
	hostInit.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("init host drivers: %w", initErr)
	}

	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	return &I2C{
		bus: b,
		dev: i2c.Dev{Bus: b, Addr: addr},
	}, nil
}

// ReadFrame writes the command byte and reads length bytes in a single
// transaction.
func (d *I2C) ReadFrame(cmd byte, length int) (int, []byte, error) {
	buf := make([]byte, length)
	if err := d.dev.Tx([]byte{cmd}, buf); err != nil {
		return 0, nil, fmt.Errorf("i2c tx: %w", err)
	}
	return len(buf), buf, nil
}

// Close releases the bus.
func (d *I2C) Close() error {
	return d.bus.Close()
}

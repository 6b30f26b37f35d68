package i2cbus

import (
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphBus is the real implementation on Linux using periph.io.
type PeriphBus struct {
	i2c.BusCloser
}

// OpenPeriph initializes the periph.io host drivers and opens the named bus.
// Requires running on a board with /dev/i2c-* and the right permissions.
func OpenPeriph(name string, speed physic.Frequency) (*PeriphBus, error) {
	debug.Info("Initializing real I2C bus (periph.io)")

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init host drivers: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w (is i2c enabled?)", name, err)
	}

	if speed <= 0 {
		speed = DefaultSpeed
	}
	if err := b.SetSpeed(speed); err != nil {
		// Some adapters have a fixed clock; keep going with it.
		debug.Verbose("I2C bus %s: cannot set speed %s: %v", b, speed, err)
	}

	debug.Verbose("I2C bus %s opened at %s", b, speed)

	return &PeriphBus{BusCloser: b}, nil
}

func (p *PeriphBus) Close() error {
	debug.Trace("I2C Close (real bus)")
	return p.BusCloser.Close()
}

package i2cbus

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrBus is the single failure kind of the bus: no acknowledgment,
// timeout or any other I/O error. Every error returned by the register
// helpers wraps it.
var ErrBus = errors.New("i2c bus failure")

// DefaultSpeed is the bus clock used when none is configured.
const DefaultSpeed = 400 * physic.KiloHertz

// Bus is an opened two-wire bus owned by the program.
// It is the periph.io bus shape, so any periph device driver
// (e.g. the PCA9685 PWM expander) can run on top of it.
type Bus interface {
	i2c.BusCloser
}

// MockBus is a test implementation that logs transactions and reads zeros.
// Used for development on PC or testing.
type MockBus struct{}

// NewBus opens the bus based on the chosen mode.
// If mock is true, returns a MockBus (for dev/test).
// If mock is false, opens the named bus through periph.io ("" = first bus).
func NewBus(mock bool, name string, speed physic.Frequency) (Bus, error) {
	if mock {
		debug.Info("Using MOCK I2C bus (development mode)")
		return &MockBus{}, nil
	}
	b, err := OpenPeriph(name, speed)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WriteRegister writes data to register reg of the device at addr,
// as a single transaction.
func WriteRegister(b i2c.Bus, addr uint16, reg uint8, data []byte) error {
	debug.I2C("write", addr, reg, data)
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := b.Tx(addr, w, nil); err != nil {
		return fmt.Errorf("%w: write reg 0x%02X at 0x%02X: %w", ErrBus, reg, addr, err)
	}
	return nil
}

// ReadRegister reads n bytes starting at register reg of the device at addr.
func ReadRegister(b i2c.Bus, addr uint16, reg uint8, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := b.Tx(addr, []byte{reg}, r); err != nil {
		return nil, fmt.Errorf("%w: read reg 0x%02X at 0x%02X: %w", ErrBus, reg, addr, err)
	}
	debug.I2C("read", addr, reg, r)
	return r, nil
}

func (m *MockBus) String() string {
	return "mock-i2c"
}

func (m *MockBus) Tx(addr uint16, w, r []byte) error {
	debug.Trace("I2C Tx (mock) addr=0x%02X w=% X r=%d bytes", addr, w, len(r))
	clear(r)
	return nil
}

func (m *MockBus) SetSpeed(f physic.Frequency) error {
	debug.Trace("I2C SetSpeed (mock) %s", f)
	return nil
}

func (m *MockBus) Close() error {
	debug.Trace("I2C Close (mock)")
	return nil
}

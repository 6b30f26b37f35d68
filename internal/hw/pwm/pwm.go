package pwm

import (
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"periph.io/x/conn/v3/i2c"
)

// DutyResolution is the number of duty units in one PWM period.
// Duty values passed to SetDuty are in 1/1024ths of the period (10 bits).
const DutyResolution = 1024

// Backend names accepted by NewDriver.
const (
	BackendMock    = "mock"
	BackendRPi     = "rpio"
	BackendPCA9685 = "pca9685"
)

// Driver defines the abstract interface for controlling PWM outputs.
// This allows plugging in the SoC hardware PWM, an I2C PWM expander
// or a mock for development on PC.
type Driver interface {
	Setup(pin int, freqHz int) error
	SetDuty(pin int, duty int) error
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing.
type MockDriver struct{}

// NewDriver creates a PWM driver for the chosen backend.
// bus and addr are only used by the pca9685 backend.
func NewDriver(backend string, bus i2c.Bus, addr uint16) (Driver, error) {
	switch backend {
	case BackendMock, "":
		debug.Info("Using MOCK PWM driver (development mode)")
		return &MockDriver{}, nil
	case BackendRPi:
		d, err := NewRPiDriver()
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendPCA9685:
		if bus == nil {
			return nil, fmt.Errorf("pca9685 backend needs an I2C bus")
		}
		d, err := NewPCA9685Driver(bus, addr)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported PWM backend: %s", backend)
	}
}

func checkDuty(duty int) error {
	if duty < 0 || duty > DutyResolution {
		return fmt.Errorf("duty %d outside 0-%d", duty, DutyResolution)
	}
	return nil
}

func (m *MockDriver) Setup(pin int, freqHz int) error {
	debug.PWM("Setup", pin, freqHz)
	return nil
}

func (m *MockDriver) SetDuty(pin int, duty int) error {
	debug.PWM("SetDuty", pin, duty)
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("PWM Close (mock)")
	return nil
}

package pwm

import (
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
)

// pca9685Ticks is the counter resolution of the PCA9685 (12 bits).
const pca9685Ticks = 4096

// PCA9685Driver drives servos through a PCA9685 16-channel PWM expander.
// Pins are expander channels 0-15.
type PCA9685Driver struct {
	dev  *pca9685.Dev
	freq map[int]int
}

// NewPCA9685Driver creates a driver for the expander at addr on bus.
// The bus stays owned by the caller.
func NewPCA9685Driver(bus i2c.Bus, addr uint16) (*PCA9685Driver, error) {
	debug.Info("Initializing PCA9685 PWM driver at 0x%02X", addr)

	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCA9685: %w", err)
	}

	return &PCA9685Driver{
		dev:  dev,
		freq: make(map[int]int),
	}, nil
}

func (d *PCA9685Driver) Setup(pin int, freqHz int) error {
	debug.PWM("Setup", pin, freqHz)

	if pin < 0 || pin > 15 {
		return fmt.Errorf("pca9685 channel %d out of range 0-15", pin)
	}
	// The prescaler is shared by all channels.
	for ch, f := range d.freq {
		if f != freqHz {
			return fmt.Errorf("channel %d needs %d Hz but channel %d runs at %d Hz", pin, freqHz, ch, f)
		}
	}
	if len(d.freq) == 0 {
		if err := d.dev.SetPwmFreq(physic.Frequency(freqHz) * physic.Hertz); err != nil {
			return fmt.Errorf("set pwm frequency: %w", err)
		}
	}
	d.freq[pin] = freqHz
	return nil
}

func (d *PCA9685Driver) SetDuty(pin int, duty int) error {
	debug.PWM("SetDuty", pin, duty)

	if _, ok := d.freq[pin]; !ok {
		return fmt.Errorf("channel %d not set up for PWM", pin)
	}
	if err := checkDuty(duty); err != nil {
		return err
	}
	return d.dev.SetPwm(pin, 0, dutyToTicks(duty))
}

// Close leaves the outputs running so servos hold their position.
func (d *PCA9685Driver) Close() error {
	debug.Trace("PWM Close (pca9685)")
	return nil
}

// dutyToTicks converts 10-bit duty units to PCA9685 off-counter ticks.
func dutyToTicks(duty int) gpio.Duty {
	t := duty * pca9685Ticks / DutyResolution
	if t >= pca9685Ticks {
		t = pca9685Ticks - 1
	}
	return gpio.Duty(t)
}

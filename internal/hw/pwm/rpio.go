package pwm

import (
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// hardwarePWM lists the BCM pins routed to the SoC PWM channels.
// 12/18 share channel 0 and 13/19 share channel 1.
var hardwarePWM = map[int]bool{
	12: true,
	13: true,
	18: true,
	19: true,
}

// RPiDriver is the real implementation for Raspberry Pi hardware PWM using go-rpio.
type RPiDriver struct {
	pins map[int]rpio.Pin
}

// NewRPiDriver creates a hardware PWM driver for Raspberry Pi.
// Requires running on a Raspberry Pi as root (PWM needs /dev/mem).
func NewRPiDriver() (*RPiDriver, error) {
	debug.Info("Initializing real PWM driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiDriver) Setup(pin int, freqHz int) error {
	debug.PWM("Setup", pin, freqHz)

	if !hardwarePWM[pin] {
		return fmt.Errorf("pin %d has no hardware PWM (use 12, 13, 18 or 19)", pin)
	}

	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	// The PWM clock ticks DutyResolution times per period.
	p.Freq(freqHz * DutyResolution)
	r.pins[pin] = p

	return nil
}

func (r *RPiDriver) SetDuty(pin int, duty int) error {
	debug.PWM("SetDuty", pin, duty)

	p, ok := r.pins[pin]
	if !ok {
		return fmt.Errorf("pin %d not set up for PWM", pin)
	}
	if err := checkDuty(duty); err != nil {
		return err
	}

	p.DutyCycle(uint32(duty), DutyResolution)
	return nil
}

// Close unmaps GPIO memory. PWM outputs keep their last duty so servos hold.
func (r *RPiDriver) Close() error {
	debug.Trace("PWM Close (real driver)")
	return rpio.Close()
}

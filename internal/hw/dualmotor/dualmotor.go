package dualmotor

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/i2cbus"
	"periph.io/x/conn/v3/i2c"
)

// Addr is the default I2C address of the two-channel driver.
const Addr uint16 = 0x10

// Default register layout: one speed and one direction byte per motor.
const (
	RegM1Speed     uint8 = 0x00
	RegM1Direction uint8 = 0x01
	RegM2Speed     uint8 = 0x02
	RegM2Direction uint8 = 0x03
)

// ErrInvalidMotor is returned for a motor id other than M1 or M2.
var ErrInvalidMotor = errors.New("invalid motor id")

// Motor identifies one of the two outputs.
type Motor int

const (
	M1 Motor = 1
	M2 Motor = 2
)

// Direction is the rotation direction byte.
type Direction uint8

const (
	Backward Direction = 0
	Forward  Direction = 1
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Registers maps a motor to its speed and direction registers.
type Registers struct {
	Speed     uint8
	Direction uint8
}

// Config holds the hardware configuration of the driver.
type Config struct {
	Addr uint16
	M1   Registers
	M2   Registers
}

// DefaultConfig returns the stock address and register layout.
func DefaultConfig() Config {
	return Config{
		Addr: Addr,
		M1:   Registers{Speed: RegM1Speed, Direction: RegM1Direction},
		M2:   Registers{Speed: RegM2Speed, Direction: RegM2Direction},
	}
}

// Driver talks to the two-channel motor driver over I2C.
type Driver struct {
	bus i2c.Bus
	cfg Config
}

// New creates a driver on bus.
func New(bus i2c.Bus, cfg Config) *Driver {
	return &Driver{bus: bus, cfg: cfg}
}

// SetMotor writes the speed register then the direction register of motor m.
// The two writes are separate transactions: a failure after the first one
// leaves the new speed applied with the old direction.
func (d *Driver) SetMotor(m Motor, speed uint8, dir Direction) error {
	var regs Registers
	switch m {
	case M1:
		regs = d.cfg.M1
	case M2:
		regs = d.cfg.M2
	default:
		return fmt.Errorf("%w: %d", ErrInvalidMotor, m)
	}

	debug.Live("Motor %d: speed=%d direction=%s", m, speed, dir)

	if err := i2cbus.WriteRegister(d.bus, d.cfg.Addr, regs.Speed, []byte{speed}); err != nil {
		return fmt.Errorf("motor %d speed: %w", m, err)
	}
	if err := i2cbus.WriteRegister(d.bus, d.cfg.Addr, regs.Direction, []byte{byte(dir)}); err != nil {
		return fmt.Errorf("motor %d direction: %w", m, err)
	}
	return nil
}

package encodermotor

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/i2cbus"
	"periph.io/x/conn/v3/i2c"
)

// Addr is the default I2C address of the 4-channel encoder motor driver.
const Addr uint16 = 0x34

// Register addresses.
const (
	RegBatteryVoltage  uint8 = 0x00 // uint16 LE, millivolts
	RegMotorType       uint8 = 0x14 // 1 byte
	RegEncoderPolarity uint8 = 0x15 // 1 byte
	RegFixedPWM        uint8 = 0x1F // 4 x int8, open-loop
	RegFixedSpeed      uint8 = 0x33 // 4 x int8, closed-loop
	RegEncoderTotal    uint8 = 0x3C // 4 x int32 LE
)

// MotorType selects the motor model the driver regulates for.
type MotorType uint8

const (
	MotorTypeWithoutEncoder MotorType = 0
	MotorTypeTT             MotorType = 1
	MotorTypeN20            MotorType = 2
	MotorTypeJGB37          MotorType = 3 // JGB37-520 12V 110RPM
)

// Channels is the number of motor channels on the driver.
const Channels = 4

// DefaultInitDelay separates the motor type and polarity writes.
const DefaultInitDelay = 500 * time.Millisecond

// Speeds holds one signed value per channel, in channel order.
type Speeds [Channels]int8

// Totals holds the encoder pulse count of each channel.
type Totals [Channels]int32

// Config holds the hardware configuration of the driver.
type Config struct {
	Addr            uint16
	MotorType       MotorType
	EncoderPolarity uint8
	InitDelay       time.Duration // wait between motor type and polarity writes
}

// Driver talks to the encoder motor driver over I2C.
type Driver struct {
	bus i2c.Bus
	cfg Config
}

// New creates a driver on bus. A zero Addr defaults to Addr.
func New(bus i2c.Bus, cfg Config) *Driver {
	if cfg.Addr == 0 {
		cfg.Addr = Addr
	}
	return &Driver{bus: bus, cfg: cfg}
}

// Init writes the motor type, waits InitDelay, then writes the encoder polarity.
func (d *Driver) Init(ctx context.Context) error {
	debug.Verbose("Motor driver: type=%d polarity=%d at 0x%02X", d.cfg.MotorType, d.cfg.EncoderPolarity, d.cfg.Addr)

	if err := i2cbus.WriteRegister(d.bus, d.cfg.Addr, RegMotorType, []byte{byte(d.cfg.MotorType)}); err != nil {
		return fmt.Errorf("set motor type: %w", err)
	}

	t := time.NewTimer(d.cfg.InitDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	if err := i2cbus.WriteRegister(d.bus, d.cfg.Addr, RegEncoderPolarity, []byte{d.cfg.EncoderPolarity}); err != nil {
		return fmt.Errorf("set encoder polarity: %w", err)
	}
	return nil
}

// ReadBatteryVoltage returns the battery voltage in millivolts.
func (d *Driver) ReadBatteryVoltage() (uint16, error) {
	data, err := i2cbus.ReadRegister(d.bus, d.cfg.Addr, RegBatteryVoltage, 2)
	if err != nil {
		return 0, err
	}
	return DecodeVoltage(data), nil
}

// BatteryVoltage is ReadBatteryVoltage with the failure logged and read as 0.
func (d *Driver) BatteryVoltage() uint16 {
	v, err := d.ReadBatteryVoltage()
	if err != nil {
		debug.Errorf("Failed to read battery voltage: %v", err)
		return 0
	}
	return v
}

// ReadEncoderTotals returns the total encoder pulses of all channels.
func (d *Driver) ReadEncoderTotals() (Totals, error) {
	data, err := i2cbus.ReadRegister(d.bus, d.cfg.Addr, RegEncoderTotal, 4*Channels)
	if err != nil {
		return Totals{}, err
	}
	return DecodeTotals(data), nil
}

// EncoderTotals is ReadEncoderTotals with the failure logged and read as zeros.
func (d *Driver) EncoderTotals() Totals {
	t, err := d.ReadEncoderTotals()
	if err != nil {
		debug.Errorf("Failed to read encoder values: %v", err)
		return Totals{}
	}
	return t
}

// SetSpeed writes the closed-loop speed of all channels in one transaction.
func (d *Driver) SetSpeed(s Speeds) error {
	debug.Live("Motor speed: %v", s)
	return i2cbus.WriteRegister(d.bus, d.cfg.Addr, RegFixedSpeed, s.Bytes())
}

// ApplySpeed is SetSpeed with the failure logged and dropped.
func (d *Driver) ApplySpeed(s Speeds) {
	if err := d.SetSpeed(s); err != nil {
		debug.Errorf("Failed to set motor speed: %v", err)
	}
}

// SetPWM writes the open-loop duty of all channels in one transaction.
func (d *Driver) SetPWM(s Speeds) error {
	debug.Live("Motor PWM: %v", s)
	return i2cbus.WriteRegister(d.bus, d.cfg.Addr, RegFixedPWM, s.Bytes())
}

// Bytes encodes s as two's complement bytes in channel order.
func (s Speeds) Bytes() []byte {
	b := make([]byte, Channels)
	for i, v := range s {
		b[i] = byte(v)
	}
	return b
}

// DecodeVoltage decodes [lo, hi] as lo + hi<<8.
func DecodeVoltage(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// DecodeTotals decodes four little-endian int32 values.
func DecodeTotals(b []byte) Totals {
	var t Totals
	for i := range t {
		t[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return t
}

// EncodeTotals is the inverse of DecodeTotals.
func EncodeTotals(t Totals) []byte {
	b := make([]byte, 4*Channels)
	for i, v := range t {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

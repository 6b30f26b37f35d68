package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level" env:"TANKARM_DEBUG_LEVEL"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHW     bool `yaml:"mock_hw" env:"TANKARM_MOCK_HW"`         // use mock bus and PWM (true=dev/test, false=real board)
}

// I2CConfig describes the bus shared by the motor drivers and the PWM expander.
type I2CConfig struct {
	Bus      string `yaml:"bus" env:"TANKARM_I2C_BUS"` // periph bus name, "" = first bus
	SpeedKHz int    `yaml:"speed_khz"`                 // bus clock
}

// EncoderMotorConfig describes the 4-channel encoder motor driver and its test run.
type EncoderMotorConfig struct {
	Addr            uint16 `yaml:"addr"`
	MotorType       uint8  `yaml:"motor_type"`       // 0=no encoder, 1=TT, 2=N20, 3=JGB37-520
	EncoderPolarity uint8  `yaml:"encoder_polarity"` // 0 or 1
	InitDelayMs     int    `yaml:"init_delay_ms"`    // wait between type and polarity writes
	Forward         []int  `yaml:"forward"`          // 4 signed speeds
	Reverse         []int  `yaml:"reverse"`          // 4 signed speeds
	ForwardHoldMs   int    `yaml:"forward_hold_ms"`
	ReverseHoldMs   int    `yaml:"reverse_hold_ms"`
	StopHoldMs      int    `yaml:"stop_hold_ms"`
}

// DualMotorConfig describes the two-channel driver and its drive loop.
type DualMotorConfig struct {
	Addr       uint16 `yaml:"addr"`
	M1SpeedReg uint8  `yaml:"m1_speed_reg"`
	M1DirReg   uint8  `yaml:"m1_dir_reg"`
	M2SpeedReg uint8  `yaml:"m2_speed_reg"`
	M2DirReg   uint8  `yaml:"m2_dir_reg"`
	Speed      int    `yaml:"speed"` // 0-255
	RunHoldMs  int    `yaml:"run_hold_ms"`
	StopHoldMs int    `yaml:"stop_hold_ms"`
}

// ServoConfig binds one servo to a PWM pin (or expander channel).
type ServoConfig struct {
	Pin        int `yaml:"pin"`
	UprightDeg int `yaml:"upright_deg"`
}

// ArmConfig describes the servo arm and its test sequence.
type ArmConfig struct {
	PWMBackend   string        `yaml:"pwm_backend"` // "mock", "rpio" or "pca9685"
	PCA9685Addr  uint16        `yaml:"pca9685_addr"`
	FreqHz       int           `yaml:"freq_hz"`
	MinDuty      int           `yaml:"min_duty"` // 10-bit duty at 0°
	MaxDuty      int           `yaml:"max_duty"` // 10-bit duty at 180°
	Servos       []ServoConfig `yaml:"servos"`
	SetupStepDeg int           `yaml:"setup_step_deg"`
	SetupDelayMs int           `yaml:"setup_delay_ms"`
	TestStepDeg  int           `yaml:"test_step_deg"`
	TestDelayMs  int           `yaml:"test_delay_ms"`
	ExcursionDeg int           `yaml:"excursion_deg"`
	HoldMs       int           `yaml:"hold_ms"`
}

// Config aggregates all application configuration.
// Each program only reads its own section.
type Config struct {
	Defaults     DefaultsConfig     `yaml:"defaults"`
	I2C          I2CConfig          `yaml:"i2c"`
	EncoderMotor EncoderMotorConfig `yaml:"encoder_motor"`
	DualMotor    DualMotorConfig    `yaml:"dual_motor"`
	Arm          ArmConfig          `yaml:"arm"`
}

// Default returns the stock configuration of the rig.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			DebugLevel: 1,
			MockHW:     false,
		},
		I2C: I2CConfig{
			Bus:      "",
			SpeedKHz: 400,
		},
		EncoderMotor: EncoderMotorConfig{
			Addr:            0x34,
			MotorType:       3,
			EncoderPolarity: 1,
			InitDelayMs:     500,
			Forward:         []int{50, 60, 0, 0},
			Reverse:         []int{-50, -60, 0, 0},
			ForwardHoldMs:   3000,
			ReverseHoldMs:   3000,
			StopHoldMs:      2000,
		},
		DualMotor: DualMotorConfig{
			Addr:       0x10,
			M1SpeedReg: 0x00,
			M1DirReg:   0x01,
			M2SpeedReg: 0x02,
			M2DirReg:   0x03,
			Speed:      200,
			RunHoldMs:  2000,
			StopHoldMs: 1000,
		},
		Arm: ArmConfig{
			PWMBackend:  "pca9685",
			PCA9685Addr: 0x40,
			FreqHz:      50,
			MinDuty:     26,
			MaxDuty:     128,
			Servos: []ServoConfig{
				{Pin: 0, UprightDeg: 90},
				{Pin: 1, UprightDeg: 45},
				{Pin: 2, UprightDeg: 90},
				{Pin: 3, UprightDeg: 180},
			},
			SetupStepDeg: 2,
			SetupDelayMs: 20,
			TestStepDeg:  1,
			TestDelayMs:  50,
			ExcursionDeg: 30,
			HoldMs:       2000,
		},
	}
}

// ValidateConfigPath checks that path names a .yaml file directly inside
// a configs/ directory, without any ".." component.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file over the defaults, applies environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := env.Parse(&cfg.Defaults); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := env.Parse(&cfg.I2C); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.I2C.SpeedKHz <= 0 {
		c.I2C.SpeedKHz = def.I2C.SpeedKHz
	}

	// Encoder motor driver
	if c.EncoderMotor.Addr == 0 || c.EncoderMotor.Addr > 0x7F {
		return fmt.Errorf("encoder_motor.addr must be a 7-bit address, got 0x%X", c.EncoderMotor.Addr)
	}
	if c.EncoderMotor.MotorType > 3 {
		return fmt.Errorf("encoder_motor.motor_type must be between 0 and 3, got %d", c.EncoderMotor.MotorType)
	}
	if c.EncoderMotor.EncoderPolarity > 1 {
		return fmt.Errorf("encoder_motor.encoder_polarity must be 0 or 1, got %d", c.EncoderMotor.EncoderPolarity)
	}
	for name, v := range map[string][]int{"forward": c.EncoderMotor.Forward, "reverse": c.EncoderMotor.Reverse} {
		if err := validateSpeeds(v); err != nil {
			return fmt.Errorf("encoder_motor.%s: %w", name, err)
		}
	}
	if c.EncoderMotor.InitDelayMs < 0 {
		c.EncoderMotor.InitDelayMs = def.EncoderMotor.InitDelayMs
	}

	// Dual motor driver
	if c.DualMotor.Addr == 0 || c.DualMotor.Addr > 0x7F {
		return fmt.Errorf("dual_motor.addr must be a 7-bit address, got 0x%X", c.DualMotor.Addr)
	}
	if c.DualMotor.Speed < 0 || c.DualMotor.Speed > 255 {
		return fmt.Errorf("dual_motor.speed must be between 0 and 255, got %d", c.DualMotor.Speed)
	}

	// Arm
	switch c.Arm.PWMBackend {
	case "mock", "rpio", "pca9685":
	default:
		return fmt.Errorf("arm.pwm_backend must be mock, rpio or pca9685, got %q", c.Arm.PWMBackend)
	}
	if len(c.Arm.Servos) == 0 {
		return errors.New("arm.servos must list at least one servo")
	}
	if c.Arm.MinDuty >= c.Arm.MaxDuty {
		return fmt.Errorf("arm.min_duty (%d) must be below arm.max_duty (%d)", c.Arm.MinDuty, c.Arm.MaxDuty)
	}
	if c.Arm.FreqHz <= 0 {
		c.Arm.FreqHz = def.Arm.FreqHz
	}
	if c.Arm.SetupStepDeg <= 0 {
		c.Arm.SetupStepDeg = def.Arm.SetupStepDeg
	}
	if c.Arm.TestStepDeg <= 0 {
		c.Arm.TestStepDeg = def.Arm.TestStepDeg
	}
	for i, s := range c.Arm.Servos {
		if s.UprightDeg < 0 || s.UprightDeg > 180 {
			return fmt.Errorf("arm.servos[%d].upright_deg must be between 0 and 180, got %d", i, s.UprightDeg)
		}
	}

	return nil
}

func validateSpeeds(v []int) error {
	if len(v) != 4 {
		return fmt.Errorf("need 4 channel speeds, got %d", len(v))
	}
	for i, s := range v {
		if s < -128 || s > 127 {
			return fmt.Errorf("channel %d speed %d does not fit a signed byte", i+1, s)
		}
	}
	return nil
}

// Overrides are command line values applied over the loaded config.
// A zero DebugLevel means "use config"; MockHW can only force mock mode on.
type Overrides struct {
	DebugLevel int
	MockHW     bool
}

// ApplyOverrides validates o and applies its non-zero values to c.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.DebugLevel != 0 {
		if o.DebugLevel < 0 || o.DebugLevel > 4 {
			return fmt.Errorf("debug level must be between 1 and 4, got %d", o.DebugLevel)
		}
		c.Defaults.DebugLevel = o.DebugLevel
	}
	if o.MockHW {
		c.Defaults.MockHW = true
	}
	return nil
}

// I2CSpeed returns the configured bus clock.
func (c *Config) I2CSpeed() physic.Frequency {
	return physic.Frequency(c.I2C.SpeedKHz) * physic.KiloHertz
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// InitDelay returns the wait between the motor type and polarity writes.
func (c *Config) InitDelay() time.Duration {
	return ms(c.EncoderMotor.InitDelayMs)
}

// ForwardHold returns how long the forward speed is held.
func (c *Config) ForwardHold() time.Duration {
	return ms(c.EncoderMotor.ForwardHoldMs)
}

// ReverseHold returns how long the reverse speed is held.
func (c *Config) ReverseHold() time.Duration {
	return ms(c.EncoderMotor.ReverseHoldMs)
}

// StopHold returns how long the encoder motors stay stopped.
func (c *Config) StopHold() time.Duration {
	return ms(c.EncoderMotor.StopHoldMs)
}

// DualRunHold returns how long the dual motors run in each direction.
func (c *Config) DualRunHold() time.Duration {
	return ms(c.DualMotor.RunHoldMs)
}

// DualStopHold returns how long the dual motors stay stopped.
func (c *Config) DualStopHold() time.Duration {
	return ms(c.DualMotor.StopHoldMs)
}

// SetupDelay returns the per-step delay of the upright move.
func (c *Config) SetupDelay() time.Duration {
	return ms(c.Arm.SetupDelayMs)
}

// TestDelay returns the per-step delay of the servo test moves.
func (c *Config) TestDelay() time.Duration {
	return ms(c.Arm.TestDelayMs)
}

// ArmHold returns the hold after each servo test move.
func (c *Config) ArmHold() time.Duration {
	return ms(c.Arm.HoldMs)
}

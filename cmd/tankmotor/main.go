package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cjeanneret/tankarm/internal/config"
	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/encodermotor"
	"github.com/cjeanneret/tankarm/internal/hw/i2cbus"
	"github.com/cjeanneret/tankarm/internal/logic/routine"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", 0, "override debug level (1-4)")
	mock := flag.Bool("mock", false, "use the mock I2C bus")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := cfg.ApplyOverrides(config.Overrides{DebugLevel: *debugLevel, MockHW: *mock}); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Open I2C bus
	debug.Value("Mock hardware", cfg.Defaults.MockHW)
	debug.Step(1, "Opening I2C bus")
	bus, err := i2cbus.NewBus(cfg.Defaults.MockHW, cfg.I2C.Bus, cfg.I2CSpeed())
	if err != nil {
		log.Fatalf("open I2C bus failed: %v", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Printf("closing I2C bus failed: %v", err)
		}
	}()

	debug.Step(2, "Creating motor driver")
	motors := encodermotor.New(bus, driverConfig(cfg))
	debug.PrintStruct("Encoder motor config", cfg.EncoderMotor)

	debug.Section("Starting Motor Loop")
	err = routine.NewTelemetry(motors, telemetryParams(cfg)).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("motor loop failed: %v", err)
	}
	debug.Info("Motor loop stopped.")
}

// driverConfig maps the encoder_motor section onto the driver configuration.
func driverConfig(cfg *config.Config) encodermotor.Config {
	return encodermotor.Config{
		Addr:            cfg.EncoderMotor.Addr,
		MotorType:       encodermotor.MotorType(cfg.EncoderMotor.MotorType),
		EncoderPolarity: cfg.EncoderMotor.EncoderPolarity,
		InitDelay:       cfg.InitDelay(),
	}
}

func telemetryParams(cfg *config.Config) routine.TelemetryParams {
	return routine.TelemetryParams{
		Forward:     speeds(cfg.EncoderMotor.Forward),
		Reverse:     speeds(cfg.EncoderMotor.Reverse),
		ForwardHold: cfg.ForwardHold(),
		ReverseHold: cfg.ReverseHold(),
		StopHold:    cfg.StopHold(),
	}
}

// speeds converts validated config values to per-channel speeds.
// Missing channels stay at 0.
func speeds(v []int) encodermotor.Speeds {
	var s encodermotor.Speeds
	for i := range s {
		if i < len(v) {
			s[i] = int8(v[i])
		}
	}
	return s
}

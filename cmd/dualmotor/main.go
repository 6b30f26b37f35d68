package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cjeanneret/tankarm/internal/config"
	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/dualmotor"
	"github.com/cjeanneret/tankarm/internal/hw/i2cbus"
	"github.com/cjeanneret/tankarm/internal/logic/routine"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", 0, "override debug level (1-4)")
	mock := flag.Bool("mock", false, "use the mock I2C bus")
	speed := flag.Int("speed", -1, "override drive speed (0-255)")
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
	if err := applySpeed(cfg, *speed); err != nil {
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
	motors := dualmotor.New(bus, driverConfig(cfg))
	debug.PrintStruct("Dual motor config", cfg.DualMotor)

	debug.Section("Starting Drive Loop")
	err = routine.NewDrive(motors, driveParams(cfg)).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("drive loop failed: %v", err)
	}
	debug.Info("Drive loop stopped.")
}

// applySpeed sets the drive speed from the command line. A negative value
// means "use config".
func applySpeed(cfg *config.Config, speed int) error {
	if speed < 0 {
		return nil
	}
	if speed > 255 {
		return fmt.Errorf("speed must be between 0 and 255, got %d", speed)
	}
	cfg.DualMotor.Speed = speed
	return nil
}

// driverConfig maps the dual_motor section onto the driver configuration.
func driverConfig(cfg *config.Config) dualmotor.Config {
	return dualmotor.Config{
		Addr: cfg.DualMotor.Addr,
		M1:   dualmotor.Registers{Speed: cfg.DualMotor.M1SpeedReg, Direction: cfg.DualMotor.M1DirReg},
		M2:   dualmotor.Registers{Speed: cfg.DualMotor.M2SpeedReg, Direction: cfg.DualMotor.M2DirReg},
	}
}

func driveParams(cfg *config.Config) routine.DriveParams {
	return routine.DriveParams{
		Speed:    uint8(cfg.DualMotor.Speed),
		RunHold:  cfg.DualRunHold(),
		StopHold: cfg.DualStopHold(),
	}
}

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
	"github.com/cjeanneret/tankarm/internal/hw/i2cbus"
	"github.com/cjeanneret/tankarm/internal/hw/pwm"
	"github.com/cjeanneret/tankarm/internal/hw/servo"
	"github.com/cjeanneret/tankarm/internal/logic/motion"
	"github.com/cjeanneret/tankarm/internal/logic/routine"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", 0, "override debug level (1-4)")
	mock := flag.Bool("mock", false, "use the mock PWM driver")
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

	backend := pwmBackend(cfg)
	debug.Value("Mock hardware", cfg.Defaults.MockHW)
	debug.Value("PWM backend", backend)

	// The PCA9685 expander sits on the I2C bus; the other backends don't need it.
	var bus i2cbus.Bus
	if backend == pwm.BackendPCA9685 {
		debug.Step(1, "Opening I2C bus")
		bus, err = i2cbus.NewBus(false, cfg.I2C.Bus, cfg.I2CSpeed())
		if err != nil {
			log.Fatalf("open I2C bus failed: %v", err)
		}
		defer func() {
			if err := bus.Close(); err != nil {
				log.Printf("closing I2C bus failed: %v", err)
			}
		}()
	}

	debug.Step(2, "Initializing PWM driver")
	drv, err := pwm.NewDriver(backend, bus, cfg.Arm.PCA9685Addr)
	if err != nil {
		log.Fatalf("init PWM failed: %v", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Printf("closing PWM driver failed: %v", err)
		}
	}()

	debug.Step(3, "Initializing servos")
	arm, err := newArm(drv, cfg)
	if err != nil {
		log.Fatalf("init servos failed: %v", err)
	}
	debug.PrintStruct("Servos", cfg.Arm.Servos)

	debug.Section("Starting Arm Test")
	err = routine.NewArmTest(arm, armTestParams(cfg)).Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		debug.Info("Test interrupted. Servos holding position.")
	case err != nil:
		log.Fatalf("arm test failed: %v", err)
	}
}

// pwmBackend returns the configured backend, or mock when running without hardware.
func pwmBackend(cfg *config.Config) string {
	if cfg.Defaults.MockHW {
		return pwm.BackendMock
	}
	return cfg.Arm.PWMBackend
}

// newArm creates one servo per configured output, in order.
func newArm(drv pwm.Driver, cfg *config.Config) (*motion.Arm, error) {
	joints := make([]motion.Joint, 0, len(cfg.Arm.Servos))
	for i, sc := range cfg.Arm.Servos {
		s, err := servo.New(drv, servo.Config{
			Pin:     sc.Pin,
			FreqHz:  cfg.Arm.FreqHz,
			MinDuty: cfg.Arm.MinDuty,
			MaxDuty: cfg.Arm.MaxDuty,
		})
		if err != nil {
			return nil, fmt.Errorf("servo %d: %w", i+1, err)
		}
		joints = append(joints, motion.Joint{Servo: s, Upright: sc.UprightDeg})
	}
	return motion.NewArm(joints...), nil
}

func armTestParams(cfg *config.Config) routine.ArmTestParams {
	return routine.ArmTestParams{
		SetupStep:  cfg.Arm.SetupStepDeg,
		SetupDelay: cfg.SetupDelay(),
		Exercise: motion.ExerciseParams{
			Excursion: cfg.Arm.ExcursionDeg,
			Step:      cfg.Arm.TestStepDeg,
			Delay:     cfg.TestDelay(),
			Hold:      cfg.ArmHold(),
		},
	}
}

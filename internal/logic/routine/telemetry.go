package routine

import (
	"context"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/encodermotor"
)

// TelemetryParams defines one forward/reverse/stop cycle.
type TelemetryParams struct {
	Forward encodermotor.Speeds
	Reverse encodermotor.Speeds

	ForwardHold time.Duration
	ReverseHold time.Duration
	StopHold    time.Duration
}

// DefaultTelemetryParams returns the stock cycle: motors 1 and 2 at 50 and 60,
// 3 s each way, 2 s stopped.
func DefaultTelemetryParams() TelemetryParams {
	return TelemetryParams{
		Forward:     encodermotor.Speeds{50, 60, 0, 0},
		Reverse:     encodermotor.Speeds{-50, -60, 0, 0},
		ForwardHold: 3 * time.Second,
		ReverseHold: 3 * time.Second,
		StopHold:    2 * time.Second,
	}
}

// Telemetry drives the encoder motors back and forth while reporting the
// battery voltage and encoder totals.
type Telemetry struct {
	motors *encodermotor.Driver
	p      TelemetryParams
}

func NewTelemetry(m *encodermotor.Driver, p TelemetryParams) *Telemetry {
	return &Telemetry{motors: m, p: p}
}

// Run initializes the driver once, then repeats the cycle until ctx is done.
// A failed initialization is logged and the loop starts anyway.
func (t *Telemetry) Run(ctx context.Context) error {
	if err := t.motors.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		debug.Errorf("Failed to initialize motor driver: %v", err)
	} else {
		debug.Info("Motor driver initialized successfully.")
	}

	for {
		if err := t.RunOnce(ctx); err != nil {
			return err
		}
	}
}

// RunOnce performs a single report/forward/reverse/stop cycle.
// Bus failures are logged by the driver and never end the cycle; the only
// error returned is the context's.
func (t *Telemetry) RunOnce(ctx context.Context) error {
	debug.Info("Battery Voltage: %d mV", t.motors.BatteryVoltage())

	enc := t.motors.EncoderTotals()
	debug.Info("Encoder Values: Motor1 = %d, Motor2 = %d, Motor3 = %d, Motor4 = %d", enc[0], enc[1], enc[2], enc[3])

	debug.Info("Moving FORWARD...")
	t.motors.ApplySpeed(t.p.Forward)
	if err := wait(ctx, t.p.ForwardHold); err != nil {
		return err
	}

	enc = t.motors.EncoderTotals()
	debug.Info("Encoder Values After Forward: Motor1 = %d, Motor2 = %d", enc[0], enc[1])

	debug.Info("Moving REVERSE...")
	t.motors.ApplySpeed(t.p.Reverse)
	if err := wait(ctx, t.p.ReverseHold); err != nil {
		return err
	}

	enc = t.motors.EncoderTotals()
	debug.Info("Encoder Values After Reverse: Motor1 = %d, Motor2 = %d", enc[0], enc[1])

	debug.Info("Stopping...")
	t.motors.ApplySpeed(encodermotor.Speeds{})
	return wait(ctx, t.p.StopHold)
}

package servo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/pwm"
)

// Duty range in 10-bit units at 50 Hz (0° and 180°).
const (
	MinDuty = 26
	MaxDuty = 128
)

// Freq is the servo PWM frequency in Hz.
const Freq = 50

// Gradual move defaults.
const (
	DefaultStep  = 1
	DefaultDelay = 50 * time.Millisecond
)

// HomeAngle is the angle a servo is assumed to sit at before the first move.
const HomeAngle = 90

// ErrZeroStep is returned by GradualMove when step is 0.
var ErrZeroStep = errors.New("servo: step must not be zero")

// Config holds the hardware configuration for a servo.
type Config struct {
	Pin     int
	FreqHz  int // 0 = Freq
	MinDuty int // duty at 0°, 0 = MinDuty
	MaxDuty int // duty at 180°, 0 = MaxDuty
}

// Servo is a PWM hobby servo positioned by angle.
type Servo struct {
	pwm   pwm.Driver
	cfg   Config
	angle int
}

// New configures the PWM output of a servo. No duty is written until the first move.
func New(d pwm.Driver, cfg Config) (*Servo, error) {
	if cfg.FreqHz <= 0 {
		cfg.FreqHz = Freq
	}
	if cfg.MinDuty == 0 && cfg.MaxDuty == 0 {
		cfg.MinDuty, cfg.MaxDuty = MinDuty, MaxDuty
	}

	if err := d.Setup(cfg.Pin, cfg.FreqHz); err != nil {
		return nil, fmt.Errorf("servo on pin %d: %w", cfg.Pin, err)
	}

	return &Servo{
		pwm:   d,
		cfg:   cfg,
		angle: HomeAngle,
	}, nil
}

// AngleToDuty maps 0-180° linearly onto MinDuty-MaxDuty, rounded.
// The angle is not clamped.
func AngleToDuty(angle int) int {
	return dutyFor(angle, MinDuty, MaxDuty)
}

func dutyFor(angle, minDuty, maxDuty int) int {
	return int(math.Round(float64(angle)/180*float64(maxDuty-minDuty) + float64(minDuty)))
}

// Pin returns the PWM pin of the servo.
func (s *Servo) Pin() int {
	return s.cfg.Pin
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() int {
	return s.angle
}

// Duty returns the duty for angle with this servo's calibration.
func (s *Servo) Duty(angle int) int {
	return dutyFor(angle, s.cfg.MinDuty, s.cfg.MaxDuty)
}

// Set writes the duty for angle at once.
func (s *Servo) Set(angle int) error {
	duty := s.Duty(angle)
	if err := s.pwm.SetDuty(s.cfg.Pin, duty); err != nil {
		return err
	}
	s.angle = angle
	debug.Move(angle, duty)
	return nil
}

// GradualMove steps from start towards end, writing each angle and waiting
// delay after each one. The sequence is start, start+step, ... bounded
// exclusively by end+step, so end is included when (end-start) is a multiple
// of step and overshot by less than one step otherwise. The sign of step
// follows the direction of travel.
//
// If ctx is cancelled the move stops and the last duty stays applied.
func (s *Servo) GradualMove(ctx context.Context, start, end, step int, delay time.Duration) error {
	angles, err := Sweep(start, end, step)
	if err != nil {
		return err
	}

	for _, a := range angles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Set(a); err != nil {
			return err
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// Sweep returns the angles visited by GradualMove.
func Sweep(start, end, step int) ([]int, error) {
	if step == 0 {
		return nil, ErrZeroStep
	}
	if step < 0 {
		step = -step
	}
	if start > end {
		step = -step
	}

	stop := end + step
	var angles []int
	for a := start; (step > 0 && a < stop) || (step < 0 && a > stop); a += step {
		angles = append(angles, a)
	}
	return angles, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

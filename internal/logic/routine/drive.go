package routine

import (
	"context"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/dualmotor"
)

// DriveParams defines the forward/stop/backward/stop cycle of the dual driver.
type DriveParams struct {
	Speed    uint8
	RunHold  time.Duration // time spent driving in each direction
	StopHold time.Duration // time spent stopped after each run
}

// DefaultDriveParams returns the stock cycle: speed 200, 2 s runs, 1 s stops.
func DefaultDriveParams() DriveParams {
	return DriveParams{
		Speed:    200,
		RunHold:  2 * time.Second,
		StopHold: time.Second,
	}
}

// Drive runs both motors of the dual driver forward and backward in turn.
type Drive struct {
	motors *dualmotor.Driver
	p      DriveParams
}

func NewDrive(m *dualmotor.Driver, p DriveParams) *Drive {
	return &Drive{motors: m, p: p}
}

// Run repeats the drive cycle until ctx is done or a bus write fails.
func (d *Drive) Run(ctx context.Context) error {
	for {
		if err := d.RunOnce(ctx); err != nil {
			return err
		}
	}
}

// RunOnce drives forward, stops, drives backward, stops.
// Stopping writes speed 0 and keeps the direction of the previous run.
func (d *Drive) RunOnce(ctx context.Context) error {
	phases := []struct {
		name  string
		speed uint8
		dir   dualmotor.Direction
		hold  time.Duration
	}{
		{"forward", d.p.Speed, dualmotor.Forward, d.p.RunHold},
		{"stop", 0, dualmotor.Forward, d.p.StopHold},
		{"backward", d.p.Speed, dualmotor.Backward, d.p.RunHold},
		{"stop", 0, dualmotor.Backward, d.p.StopHold},
	}

	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		debug.Verbose("Drive: %s", ph.name)
		if err := d.setBoth(ph.speed, ph.dir); err != nil {
			return err
		}
		if err := wait(ctx, ph.hold); err != nil {
			return err
		}
	}
	return nil
}

func (d *Drive) setBoth(speed uint8, dir dualmotor.Direction) error {
	if err := d.motors.SetMotor(dualmotor.M1, speed, dir); err != nil {
		return err
	}
	return d.motors.SetMotor(dualmotor.M2, speed, dir)
}

package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/hw/servo"
)

// Joint is one servo of the arm with the angle it holds when upright.
type Joint struct {
	Servo   *servo.Servo
	Upright int
}

// Arm orchestrates the servos of the arm, one at a time.
// It's an intermediate layer between the test routines and the
// low-level servo moves (PWM).
type Arm struct {
	joints []Joint
}

// ExerciseParams describes the swing of one joint around upright.
type ExerciseParams struct {
	Excursion int           // degrees each side of upright
	Step      int           // degrees per step
	Delay     time.Duration // delay between steps
	Hold      time.Duration // hold after each of the three moves
}

func NewArm(joints ...Joint) *Arm {
	return &Arm{joints: joints}
}

// Joints returns the joints in order.
func (a *Arm) Joints() []Joint {
	return a.joints
}

func (a *Arm) joint(i int) (Joint, error) {
	if i < 0 || i >= len(a.joints) {
		return Joint{}, fmt.Errorf("joint %d out of range (arm has %d)", i, len(a.joints))
	}
	return a.joints[i], nil
}

// MoveJoint gradually moves joint i from start to end.
func (a *Arm) MoveJoint(ctx context.Context, i, start, end, step int, delay time.Duration) error {
	j, err := a.joint(i)
	if err != nil {
		return err
	}
	debug.Verbose("Joint %d (pin %d): %d° -> %d°", i+1, j.Servo.Pin(), start, end)
	return j.Servo.GradualMove(ctx, start, end, step, delay)
}

// Upright moves every joint in turn from the home angle to its upright angle.
func (a *Arm) Upright(ctx context.Context, step int, delay time.Duration) error {
	for i, j := range a.joints {
		if err := a.MoveJoint(ctx, i, servo.HomeAngle, j.Upright, step, delay); err != nil {
			return err
		}
	}
	return nil
}

// Exercise swings joint i to upright+excursion, then to upright-excursion,
// then back to upright, holding after each move.
func (a *Arm) Exercise(ctx context.Context, i int, p ExerciseParams) error {
	j, err := a.joint(i)
	if err != nil {
		return err
	}

	up := j.Upright
	moves := [][2]int{
		{up, up + p.Excursion},
		{up + p.Excursion, up - p.Excursion},
		{up - p.Excursion, up},
	}
	for _, m := range moves {
		if err := a.MoveJoint(ctx, i, m[0], m[1], p.Step, p.Delay); err != nil {
			return err
		}
		if err := hold(ctx, p.Hold); err != nil {
			return err
		}
	}
	return nil
}

func hold(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package routine

import (
	"context"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"github.com/cjeanneret/tankarm/internal/logic/motion"
)

// ArmTestParams defines the upright setup move and the per-servo swing.
type ArmTestParams struct {
	SetupStep  int           // degrees per step while moving upright
	SetupDelay time.Duration // delay between setup steps

	Exercise motion.ExerciseParams
}

// DefaultArmTestParams returns the stock sequence: upright in 2° steps every
// 20 ms, then ±30° swings in 1° steps every 50 ms with 2 s holds.
func DefaultArmTestParams() ArmTestParams {
	return ArmTestParams{
		SetupStep:  2,
		SetupDelay: 20 * time.Millisecond,
		Exercise: motion.ExerciseParams{
			Excursion: 30,
			Step:      1,
			Delay:     50 * time.Millisecond,
			Hold:      2 * time.Second,
		},
	}
}

// ArmTest moves the arm upright then swings each servo in turn.
type ArmTest struct {
	arm *motion.Arm
	p   ArmTestParams
}

func NewArmTest(a *motion.Arm, p ArmTestParams) *ArmTest {
	return &ArmTest{arm: a, p: p}
}

// Setup moves every servo from 90° to its upright angle.
func (a *ArmTest) Setup(ctx context.Context) error {
	debug.Info("Setting arm to upright position...")
	if err := a.arm.Upright(ctx, a.p.SetupStep, a.p.SetupDelay); err != nil {
		return err
	}
	debug.Info("Arm is now holding upright!")
	return nil
}

// Run performs Setup then tests each servo once. On cancellation the
// context error is returned and the servos keep their last duty.
func (a *ArmTest) Run(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}

	for i, j := range a.arm.Joints() {
		debug.Info("Testing Servo %d on GPIO %d", i+1, j.Servo.Pin())
		if err := a.arm.Exercise(ctx, i, a.p.Exercise); err != nil {
			return err
		}
		debug.Info("Servo %d test complete!", i+1)
	}

	debug.Info("Arm returned to upright position and will HOLD.")
	return nil
}

package servo

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingDriver records PWM calls for verification.
type recordingDriver struct {
	setups []setupCall
	duties []dutyCall
	err    error
}

type setupCall struct {
	pin  int
	freq int
}

type dutyCall struct {
	pin  int
	duty int
}

func (d *recordingDriver) Setup(pin int, freqHz int) error {
	d.setups = append(d.setups, setupCall{pin: pin, freq: freqHz})
	return nil
}

func (d *recordingDriver) SetDuty(pin int, duty int) error {
	if d.err != nil {
		return d.err
	}
	d.duties = append(d.duties, dutyCall{pin: pin, duty: duty})
	return nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) dutyValues() []int {
	var result []int
	for _, c := range d.duties {
		result = append(result, c.duty)
	}
	return result
}

func newTestServo(t *testing.T) (*Servo, *recordingDriver) {
	t.Helper()
	drv := &recordingDriver{}
	s, err := New(drv, Config{Pin: 15})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, drv
}

func TestAngleToDuty(t *testing.T) {
	cases := []struct {
		angle int
		want  int
	}{
		{0, 26},
		{180, 128},
		{90, 77},
		{45, 52},  // 51.5 rounds up
		{120, 94}, // 94.0
		{210, 145},
		{-30, 9},
	}
	for _, tc := range cases {
		if got := AngleToDuty(tc.angle); got != tc.want {
			t.Errorf("AngleToDuty(%d) = %d, want %d", tc.angle, got, tc.want)
		}
	}
}

func TestNew_SetsUpPWMAt50Hz(t *testing.T) {
	s, drv := newTestServo(t)
	if len(drv.setups) != 1 || drv.setups[0] != (setupCall{15, 50}) {
		t.Errorf("setup calls = %v, want [{15 50}]", drv.setups)
	}
	if len(drv.duties) != 0 {
		t.Errorf("New should not write a duty, got %v", drv.duties)
	}
	if s.Angle() != HomeAngle {
		t.Errorf("initial angle = %d, want %d", s.Angle(), HomeAngle)
	}
}

func TestGradualMove_Forward(t *testing.T) {
	s, drv := newTestServo(t)

	if err := s.GradualMove(context.Background(), 90, 120, 2, time.Microsecond); err != nil {
		t.Fatalf("GradualMove: %v", err)
	}

	var want []int
	for a := 90; a <= 120; a += 2 {
		want = append(want, AngleToDuty(a))
	}
	got := drv.dutyValues()
	if len(got) != 16 {
		t.Fatalf("expected 16 steps, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d duty = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Angle() != 120 {
		t.Errorf("final angle = %d, want 120", s.Angle())
	}
}

func TestGradualMove_Reverse(t *testing.T) {
	s, drv := newTestServo(t)

	if err := s.GradualMove(context.Background(), 120, 90, 2, time.Microsecond); err != nil {
		t.Fatalf("GradualMove: %v", err)
	}

	var want []int
	for a := 120; a >= 90; a -= 2 {
		want = append(want, AngleToDuty(a))
	}
	got := drv.dutyValues()
	if len(got) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d duty = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Angle() != 90 {
		t.Errorf("final angle = %d, want 90", s.Angle())
	}
}

func TestSweep(t *testing.T) {
	cases := []struct {
		name             string
		start, end, step int
		want             []int
	}{
		{"same_angle", 90, 90, 2, []int{90}},
		{"single_step", 90, 91, 1, []int{90, 91}},
		{"overshoot_up", 0, 5, 2, []int{0, 2, 4, 6}},
		{"overshoot_down", 5, 0, 2, []int{5, 3, 1, -1}},
		{"negative_step_normalized", 0, 4, -2, []int{0, 2, 4}},
		{"odd_span_down", 50, 45, 2, []int{50, 48, 46, 44}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sweep(tc.start, tc.end, tc.step)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			want := tc.want
			if len(got) != len(want) {
				t.Fatalf("Sweep(%d, %d, %d) = %v, want %v", tc.start, tc.end, tc.step, got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("Sweep(%d, %d, %d) = %v, want %v", tc.start, tc.end, tc.step, got, want)
				}
			}
		})
	}
}

func TestGradualMove_ZeroStep(t *testing.T) {
	s, drv := newTestServo(t)
	if err := s.GradualMove(context.Background(), 0, 10, 0, 0); !errors.Is(err, ErrZeroStep) {
		t.Errorf("error = %v, want ErrZeroStep", err)
	}
	if len(drv.duties) != 0 {
		t.Errorf("zero step should not move, got %v", drv.duties)
	}
}

func TestGradualMove_CancelledHoldsLastDuty(t *testing.T) {
	s, drv := newTestServo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.GradualMove(ctx, 90, 120, 1, time.Microsecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(drv.duties) != 0 {
		t.Errorf("cancelled move should not write, got %v", drv.duties)
	}
	if s.Angle() != HomeAngle {
		t.Errorf("angle = %d, want unchanged %d", s.Angle(), HomeAngle)
	}
}

func TestGradualMove_PWMError(t *testing.T) {
	s, drv := newTestServo(t)
	drv.err = errors.New("i2c nack")

	if err := s.GradualMove(context.Background(), 90, 92, 1, 0); err == nil {
		t.Error("expected PWM error, got nil")
	}
	if s.Angle() != HomeAngle {
		t.Errorf("failed write should not change angle, got %d", s.Angle())
	}
}

func TestServo_CustomCalibration(t *testing.T) {
	drv := &recordingDriver{}
	s, err := New(drv, Config{Pin: 2, FreqHz: 60, MinDuty: 30, MaxDuty: 120})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if drv.setups[0].freq != 60 {
		t.Errorf("freq = %d, want 60", drv.setups[0].freq)
	}
	if got := s.Duty(90); got != 75 {
		t.Errorf("Duty(90) = %d, want 75", got)
	}
}

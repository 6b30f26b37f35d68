package routine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/tankarm/internal/hw/encodermotor"
)

func newTestTelemetry(bus *recordingBus, hold time.Duration) *Telemetry {
	drv := encodermotor.New(bus, encodermotor.Config{
		MotorType:       encodermotor.MotorTypeJGB37,
		EncoderPolarity: 1,
		InitDelay:       time.Microsecond,
	})
	p := DefaultTelemetryParams()
	p.ForwardHold, p.ReverseHold, p.StopHold = hold, hold, hold
	return NewTelemetry(drv, p)
}

func TestTelemetryRunOnce_LogsEncoderValues(t *testing.T) {
	buf := captureLog(t)
	bus := &recordingBus{regs: map[uint8][]byte{
		encodermotor.RegBatteryVoltage: {0x10, 0x27},
		encodermotor.RegEncoderTotal:   {1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}}
	tel := newTestTelemetry(bus, 0)

	if err := tel.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	out := buf.String()
	if !containsInOrder(out,
		"Battery Voltage: 10000 mV",
		"Encoder Values: Motor1 = 1, Motor2 = 2, Motor3 = 0, Motor4 = 0",
		"Moving FORWARD...",
		"Encoder Values After Forward: Motor1 = 1, Motor2 = 2",
		"Moving REVERSE...",
		"Encoder Values After Reverse: Motor1 = 1, Motor2 = 2",
		"Stopping...",
	) {
		t.Errorf("unexpected log output:\n%s", out)
	}
}

func TestTelemetryRunOnce_SpeedWrites(t *testing.T) {
	captureLog(t)
	bus := &recordingBus{}
	tel := newTestTelemetry(bus, 0)

	if err := tel.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	expected := [][]byte{
		{50, 60, 0, 0},
		{0xCE, 0xC4, 0, 0}, // -50, -60
		{0, 0, 0, 0},
	}
	if len(bus.writes) != len(expected) {
		t.Fatalf("expected %d writes, got %d: %v", len(expected), len(bus.writes), bus.writes)
	}
	for i, exp := range expected {
		w := bus.writes[i]
		if w.addr != encodermotor.Addr || w.reg != encodermotor.RegFixedSpeed {
			t.Errorf("write %d to 0x%02X reg 0x%02X, want 0x%02X reg 0x%02X",
				i, w.addr, w.reg, encodermotor.Addr, encodermotor.RegFixedSpeed)
		}
		if !bytes.Equal(w.data, exp) {
			t.Errorf("write %d data = % X, want % X", i, w.data, exp)
		}
	}
}

func TestTelemetryRunOnce_BusFailureContinues(t *testing.T) {
	buf := captureLog(t)
	bus := &recordingBus{fail: true}
	tel := newTestTelemetry(bus, 0)

	if err := tel.RunOnce(context.Background()); err != nil {
		t.Fatalf("bus failures must not end the cycle, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Failed to read battery voltage",
		"Battery Voltage: 0 mV",
		"Failed to read encoder values",
		"Encoder Values: Motor1 = 0, Motor2 = 0, Motor3 = 0, Motor4 = 0",
		"Failed to set motor speed",
		"Stopping...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestTelemetryRun_InitResult(t *testing.T) {
	cases := []struct {
		name string
		fail bool
		want string
	}{
		{"success", false, "Motor driver initialized successfully."},
		{"failure", true, "Failed to initialize motor driver:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLog(t)
			bus := &recordingBus{fail: tc.fail}
			tel := newTestTelemetry(bus, time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			err := tel.Run(ctx)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
			}
			out := buf.String()
			if !strings.Contains(out, tc.want) {
				t.Errorf("log missing %q:\n%s", tc.want, out)
			}
			if !strings.Contains(out, "Battery Voltage:") {
				t.Errorf("loop should start after init:\n%s", out)
			}
		})
	}
}

func TestTelemetryRun_CancelledDuringHoldSendsNoStop(t *testing.T) {
	captureLog(t)
	bus := &recordingBus{}
	tel := newTestTelemetry(bus, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tel.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
	}
	// type, polarity, forward speed; nothing after the cancelled hold.
	if len(bus.writes) != 3 {
		t.Fatalf("expected 3 writes, got %d: %v", len(bus.writes), bus.writes)
	}
	if !bytes.Equal(bus.writes[2].data, []byte{50, 60, 0, 0}) {
		t.Errorf("last write = % X, want forward speed", bus.writes[2].data)
	}
}

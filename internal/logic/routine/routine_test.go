package routine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/tankarm/internal/debug"
	"periph.io/x/conn/v3/physic"
)

// captureLog redirects debug output at info level for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	debug.SetOutput(&buf)
	debug.Init(debug.LevelInfo)
	t.Cleanup(func() {
		debug.SetOutput(os.Stdout)
		debug.Init(debug.LevelOff)
	})
	return &buf
}

// regWrite is one register write seen on the bus.
type regWrite struct {
	addr uint16
	reg  uint8
	data []byte
}

// recordingBus records writes, serves reads from a register map and can
// fail every transaction.
type recordingBus struct {
	writes []regWrite
	regs   map[uint8][]byte
	fail   bool
}

func (b *recordingBus) String() string { return "recording" }

func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	if b.fail {
		return errors.New("no ack")
	}
	if len(r) == 0 {
		b.writes = append(b.writes, regWrite{addr: addr, reg: w[0], data: append([]byte(nil), w[1:]...)})
		return nil
	}
	copy(r, b.regs[w[0]])
	return nil
}

func (b *recordingBus) SetSpeed(f physic.Frequency) error { return nil }

func TestWait(t *testing.T) {
	if err := wait(context.Background(), 0); err != nil {
		t.Errorf("wait(0) = %v, want nil", err)
	}
	if err := wait(context.Background(), time.Microsecond); err != nil {
		t.Errorf("wait(1µs) = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled wait = %v, want context.Canceled", err)
	}
	if err := wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled zero wait = %v, want context.Canceled", err)
	}
}

func containsInOrder(s string, lines ...string) bool {
	for _, l := range lines {
		i := strings.Index(s, l)
		if i < 0 {
			return false
		}
		s = s[i+len(l):]
	}
	return true
}

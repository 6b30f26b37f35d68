// Package routine holds the top-level loops of the three rig programs:
// motor telemetry, the dual motor drive cycle and the servo arm test.
package routine

import (
	"context"
	"time"
)

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
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

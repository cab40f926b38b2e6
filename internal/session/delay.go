package session

import (
	"context"
	"time"
)

// Delayer abstracts the artificial pause before an assistant reply is
// produced, so tests can run the workflow without real timers.
type Delayer interface {
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// StdDelayer waits on a real timer, honoring context cancellation.
type StdDelayer struct{}

func (StdDelayer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
